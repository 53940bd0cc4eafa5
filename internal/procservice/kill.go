// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package procservice

import (
	"fmt"
	"syscall"

	apierrors "github.com/antimetal/erebusd/pkg/errors"
	"github.com/antimetal/erebusd/pkg/property"
)

// signalsByName is exactly the table spec.md §6 recognizes; any other name
// is a request-level error, not a kill(2) failure, mirroring
// processdetailsservice.cxx's mapSignalNameToSigno.
var signalsByName = map[string]syscall.Signal{
	"SIGKILL": syscall.SIGKILL,
	"SIGINT":  syscall.SIGINT,
	"SIGTERM": syscall.SIGTERM,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGABRT": syscall.SIGABRT,
	"SIGCONT": syscall.SIGCONT,
	"SIGSTOP": syscall.SIGSTOP,
	"SIGTSTP": syscall.SIGTSTP,
	"SIGHUP":  syscall.SIGHUP,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
	"SIGSEGV": syscall.SIGSEGV,
}

// killProcess reads {pid, signal_name} from args and signals the process.
// An unrecognized signal name or a missing argument raises an error (in-band
// exception at the dispatcher); a kill(2) failure (e.g. ESRCH) is instead
// reported inside the reply bag as {posix_result: -1, error_text: "..."},
// exactly like the original's killProcess never throwing on a failed kill.
func killProcess(args property.Bag) (property.Bag, error) {
	pidProp, ok := property.Find(args, argPid)
	if !ok {
		return nil, apierrors.New("Process ID expected")
	}
	pid, ok := pidProp.UInt64()
	if !ok {
		return nil, apierrors.New("Process ID expected")
	}

	signameProp, ok := property.Find(args, argSignalName)
	if !ok {
		return nil, apierrors.New("Signal name expected")
	}
	signame, ok := signameProp.String()
	if !ok {
		return nil, apierrors.New("Signal name expected")
	}

	sig, ok := signalsByName[signame]
	if !ok {
		return nil, apierrors.New(fmt.Sprintf("Invalid signal name %q", signame))
	}

	var result property.Bag
	if err := syscall.Kill(int(pid), sig); err != nil {
		result.AddInt32(replyPosixResult, -1)
		result.AddString(replyErrorText, err.Error())
	} else {
		result.AddInt32(replyPosixResult, 0)
	}
	return result, nil
}
