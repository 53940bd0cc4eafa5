// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package procservice

import (
	"fmt"

	apierrors "github.com/antimetal/erebusd/pkg/errors"
	"github.com/antimetal/erebusd/pkg/proctable"
	"github.com/antimetal/erebusd/pkg/property"
	"github.com/antimetal/erebusd/pkg/session"
	"github.com/go-logr/logr"
)

// Service binds pkg/session, pkg/proctable, and the kill(2) syscall to the
// five process-table request names, implementing dispatch.Service.
// process_list is the only streaming request; the rest are unary.
type Service struct {
	log      logr.Logger
	sessions *session.Manager
	reader   proctable.Reader

	// hostRegion/hostAccountID are best-effort AWS IMDS host-identity
	// fields folded into global_props when cmd/erebusd resolved them at
	// startup; left blank (and omitted from the reply) off-EC2.
	hostRegion    string
	hostAccountID string
}

// New constructs a Service. reader is typically a *procfs.ProcFS.
func New(log logr.Logger, sessions *session.Manager, reader proctable.Reader) *Service {
	return &Service{
		log:      log.WithName("procservice"),
		sessions: sessions,
		reader:   reader,
	}
}

// WithHostIdentity attaches AWS host-identity fields resolved once at
// startup (cmd/erebusd's IMDS lookup) to every global_props reply.
func (s *Service) WithHostIdentity(region, accountID string) *Service {
	s.hostRegion = region
	s.hostAccountID = accountID
	return s
}

// requiredProcessMask reads __processprops_required from args, defaulting
// to every field, per spec.md §6.
func requiredProcessMask(args property.Bag) proctable.FieldMask {
	if p, ok := property.Find(args, argProcessPropsRequired); ok {
		if v, ok := p.UInt64(); ok {
			return proctable.FieldMask(v)
		}
	}
	return proctable.AllFields
}

// requiredGlobalsMask reads __global_required from args, defaulting to
// every field, per spec.md §6.
func requiredGlobalsMask(args property.Bag) proctable.GlobalsMask {
	if p, ok := property.Find(args, argGlobalRequired); ok {
		if v, ok := p.UInt64(); ok {
			return proctable.GlobalsMask(v)
		}
	}
	return proctable.AllGlobals
}

// pidArg reads the pid argument common to the unary per-process requests.
func pidArg(args property.Bag) (int32, error) {
	p, ok := property.Find(args, argPid)
	if !ok {
		return 0, apierrors.New("Process ID expected")
	}
	v, ok := p.UInt64()
	if !ok {
		return 0, apierrors.New("Process ID expected")
	}
	return int32(v), nil
}

// Request answers the unary request names: process_props,
// process_props_ext, global_props, and kill_process.
func (s *Service) Request(requestName string, args property.Bag, sessionID uint64) (property.Bag, error) {
	switch requestName {
	case ProcessProps, ProcessPropsExt:
		pid, err := pidArg(args)
		if err != nil {
			return nil, err
		}
		return proctable.BuildProcessBag(s.reader, pid, requiredProcessMask(args)), nil

	case GlobalProps:
		if _, err := s.sessions.GetSession(sessionID); err != nil {
			return nil, err
		}
		globals := proctable.NewGlobalsCollector(s.reader)
		bag, err := globals.Collect(requiredGlobalsMask(args), -1)
		if err != nil {
			return nil, err
		}
		if s.hostRegion != "" {
			bag.AddString(propHostRegion, s.hostRegion)
		}
		if s.hostAccountID != "" {
			bag.AddString(propHostAccountID, s.hostAccountID)
		}
		return bag, nil

	case KillProcess:
		return killProcess(args)

	default:
		return nil, apierrors.New(fmt.Sprintf("Unsupported request %q", requestName))
	}
}

// BeginStream opens the one streaming request name, process_list, over the
// caller's session, returning the new stream's id.
func (s *Service) BeginStream(requestName string, args property.Bag, sessionID uint64) (uint64, error) {
	if requestName != ProcessList {
		return 0, apierrors.New(fmt.Sprintf("Unsupported request %q", requestName))
	}
	return s.sessions.BeginProcessDiffStream(
		sessionID,
		s.reader,
		s.log,
		requiredProcessMask(args),
		requiredGlobalsMask(args),
	)
}

// Next pulls the process-diff stream's next bag.
func (s *Service) Next(sessionID, streamID uint64) (property.Bag, error) {
	return s.sessions.Next(sessionID, streamID)
}

// EndStream releases the process-diff stream early.
func (s *Service) EndStream(sessionID, streamID uint64) error {
	return s.sessions.EndStream(sessionID, streamID)
}
