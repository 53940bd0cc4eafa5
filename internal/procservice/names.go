// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package procservice wires the process-table, session, and procfs
// components into the five dispatch.Service request names spec.md §6
// defines, grounded on erebus-processmgr's processlistservice.cxx
// (process_list, global_props) and processdetailsservice.cxx
// (process_props, process_props_ext, kill_process).
package procservice

// Request names, matching spec.md §6 exactly.
const (
	ProcessList     = "process_list"
	ProcessProps    = "process_props"
	ProcessPropsExt = "process_props_ext"
	GlobalProps     = "global_props"
	KillProcess     = "kill_process"
)

// Argument/reply property names.
const (
	argProcessPropsRequired = "__processprops_required"
	argGlobalRequired       = "__global_required"
	argPid                  = "pid"
	argSignalName           = "signal_name"

	replyPosixResult = "posix_result"
	replyErrorText   = "error_text"

	propHostRegion    = "host_region"
	propHostAccountID = "host_account_id"
)
