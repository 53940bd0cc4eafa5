// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package proctable

import (
	"github.com/antimetal/erebusd/pkg/procfs"
	"github.com/antimetal/erebusd/pkg/property"
)

// buildKernelFields builds the bag for pid 0, the synthetic kernel
// aggregate: only Pid, Valid, Error, and optionally StartTime (boot time)
// and CmdLine, per spec.md §4.4 step 3.
func (c *Collector) buildKernelFields(info *ProcessInfo, required FieldMask) property.Bag {
	var bag property.Bag
	bag.Add(property.NewUInt64(propPid, uint64(info.Pid)))
	bag.Add(property.NewBool(propValid, true))
	bag.Add(property.NewString(propError, ""))

	if required.has(FieldStartTime) {
		if boot, err := c.reader.BootTime(); err == nil {
			bag.Add(property.NewDouble(propStartTime, float64(boot.Unix())))
		}
	}
	if required.has(FieldCmdLine) {
		bag.Add(property.NewString(propCmdLine, "kernel"))
	}
	return bag
}

// buildProcessFields builds the bag for a non-kernel pid, reading its Stat
// and (on demand) comm/exe/cmdline/ruid, in the fixed order required by
// C4 invariant I3: Pid (0), Valid (1), Error (2), then the conditional
// fields in mask order. It also returns this tick's utime/stime in seconds
// for cumulative CPU summation (spec.md §13: summed once each, not
// utime twice).
func (c *Collector) buildProcessFields(info *ProcessInfo, required FieldMask) (bag property.Bag, utimeSecs, stimeSecs float64) {
	stat := c.reader.ReadStat(info.Pid)

	bag.Add(property.NewUInt64(propPid, uint64(info.Pid)))
	bag.Add(property.NewBool(propValid, stat.Valid))
	bag.Add(property.NewString(propError, stat.Error))

	if !stat.Valid {
		return bag, 0, 0
	}

	info.PPid = stat.PPid

	if required.has(FieldPPid) {
		bag.Add(property.NewUInt64(propPPid, uint64(stat.PPid)))
	}
	if required.has(FieldPGrp) {
		bag.Add(property.NewUInt64(propPGrp, uint64(stat.PGrp)))
	}
	if required.has(FieldTPgid) && stat.TPgid != -1 {
		bag.Add(property.NewUInt64(propTPgid, uint64(stat.TPgid)))
	}
	if required.has(FieldSession) {
		bag.Add(property.NewUInt64(propSession, uint64(stat.Session)))
	}
	if required.has(FieldRUID) {
		if uid, err := c.reader.RealUID(info.Pid); err == nil {
			bag.Add(property.NewUInt32(propRUID, uid))
		}
	}
	if required.has(FieldStartTime) {
		if boot, err := c.reader.BootTime(); err == nil {
			abs := float64(boot.Unix()) + float64(stat.StartTicks)/float64(c.reader.ClockTicks())
			bag.Add(property.NewDouble(propStartTime, abs))
		}
	}
	if required.has(FieldTTY) {
		bag.Add(property.NewUInt64(propTTY, uint64(stat.TTYNr)))
	}
	if required.has(FieldState) {
		bag.Add(property.NewUInt32(propState, uint32(stat.State)))
	}
	if required.has(FieldComm) {
		comm := stat.Comm
		if c, err := c.reader.Comm(info.Pid); err == nil {
			comm = c
		}
		info.Comm = comm
		bag.Add(property.NewString(propComm, comm))
	}
	if required.has(FieldCmdLine) {
		if cl, err := c.reader.CmdLine(info.Pid); err == nil {
			bag.Add(property.NewString(propCmdLine, cl))
		}
	}
	if required.has(FieldExe) && stat.PPid != procfs.KThreadDPid {
		if exe, err := c.reader.Exe(info.Pid); err == nil {
			info.Exe = exe
			bag.Add(property.NewString(propExe, exe))
		}
	}
	if required.has(FieldUser) {
		if uid, err := c.reader.RealUID(info.Pid); err == nil {
			bag.Add(property.NewString(propUser, uidToName(uid)))
		}
	}
	if required.has(FieldThreadCount) {
		bag.Add(property.NewInt64(propNThreads, stat.NumThreads))
	}

	clk := float64(c.reader.ClockTicks())
	utimeSecs = float64(stat.UTimeTicks) / clk
	stimeSecs = float64(stat.STimeTicks) / clk

	if required.has(FieldUTime) {
		bag.Add(property.NewDouble(propUTime, utimeSecs))
	}
	if required.has(FieldSTime) {
		bag.Add(property.NewDouble(propSTime, stimeSecs))
	}
	if required.has(FieldCPUUsage) {
		prevTotal := info.CumUTime + info.CumSTime
		curTotal := utimeSecs + stimeSecs
		pct := 0.0
		if elapsed := curTotal - prevTotal; elapsed > 0 && !info.IsNew {
			pct = elapsed * 100
		}
		bag.Add(property.NewDouble(propCPUUsage, pct))
	}

	info.CumUTime = utimeSecs
	info.CumSTime = stimeSecs

	return bag, utimeSecs, stimeSecs
}

// BuildProcessBag builds a one-shot full property bag for a single pid,
// independent of any Collector generation state. It backs the
// process_props/process_props_ext unary requests (spec.md §6), which have
// no previous tick to diff against, so FieldCPUUsage always reports 0
// rather than a derived percentage.
func BuildProcessBag(reader Reader, pid int32, required FieldMask) property.Bag {
	c := &Collector{reader: reader}
	info := &ProcessInfo{Pid: pid, IsNew: true}
	if pid == procfs.KernelPid {
		return c.buildKernelFields(info, required)
	}
	bag, _, _ := c.buildProcessFields(info, required)
	return bag
}

// uidToName is a minimal numeric fallback; resolving /etc/passwd is a named
// collaborator (authentication/identity resolution) outside this
// component's scope, so unknown uids render as their decimal form.
func uidToName(uid uint32) string {
	return uintToDecimal(uid)
}

func uintToDecimal(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
