// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package procfs

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CPUStat is one aggregate or per-core row from /proc/stat, in seconds
// (converted via clk_tck at read time, unlike the raw tick counters in
// Stat). CPUIndex is -1 for the aggregate "cpu" line.
type CPUStat struct {
	CPUIndex  int32
	User      float64
	Nice      float64
	System    float64
	Idle      float64
	IOWait    float64
	IRQ       float64
	SoftIRQ   float64
	Steal     float64
	Guest     float64
	GuestNice float64
}

// ReadCPUStat parses the "cpu"/"cpuN" lines of /proc/stat. Steal, Guest,
// and GuestNice are optional fields present only on newer kernels; their
// absence is not an error, matching the teacher's cpu.go handling of older
// kernel formats.
func (p *ProcFS) ReadCPUStat() ([]CPUStat, error) {
	f, err := os.Open(p.path("stat"))
	if err != nil {
		return nil, fmt.Errorf("procfs: opening stat: %w", err)
	}
	defer f.Close()

	var out []CPUStat
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		name := fields[0]
		idx := int32(-1)
		if name != "cpu" {
			n, err := strconv.ParseInt(strings.TrimPrefix(name, "cpu"), 10, 32)
			if err != nil {
				continue
			}
			idx = int32(n)
		}
		ticks := make([]uint64, 10)
		for i := 1; i < len(fields) && i-1 < len(ticks); i++ {
			v, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("procfs: malformed cpu line %q: %w", line, err)
			}
			ticks[i-1] = v
		}
		clk := float64(p.clkTck)
		out = append(out, CPUStat{
			CPUIndex:  idx,
			User:      float64(ticks[0]) / clk,
			Nice:      float64(ticks[1]) / clk,
			System:    float64(ticks[2]) / clk,
			Idle:      float64(ticks[3]) / clk,
			IOWait:    float64(ticks[4]) / clk,
			IRQ:       float64(ticks[5]) / clk,
			SoftIRQ:   float64(ticks[6]) / clk,
			Steal:     float64(ticks[7]) / clk,
			Guest:     float64(ticks[8]) / clk,
			GuestNice: float64(ticks[9]) / clk,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("procfs: no cpu lines found")
	}
	return out, nil
}
