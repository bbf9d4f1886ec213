package main

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

type proc struct {
	PID     int
	Command string
	CPU     float64
	Mem     float64
}

// sampler returns a snapshot of the running processes.
type sampler interface {
	Sample() ([]proc, error)
}

type psSampler struct {
	timeout time.Duration
}

func (s psSampler) Sample() ([]proc, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "ps", "-eo", "pid,pcpu,pmem,comm").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run ps: %w", err)
	}
	return parsePS(string(out)), nil
}

// parsePS reads `ps -eo pid,pcpu,pmem,comm` output, skipping the header and
// malformed lines.
func parsePS(out string) []proc {
	var procs []proc
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Scan()
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 4 {
			continue
		}
		pid, err := strconv.Atoi(f[0])
		if err != nil {
			continue
		}
		cpu, _ := strconv.ParseFloat(f[1], 64)
		mem, _ := strconv.ParseFloat(f[2], 64)
		cmd := strings.Join(f[3:], " ")
		if idx := strings.LastIndex(cmd, "/"); idx >= 0 {
			cmd = cmd[idx+1:]
		}
		procs = append(procs, proc{PID: pid, Command: cmd, CPU: cpu, Mem: mem})
	}
	return procs
}

type staticSampler []proc

func (s staticSampler) Sample() ([]proc, error) { return append([]proc(nil), s...), nil }

type sortKey int

const (
	byCPU sortKey = iota
	byMem
	byPID
)

func (k sortKey) String() string {
	switch k {
	case byMem:
		return "mem"
	case byPID:
		return "pid"
	default:
		return "cpu"
	}
}

func (k sortKey) next() sortKey { return (k + 1) % 3 }

func sortProcs(procs []proc, k sortKey) {
	sort.SliceStable(procs, func(i, j int) bool {
		a, b := procs[i], procs[j]
		switch k {
		case byMem:
			if a.Mem != b.Mem {
				return a.Mem > b.Mem
			}
		case byCPU:
			if a.CPU != b.CPU {
				return a.CPU > b.CPU
			}
		}
		return a.PID < b.PID
	})
}

func totals(procs []proc) (cpu, mem float64) {
	for _, p := range procs {
		cpu += p.CPU
		mem += p.Mem
	}
	return cpu, mem
}
