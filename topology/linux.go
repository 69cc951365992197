//go:build linux

package topology

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// linuxTopology reads CPU/NUMA locality from procfs/sysfs and binds
// threads with sched_setaffinity, the closest idiomatic Go equivalent
// to hwloc's cpuset binding on Linux. There is no versioned ABI to
// check here, unlike hwloc's runtime/compile-time version pair, so
// CheckVersion always succeeds, a deliberate simplification recorded
// in DESIGN.md rather than silently dropped.
type linuxTopology struct{}

// NewLinux returns the Topology implementation used on Linux hosts.
func NewLinux() Topology { return linuxTopology{} }

func (linuxTopology) CheckVersion() error { return nil }

func (linuxTopology) CurrentCPUSet() (*CPUSet, error) {
	var affinity unix.CPUSet
	if err := unix.SchedGetaffinity(0, &affinity); err != nil {
		return nil, fmt.Errorf("topology: sched_getaffinity: %w", err)
	}

	current := NewCPUSet(len(affinity) * 8 * 8)
	anyCPU := -1
	for cpu := 0; cpu < unix.CPU_SETSIZE; cpu++ {
		if affinity.IsSet(cpu) {
			current.Set(cpu)
			if anyCPU < 0 {
				anyCPU = cpu
			}
		}
	}
	if anyCPU < 0 {
		return NewCPUSet(1), nil
	}

	node, err := nodeForCPU(anyCPU)
	if err != nil {
		// No NUMA topology info available; fall back to the raw
		// affinity set rather than failing outright.
		return current, nil
	}
	return cpusOfNode(node)
}

func (linuxTopology) BindThread(set *CPUSet) error {
	var affinity unix.CPUSet
	for _, cpu := range set.CPUs() {
		affinity.Set(cpu)
	}
	if set.IsZero() {
		return fmt.Errorf("topology: refusing to bind to an empty cpu set")
	}
	return unix.SchedSetaffinity(0, &affinity)
}

// nodeForCPU finds the NUMA node containing cpu by scanning
// /sys/devices/system/node/node*/cpulist.
func nodeForCPU(cpu int) (int, error) {
	nodes, err := filepath.Glob("/sys/devices/system/node/node[0-9]*")
	if err != nil || len(nodes) == 0 {
		return 0, fmt.Errorf("topology: no numa nodes found")
	}
	for _, dir := range nodes {
		list, err := readCPUList(filepath.Join(dir, "cpulist"))
		if err != nil {
			continue
		}
		for _, c := range list {
			if c == cpu {
				base := filepath.Base(dir)
				return strconv.Atoi(strings.TrimPrefix(base, "node"))
			}
		}
	}
	return 0, fmt.Errorf("topology: cpu %d not found in any numa node", cpu)
}

func cpusOfNode(node int) (*CPUSet, error) {
	list, err := readCPUList(fmt.Sprintf("/sys/devices/system/node/node%d/cpulist", node))
	if err != nil {
		return nil, err
	}
	set := NewCPUSet(1)
	for _, c := range list {
		set.Set(c)
	}
	return set, nil
}

// readCPUList parses the kernel's "N,M-K" cpulist format, as used by
// both /sys/devices/system/node/node*/cpulist and cpu/online.
func readCPUList(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("topology: empty cpulist at %s", path)
	}
	var out []int
	for _, part := range strings.Split(strings.TrimSpace(scanner.Text()), ",") {
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			l, err1 := strconv.Atoi(lo)
			h, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil {
				continue
			}
			for c := l; c <= h; c++ {
				out = append(out, c)
			}
		} else {
			if c, err := strconv.Atoi(part); err == nil {
				out = append(out, c)
			}
		}
	}
	return out, nil
}
