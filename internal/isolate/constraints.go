package isolate

import (
	"fmt"

	"github.com/programme-lv/judge/internal/sandbox"
)

type Constraints struct {
	CpuTimeLimInSec      float64
	ExtraCpuTimeLimInSec float64
	WallTimeLimInSec     float64
	MemoryLimitInKB      int64
	MaxProcesses         int
	MaxOpenFiles         int
	FileSizeLimitInKB    int64
}

func DefaultConstraints() Constraints {
	return Constraints{
		CpuTimeLimInSec:      10.0,
		ExtraCpuTimeLimInSec: 0.5,
		WallTimeLimInSec:     20.0,
		MemoryLimitInKB:      512 * 1024,
		MaxProcesses:         128,
		MaxOpenFiles:         128,
		FileSizeLimitInKB:    64 * 1024,
	}
}

// ConstraintsFor maps box limits onto isolate options. Zero limits keep
// the defaults.
func ConstraintsFor(limits sandbox.Limits) Constraints {
	c := DefaultConstraints()
	if limits.CpuTimeMs > 0 {
		c.CpuTimeLimInSec = float64(limits.CpuTimeMs) / 1000
	}
	if limits.WallTimeMs > 0 {
		c.WallTimeLimInSec = float64(limits.WallTimeMs) / 1000
	}
	if limits.MemoryKiB > 0 {
		c.MemoryLimitInKB = limits.MemoryKiB
	}
	if limits.MaxProcesses > 0 {
		c.MaxProcesses = limits.MaxProcesses
	}
	return c
}

func (c Constraints) ToArgs() []string {
	return []string{
		fmt.Sprintf("--cg-mem=%d", c.MemoryLimitInKB),
		fmt.Sprintf("--time=%.3f", c.CpuTimeLimInSec),
		fmt.Sprintf("--extra-time=%.3f", c.ExtraCpuTimeLimInSec),
		fmt.Sprintf("--wall-time=%.3f", c.WallTimeLimInSec),
		fmt.Sprintf("--processes=%d", c.MaxProcesses),
		fmt.Sprintf("--open-files=%d", c.MaxOpenFiles),
		fmt.Sprintf("--fsize=%d", c.FileSizeLimitInKB),
	}
}
