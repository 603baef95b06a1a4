package bazel

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// CPUTimer reports the user and system CPU seconds a process has consumed
// so far.
type CPUTimer interface {
	Times(ctx context.Context, pid int32) (user, system float64, err error)
}

// ProcessTimer implements CPUTimer from the OS process accounting tables.
type ProcessTimer struct{}

// Times implements CPUTimer.
func (ProcessTimer) Times(ctx context.Context, pid int32) (float64, float64, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to find server process %d: %w", pid, err)
	}
	t, err := p.TimesWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read cpu times of server process %d: %w", pid, err)
	}
	return t.User, t.System, nil
}
