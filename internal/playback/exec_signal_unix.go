//go:build !windows

package playback

import (
	"fmt"
	"os"
	"syscall"

	"github.com/desertthunder/chime/internal/shared"
)

func suspend(p *os.Process) error {
	if err := p.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("%w: suspend player: %w", shared.ErrDeviceFailure, err)
	}
	return nil
}

func resume(p *os.Process) error {
	if err := p.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("%w: resume player: %w", shared.ErrDeviceFailure, err)
	}
	return nil
}
