//go:build windows

package playback

import (
	"fmt"
	"os"

	"github.com/desertthunder/chime/internal/shared"
)

func suspend(*os.Process) error {
	return fmt.Errorf("%w: pausing the player process on windows", shared.ErrNotImplemented)
}

func resume(*os.Process) error {
	return fmt.Errorf("%w: resuming the player process on windows", shared.ErrNotImplemented)
}
