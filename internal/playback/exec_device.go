package playback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/chime/internal/shared"
)

const probeTimeout = 10 * time.Second

// ExecDevice plays audio through an external player process (ffplay by default).
//
// Pause and resume suspend and continue the process. A volume change restarts the
// player at the current position.
type ExecDevice struct {
	mu      sync.Mutex
	player  string
	prober  string
	now     func() time.Time
	cmd     *exec.Cmd
	exited  chan struct{}
	path    string
	volume  int
	paused  bool
	played  time.Duration
	resumed time.Time
}

// NewExecDevice creates an ExecDevice using the player and probe executables.
func NewExecDevice(player, prober string) *ExecDevice {
	if player == "" {
		player = "ffplay"
	}
	if prober == "" {
		prober = "ffprobe"
	}
	return &ExecDevice{player: player, prober: prober, now: time.Now}
}

// Available reports whether the player executable can be found on PATH.
func (d *ExecDevice) Available() error {
	if _, err := exec.LookPath(d.player); err != nil {
		return fmt.Errorf("%w: %s not found: %w", shared.ErrDeviceFailure, d.player, err)
	}
	return nil
}

func (d *ExecDevice) LoadAndPlay(path string, volume int) (time.Duration, error) {
	if !shared.FileExists(path) {
		return 0, fmt.Errorf("%w: %s", shared.ErrResourceMissing, path)
	}

	d.mu.Lock()
	d.killLocked()
	err := d.spawnLocked(path, volume, 0)
	d.mu.Unlock()
	if err != nil {
		return 0, err
	}

	// An unprobeable stream still plays; its duration is reported as unknown.
	duration, _ := d.Probe(path)
	return duration, nil
}

func (d *ExecDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.runningLocked() || d.paused {
		return nil
	}
	if err := suspend(d.cmd.Process); err != nil {
		return err
	}
	d.played += d.now().Sub(d.resumed)
	d.paused = true
	return nil
}

func (d *ExecDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.runningLocked() || !d.paused {
		return nil
	}
	if err := resume(d.cmd.Process); err != nil {
		return err
	}
	d.resumed = d.now()
	d.paused = false
	return nil
}

func (d *ExecDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.killLocked()
	return nil
}

func (d *ExecDevice) IsBusy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runningLocked()
}

func (d *ExecDevice) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd == nil {
		return 0
	}
	return d.elapsedLocked()
}

func (d *ExecDevice) SetVolume(volume int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.volume = volume
	if !d.runningLocked() {
		return nil
	}

	path, at, paused := d.path, d.elapsedLocked(), d.paused
	d.killLocked()
	if err := d.spawnLocked(path, volume, at); err != nil {
		return err
	}
	if paused {
		if err := suspend(d.cmd.Process); err != nil {
			return err
		}
		d.paused = true
	}
	return nil
}

// Probe reads the stream duration with the probe executable.
func (d *ExecDevice) Probe(path string) (time.Duration, error) {
	if !shared.FileExists(path) {
		return 0, fmt.Errorf("%w: %s", shared.ErrResourceMissing, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, d.prober,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("%w: probe %s: %w", shared.ErrDeviceFailure, path, err)
	}
	return parseProbeDuration(out.String())
}

func parseProbeDuration(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("%w: unexpected probe output %q", shared.ErrDeviceFailure, strings.TrimSpace(s))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (d *ExecDevice) spawnLocked(path string, volume int, at time.Duration) error {
	args := []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", strconv.Itoa(volume)}
	if at > 0 {
		args = append(args, "-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64))
	}
	args = append(args, path)

	cmd := exec.Command(d.player, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start %s: %w", shared.ErrDeviceFailure, d.player, err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	d.cmd = cmd
	d.exited = exited
	d.path = path
	d.volume = volume
	d.paused = false
	d.played = at
	d.resumed = d.now()
	return nil
}

func (d *ExecDevice) killLocked() {
	if d.cmd == nil {
		return
	}
	if d.runningLocked() {
		if d.paused {
			_ = resume(d.cmd.Process)
		}
		_ = d.cmd.Process.Kill()
		<-d.exited
	}
	d.cmd = nil
	d.exited = nil
	d.paused = false
	d.played = 0
}

func (d *ExecDevice) runningLocked() bool {
	if d.cmd == nil {
		return false
	}
	select {
	case <-d.exited:
		return false
	default:
		return true
	}
}

func (d *ExecDevice) elapsedLocked() time.Duration {
	if d.paused {
		return d.played
	}
	return d.played + d.now().Sub(d.resumed)
}
