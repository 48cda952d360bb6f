package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/chime/internal/shared"
)

// SimDevice is a silent [Device] whose position advances with the wall clock.
//
// Every stream lasts Length. It is used for dry runs and on hosts without a player.
type SimDevice struct {
	mu      sync.Mutex
	length  time.Duration
	now     func() time.Time
	loaded  bool
	paused  bool
	volume  int
	played  time.Duration // accumulated before the current run
	resumed time.Time
}

// NewSimDevice creates a SimDevice whose streams last length.
func NewSimDevice(length time.Duration) *SimDevice {
	return NewSimDeviceWithClock(length, time.Now)
}

// NewSimDeviceWithClock creates a SimDevice reading time from now.
func NewSimDeviceWithClock(length time.Duration, now func() time.Time) *SimDevice {
	return &SimDevice{length: length, now: now}
}

func (d *SimDevice) LoadAndPlay(path string, volume int) (time.Duration, error) {
	if !shared.FileExists(path) {
		return 0, fmt.Errorf("%w: %s", shared.ErrResourceMissing, path)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = true
	d.paused = false
	d.volume = volume
	d.played = 0
	d.resumed = d.now()
	return d.length, nil
}

func (d *SimDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded || d.paused {
		return nil
	}
	d.played += d.now().Sub(d.resumed)
	d.paused = true
	return nil
}

func (d *SimDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded || !d.paused {
		return nil
	}
	d.resumed = d.now()
	d.paused = false
	return nil
}

func (d *SimDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
	d.paused = false
	d.played = 0
	return nil
}

func (d *SimDevice) IsBusy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded && d.elapsedLocked() < d.length
}

func (d *SimDevice) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return 0
	}
	return min(d.elapsedLocked(), d.length)
}

func (d *SimDevice) SetVolume(volume int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = volume
	return nil
}

// Probe reports the simulated stream length for existing files.
func (d *SimDevice) Probe(path string) (time.Duration, error) {
	if !shared.FileExists(path) {
		return 0, fmt.Errorf("%w: %s", shared.ErrResourceMissing, path)
	}
	return d.length, nil
}

func (d *SimDevice) elapsedLocked() time.Duration {
	if d.paused {
		return d.played
	}
	return d.played + d.now().Sub(d.resumed)
}
