package playback

import "time"

// Device plays a single audio stream at a time.
//
// Implementations must be safe for concurrent use: the controller reads IsBusy and Elapsed
// from its progress loop while other calls may be in flight.
type Device interface {
	LoadAndPlay(path string, volume int) (time.Duration, error) // duration is zero when unknown
	Pause() error
	Resume() error
	Stop() error
	IsBusy() bool
	Elapsed() time.Duration
	SetVolume(volume int) error
}

// Prober reports the duration of an audio file without playing it.
type Prober interface {
	Probe(path string) (time.Duration, error)
}
