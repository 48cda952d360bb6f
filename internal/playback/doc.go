// Package playback owns the audio device and the single active playback session.
//
// [Controller] serializes every device call behind one lock and runs a progress loop per
// session that emits [Event] values on a buffered channel. Sends never block; a full buffer
// drops the event, so consumers must treat the feed as advisory and re-check state.
//
// Devices:
//   - [ExecDevice] : drives an external player process (ffplay) and probes with ffprobe
//   - [SimDevice] : silent, clock driven, used for dry runs and tests
package playback
