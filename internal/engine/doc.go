// package engine coordinates tasks, playback and persistence.
//
// An [Engine] holds the in-memory task collection behind one mutex. Manual operations
// (play, pause, stop, edit, import) and scheduler ticks enter through the same methods, so they
// never interleave. The lock order is always engine, then playback controller; the controller
// never calls back into the engine. Playback events are consumed on a pump goroutine and
// re-published as [Event] values for display layers.
package engine
