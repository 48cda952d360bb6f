// Package scheduler decides which task a tick starts and drives the tick loop.
//
// [Evaluate] is pure: given the time, the task collection, the key of the active task and a
// resource check, it returns a [Plan]. The engine applies the plan under its own lock.
// A task fires when its schedule selects the current date and its start time is within
// [Tolerance] of the current time of day. At most one task starts per tick.
//
// [Scheduler] runs the tick on a cron runner and never overlaps ticks.
package scheduler
