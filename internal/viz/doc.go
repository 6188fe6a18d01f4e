// Package viz replays recorded leg motion in the terminal.
//
// The leg is drawn on a [Canvas] of braille cells, each holding a 2x4 grid
// of sub-pixels. [Replay] is a Bubble Tea model that loops over the
// snapshots until it is quit.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	[ ]   - Step back/forward one snapshot while paused
//	+ -   - Faster/slower playback
//	R     - Restart from the first snapshot
//	T     - Cycle color themes
//	Q     - Quit
package viz
