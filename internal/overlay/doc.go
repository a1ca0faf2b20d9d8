// Package overlay draws live bid, ask and last-price reference lines over a
// chart for a single instrument.
//
// A RedrawScheduler samples the Feed on a fixed interval into a SnapshotStore
// and asks the Host for a redraw only when the sampled best bid, best ask or
// last price changed. The Host later calls back into the Indicator's draw
// phase, which reads a consistent copy of the snapshot and emits three line
// segments through the Renderer.
package overlay
