// Package dpst implements the display power savings (DPST) control core:
// the enable/disable state machine arbitrating between the user-space
// tuning agent and kernel power policy, the histogram interrupt and
// readout protocols, and the luma apply/save/restore sequencing.
//
// The hardware dims the panel backlight while an enhancement table
// compensates the displayed image, so perceived brightness stays constant
// and power drops. The agent closes the loop: it reads the luminance
// histogram the hardware collects, computes a new backlight factor and
// enhancement table, and pushes them back through the command dispatcher.
//
// Three actors touch this state concurrently: agent commands, kernel
// policy vetoes and the interrupt path. One command lock serializes the
// first two end-to-end; the interrupt path never takes it.
package dpst
