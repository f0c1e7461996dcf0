// Package loader runs the species pipeline as a cancellable background task.
//
// A Loader moves through the states
//
//	Idle -> Running -> Delivered
//	                \-> Cancelled
//
// and invokes the caller's delivery callback exactly once per run unless the
// run is cancelled first. Only one run is active at a time: Start returns
// ErrAlreadyRunning while a run is in flight. A Loader in a terminal state
// may be started again.
package loader
