// Package dispatch routes inbound broker messages to their handlers on
// the control loop's goroutine.
//
// paho receives on its own goroutines and only queues messages. Nothing
// is handled until the loop calls ProcessPending, which gives the loop a
// single thread of control over all actuator state.
package dispatch
