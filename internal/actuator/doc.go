// Package actuator owns the LED output and the two ways of changing it:
// the remote ON/OFF feed and the local push-button.
//
// Both sources only propose a Command. The Reconciler applies the most
// recent proposal to the pin when the control loop asks it to. Remote
// messages are drained before the button is polled, so a local toggle
// in the same loop iteration always wins.
package actuator
