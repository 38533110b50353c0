// Package controlloop drives the node: one goroutine, one fixed-order
// iteration, repeated until shutdown or until the broker session gives up.
//
// Order of a Step:
//
//  1. session.EnsureConnected (fatal on an exhausted retry budget)
//  2. dispatcher.ProcessPending, bounded by DrainTimeout
//  3. actuator.Apply for drained remote commands
//  4. session.ProbeLiveness
//  5. sample, publish and journal a reading every PublishInterval
//  6. button poll; a release toggles and applies the LED at once
//
// A local press therefore always lands after any remote command drained in
// the same iteration.
package controlloop
