// Package stress runs concurrent scenarios against the synchronization
// primitives and checks their invariants.
//
// A [Config] selects the scenarios and the load applied to each. [Runner]
// runs them with a bounded number of scenarios in flight, broadcasting
// progress events to subscribers, and returns a [Report].
package stress
