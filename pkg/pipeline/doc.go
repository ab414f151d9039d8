// Package pipeline implements the client-side communication pipeline a
// device uses to provision and operate against a cloud endpoint.
//
// The pipeline is a fixed chain of stages. Operations (connect, send
// telemetry, apply a credential) flow from the caller towards the transport;
// events (inbound messages, connection-state changes) flow the opposite way.
// Each stage transforms the operation kinds it recognises and passes
// everything else through unchanged, so stages compose without knowing about
// each other. A stage that cannot satisfy an operation directly delegates:
// it constructs one or more more-specific operations whose outcome decides
// the original's completion.
//
// Every operation is completed exactly once, regardless of how many stages
// it traverses or how many delegations replaced it. Completing twice is a
// programming error and fails loudly.
//
// All stage logic for one pipeline runs on a single serialization loop, even
// though Submit may be called from many goroutines at once. Stages therefore
// need no internal locking; the affinity gate turns any off-loop stage call
// into a panic instead of a silent race. Blocking work (transport I/O, retry
// backoff) happens off the loop and marshals its results back in.
package pipeline
