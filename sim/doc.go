// Package sim provides the discrete-event kernel for flowsim.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - simulator.go: the event queue and the single-threaded event loop
//   - event.go: the Event contract and the callback event used for timers and wake-ups
//   - semaphore.go: FIFO counting guard used for processor work slots
//
// # Architecture
//
// The sim package owns time, ordering and randomness; the flow model lives in
// sub-packages:
//   - sim/store/: reservable bounded store (two-phase put/get with tokens)
//   - sim/policy/: edge selection strategies and replayable random streams
//   - sim/network/: nodes, edges, the generator/processor/drain state machines and validation
//   - sim/workload/: inter-arrival and processing-time samplers
//   - sim/trace/: episode and transfer recording, SQLite persistence
//   - sim/config/: YAML model files
//
// # Determinism
//
// Events that share a timestamp run in (priority, registration) order, and
// every random draw comes from a PartitionedRNG stream derived from the
// SimulationKey, so two runs of the same model with the same seed are
// identical.
package sim
