// Package service runs batches of external processes.
//
// Overview
// A Batch owns a validated model.Config and a process.Handler. Do runs every
// job of the config with a bounded concurrency (internal/parallel) and hands
// each finished JobResult to the configured Reporters.
//
// Data flow:
//
//	Batch.Do              parallel.Map              process.Handler
//	    |                      |                          |
//	    | jobs --------------->| job (<= parallel) ------>| ExecuteContext(timeout)
//	    |                      |<--------- Result --------|
//	    |<---- JobResult ------|                          |
//	    | Report() -> WriteReporter | OSRootReporter
//
// Invariants:
//   - Every job produces exactly one JobResult, even when the batch is
//     canceled before the job started.
//   - Each job has its own timeout, after which its process gets killed.
//   - A job fails when it did not start, was killed or exited with a non
//     zero code. Do returns all failures joined.
package service
