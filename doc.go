// Package auditor provides the shared life-cycle queue for storage
// integrity audits. An audit is a cryptographic challenge against data
// held by a remote storage node; this package schedules audits, promotes
// them when due, hands each one to exactly one worker, and records the
// pass/fail verdict, all coordinated through a single Redis instance
// shared by every producer, promoter, and worker process.
//
// Auditor is designed as a library, not a service. The audit generator,
// the verification logic, and any network exposure are external
// collaborators; they consume the queue through the types in this module.
//
// # Quick Start
//
//	q, err := queue.Open(auditor.DefaultConfig())
//	if err != nil { ... }
//	defer q.Close()
//
//	// producer
//	added, err := q.Add(ctx, audits...)
//
//	// controller
//	promoted, err := q.Promote(ctx, 0, 0) // everything due as of now
//
//	// worker
//	audit, err := q.Claim(ctx)            // blocks until one is due
//	ok, err := q.Resolve(ctx, audit, passed)
//
// # Coordination
//
// Every multi-step mutation runs as an optimistic WATCH/MULTI/EXEC
// transaction and is retried in full, without bound, when another process
// touches the watched key first. No exclusive locks are held anywhere, so
// any number of independent promoter and worker processes may share one
// store. Each state transition is additionally published on a pub/sub
// channel named after the affected queue for passive observers.
package auditor
