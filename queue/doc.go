// Package queue implements the audit life-cycle queue against Redis.
//
// Five store-backed collections make up the pipeline: a backlog Sorted Set
// scored by schedule time, a ready List, one pending List per worker, and
// the terminal pass and fail Sets. Audits move backlog → ready under an
// optimistic WATCH/MULTI/EXEC transaction, ready → pending via an atomic
// RPOPLPUSH (blocking or not), and pending → pass/fail under another
// watched transaction. Every committed transition is also published on the
// pub/sub channel named after the destination queue.
//
// A Queue instance holds two long-lived clients: one dedicated to the
// blocking claim so that an idle worker can still schedule and resolve
// audits on the other. Close releases both when the instance owns them.
package queue
