package queue

import "github.com/Storj/service-auditor/id"

// Redis key naming for the audit pipeline. All keys carry the "audit:"
// prefix to avoid collisions, and every notification channel name equals
// the key of the queue it reports on. The names are process-wide constants
// of the coordination protocol, not tunables.

const keyPrefix = "audit:"

// BacklogKey is the Sorted Set of scheduled audits, scored by ts.
const BacklogKey = keyPrefix + "backlog"

// ReadyKey is the List of due audits awaiting a claim.
const ReadyKey = keyPrefix + "ready"

// PassKey is the terminal Set of audits that verified successfully.
const PassKey = keyPrefix + "pass"

// FailKey is the terminal Set of audits that failed verification.
const FailKey = keyPrefix + "fail"

// PendingKey returns the List key holding audits claimed by one worker:
// audit:pending:{workerID}
func PendingKey(worker id.WorkerID) string {
	return keyPrefix + "pending:" + worker.String()
}
