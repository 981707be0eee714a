package cashsync

import (
	"github.com/google/uuid"
)

// RefFor derives the stable ledger identity for a source record. The same
// (system, record) pair always yields the same UUID, so a movement can be
// re-derived at any time without consulting the ledger.
func RefFor(system SourceSystem, recordID string) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(string(system)+":"+recordID))
}
