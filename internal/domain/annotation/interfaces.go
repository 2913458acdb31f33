package annotation

import "context"

// RecordRepository manages annotation record persistence.
type RecordRepository interface {
	Insert(ctx context.Context, rec *Record) error
	// Latest returns the newest record for (unit, rater) ordered by
	// version, then round, then timestamp, regardless of status.
	Latest(ctx context.Context, unitID, raterID string) (*Record, error)
	// LatestForUnit returns the newest completed, non-skipped record
	// per rater for one unit.
	LatestForUnit(ctx context.Context, unitID string) (map[string]Record, error)
	// LatestByProject returns the newest completed, non-skipped record
	// per (unit, rater) across a whole project.
	LatestByProject(ctx context.Context, projectID string) ([]Record, error)
	History(ctx context.Context, unitID, raterID string) ([]Record, error)
}

// AuditRepository manages the field-level change log.
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListForUnit(ctx context.Context, unitID string) ([]AuditEntry, error)
}

// TxRunner runs a function inside a serializable transaction. Repository
// calls made with the context passed to fn join that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
