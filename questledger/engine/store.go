package engine

import (
	"context"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
)

// Tx is the transactional scope for one event application. Everything done
// through it commits or rolls back as a unit: admission record, progress
// mutation and ledger appends are never observable separately.
type Tx interface {
	// Progress loads the live record for the entity, nil if none exists.
	Progress(ctx context.Context, participantID, questID string) (*models.ParticipantProgress, error)
	// SaveProgress inserts or updates the record.
	SaveProgress(ctx context.Context, progress *models.ParticipantProgress) error
	// ParticipantCount counts records occupying quest capacity.
	ParticipantCount(ctx context.Context, questID string) (int, error)
	// WasAdmitted reports whether the event identity was already accepted.
	WasAdmitted(ctx context.Context, eventID string) (bool, error)
	// RecordAdmission persists the deduplication record.
	RecordAdmission(ctx context.Context, admission *models.EventAdmission) error
	// CommitReward appends a ledger entry and updates the participant total.
	// Returns false when the deterministic identity was already committed.
	CommitReward(ctx context.Context, tx *models.RewardTransaction) (bool, error)
}

// Store is the persistence contract the engine runs on. Implementations must
// provide at least serializable isolation per entity key and surface
// contention as ErrConcurrencyConflict so the engine can retry.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Quest(ctx context.Context, questID string) (*models.Quest, error)
}

// CommitListener observes successfully committed reward transactions, after
// the owning database transaction has committed.
type CommitListener interface {
	RewardCommitted(tx *models.RewardTransaction)
}
