package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RewardTransaction is an append-only ledger entry. TxID is deterministic,
// derived from (participant, quest, milestone), so replaying the triggering
// event cannot produce a second grant.
type RewardTransaction struct {
	bun.BaseModel `bun:"table:reward_transactions,alias:rt"`

	ID            int64     `bun:"id,pk,autoincrement"`
	TxID          string    `bun:"tx_id,notnull,unique"`
	ParticipantID string    `bun:"participant_id,notnull"`
	QuestID       string    `bun:"quest_id,notnull"`
	City          string    `bun:"city,notnull"`
	Milestone     string    `bun:"milestone,notnull"`
	Kind          string    `bun:"kind,notnull"`
	Amount        int64     `bun:"amount,notnull"`
	RefTxID       *string   `bun:"ref_tx_id"`
	CommittedAt   time.Time `bun:"committed_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

// Reward kind constants
const (
	RewardKindCheckpoint   = "checkpoint"
	RewardKindCompletion   = "completion_bonus"
	RewardKindAchievement  = "achievement"
	RewardKindCompensation = "compensation"
)

// Compensating reports whether this entry reverses a prior one.
func (t *RewardTransaction) Compensating() bool {
	return t.Kind == RewardKindCompensation
}
