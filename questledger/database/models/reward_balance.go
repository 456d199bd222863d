package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RewardBalance is the participant's running total. It is only ever written
// in the same transaction as a ledger append; the ledger is the source of truth.
type RewardBalance struct {
	bun.BaseModel `bun:"table:reward_balances,alias:rb"`

	ParticipantID string    `bun:"participant_id,pk"`
	TotalPoints   int64     `bun:"total_points,notnull,default:0"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}
