package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventAdmission is the durable deduplication record for an accepted event.
// It is written in the same transaction as the state mutation it caused.
type EventAdmission struct {
	bun.BaseModel `bun:"table:event_admissions,alias:ea"`

	ID            int64     `bun:"id,pk,autoincrement"`
	EventID       string    `bun:"event_id,notnull,unique"`
	ParticipantID string    `bun:"participant_id,notnull"`
	QuestID       string    `bun:"quest_id,notnull"`
	Kind          string    `bun:"kind,notnull"`
	Seq           int64     `bun:"seq,notnull"`
	ObservedAt    time.Time `bun:"observed_at"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}
