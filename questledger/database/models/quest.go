package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Quest struct {
	bun.BaseModel `bun:"table:quests,alias:q"`

	ID               int64     `bun:"id,pk,autoincrement"`
	QuestID          string    `bun:"quest_id,notnull,unique"`
	Name             string    `bun:"name,notnull"`
	Description      string    `bun:"description"`
	City             string    `bun:"city,notnull"`
	Difficulty       string    `bun:"difficulty,notnull"` // easy, medium, hard, expert
	Ordering         string    `bun:"ordering,notnull"`   // strict, free
	StartTime        time.Time `bun:"start_time,notnull"`
	EndTime          time.Time `bun:"end_time,notnull"`
	MaxParticipants  int       `bun:"max_participants,notnull,default:50"`
	CompletionBonus  int64     `bun:"completion_bonus,notnull,default:0"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
	UpdatedAt        time.Time `bun:"updated_at,notnull"`

	// Relations
	Checkpoints []*Checkpoint `bun:"rel:has-many,join:quest_id=quest_id"`
}

// Ordering policy constants
const (
	OrderingStrict = "strict"
	OrderingFree   = "free"
)

// Difficulty constants
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyExpert = "expert"
)

// Open reports whether the quest accepts events at the given instant.
func (q *Quest) Open(now time.Time) bool {
	return !now.Before(q.StartTime) && now.Before(q.EndTime)
}

// Ended reports whether the quest window has elapsed.
func (q *Quest) Ended(now time.Time) bool {
	return !now.Before(q.EndTime)
}

// Checkpoint returns the checkpoint with the given sequence index, or nil.
func (q *Quest) Checkpoint(seq int) *Checkpoint {
	for _, cp := range q.Checkpoints {
		if cp.Seq == seq {
			return cp
		}
	}
	return nil
}
