package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Checkpoint struct {
	bun.BaseModel `bun:"table:checkpoints,alias:cp"`

	ID          int64     `bun:"id,pk,autoincrement"`
	QuestID     string    `bun:"quest_id,notnull"`
	Seq         int       `bun:"seq,notnull"`
	Name        string    `bun:"name,notnull"`
	Hint        string    `bun:"hint"`
	Latitude    float64   `bun:"latitude,notnull"`
	Longitude   float64   `bun:"longitude,notnull"`
	RadiusM     float64   `bun:"radius_m,notnull,default:50"`
	MinDwellSec int       `bun:"min_dwell_sec,notnull,default:0"`
	Points      int64     `bun:"points,notnull,default:0"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// MinDwell returns the minimum continuous containment duration.
func (c *Checkpoint) MinDwell() time.Duration {
	return time.Duration(c.MinDwellSec) * time.Second
}
