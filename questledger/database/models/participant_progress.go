package models

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

type ParticipantProgress struct {
	bun.BaseModel `bun:"table:participant_progress,alias:pp"`

	ID            int64                `bun:"id,pk,autoincrement"`
	ParticipantID string               `bun:"participant_id,notnull"`
	QuestID       string               `bun:"quest_id,notnull"`
	State         string               `bun:"state,notnull"`
	Satisfied     []int                `bun:"satisfied,type:jsonb"`
	DwellStarts   map[string]time.Time `bun:"dwell_starts,type:jsonb"`
	LastEventID   string               `bun:"last_event_id"`
	LastSeq       int64                `bun:"last_seq,notnull,default:0"`
	JoinedAt      time.Time            `bun:"joined_at,notnull"`
	CompletedAt   *time.Time           `bun:"completed_at"`
	EndedAt       *time.Time           `bun:"ended_at"`
	CreatedAt     time.Time            `bun:"created_at,notnull"`
	UpdatedAt     time.Time            `bun:"updated_at,notnull"`
}

// Progress state constants
const (
	StateJoined     = "joined"
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
	StateAbandoned  = "abandoned"
	StateExpired    = "expired"
)

// Terminal reports whether no further event application is permitted.
func (p *ParticipantProgress) Terminal() bool {
	switch p.State {
	case StateCompleted, StateAbandoned, StateExpired:
		return true
	}
	return false
}

// HasSatisfied reports whether the checkpoint with the given sequence index is done.
func (p *ParticipantProgress) HasSatisfied(seq int) bool {
	for _, s := range p.Satisfied {
		if s == seq {
			return true
		}
	}
	return false
}

// MarkSatisfied records a checkpoint as satisfied and clears its dwell tracking.
func (p *ParticipantProgress) MarkSatisfied(seq int) {
	if p.HasSatisfied(seq) {
		return
	}
	p.Satisfied = append(p.Satisfied, seq)
	delete(p.DwellStarts, strconv.Itoa(seq))
}

// DwellStart returns the tracked dwell start for a checkpoint, if any.
func (p *ParticipantProgress) DwellStart(seq int) *time.Time {
	if p.DwellStarts == nil {
		return nil
	}
	t, ok := p.DwellStarts[strconv.Itoa(seq)]
	if !ok {
		return nil
	}
	return &t
}

// SetDwellStart updates dwell tracking for a checkpoint; nil clears it.
func (p *ParticipantProgress) SetDwellStart(seq int, t *time.Time) {
	key := strconv.Itoa(seq)
	if t == nil {
		delete(p.DwellStarts, key)
		return
	}
	if p.DwellStarts == nil {
		p.DwellStarts = make(map[string]time.Time)
	}
	p.DwellStarts[key] = *t
}

// Clone returns a deep copy safe to mutate without touching the original.
func (p *ParticipantProgress) Clone() *ParticipantProgress {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Satisfied = append([]int(nil), p.Satisfied...)
	if p.DwellStarts != nil {
		cp.DwellStarts = make(map[string]time.Time, len(p.DwellStarts))
		for k, v := range p.DwellStarts {
			cp.DwellStarts[k] = v
		}
	}
	return &cp
}
