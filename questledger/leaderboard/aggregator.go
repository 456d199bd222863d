package leaderboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
)

// Scope identifies the grouping a ranking is computed over.
type Scope struct {
	Kind string // quest, city, global
	Key  string // quest ID or city name; empty for global
}

const (
	ScopeQuest  = "quest"
	ScopeCity   = "city"
	ScopeGlobal = "global"
)

func QuestScope(questID string) Scope { return Scope{Kind: ScopeQuest, Key: questID} }
func CityScope(city string) Scope    { return Scope{Kind: ScopeCity, Key: city} }
func GlobalScope() Scope             { return Scope{Kind: ScopeGlobal} }

func (s Scope) key() string {
	if s.Kind == ScopeGlobal {
		return ScopeGlobal
	}
	return s.Kind + ":" + s.Key
}

// Entry is one ranked row. Derived data only; the ledger is the source of truth.
type Entry struct {
	ParticipantID string
	Points        int64
	CompletedAt   time.Time
	Rank          int
}

type participantTotals struct {
	points      int64
	completedAt time.Time
}

// RewardSource streams committed ledger entries in commit order; satisfied by
// repositories.RewardRepository.
type RewardSource interface {
	ScanAll(ctx context.Context, fn func(*models.RewardTransaction) error) error
}

// Aggregator incrementally maintains ranked views from ledger commits. It is
// a cache: it can be discarded and rebuilt from the full ledger at any time,
// and the rebuilt ranking must match the incrementally maintained one.
type Aggregator struct {
	mu     sync.RWMutex
	scopes map[string]map[string]*participantTotals
}

func NewAggregator() *Aggregator {
	return &Aggregator{scopes: make(map[string]map[string]*participantTotals)}
}

// RewardCommitted applies one committed ledger delta. Implements
// engine.CommitListener.
func (a *Aggregator) RewardCommitted(tx *models.RewardTransaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apply(tx)
}

func (a *Aggregator) apply(tx *models.RewardTransaction) {
	for _, scope := range []Scope{QuestScope(tx.QuestID), CityScope(tx.City), GlobalScope()} {
		entries := a.scopes[scope.key()]
		if entries == nil {
			entries = make(map[string]*participantTotals)
			a.scopes[scope.key()] = entries
		}
		totals := entries[tx.ParticipantID]
		if totals == nil {
			totals = &participantTotals{}
			entries[tx.ParticipantID] = totals
		}
		totals.points += tx.Amount
		if tx.Kind == models.RewardKindCompletion {
			if totals.completedAt.IsZero() || tx.CommittedAt.Before(totals.completedAt) {
				totals.completedAt = tx.CommittedAt
			}
		}
	}
}

// Rebuild discards all views and replays the full ledger history.
func (a *Aggregator) Rebuild(ctx context.Context, src RewardSource) error {
	fresh := make(map[string]map[string]*participantTotals)

	rebuilt := &Aggregator{scopes: fresh}
	err := src.ScanAll(ctx, func(tx *models.RewardTransaction) error {
		rebuilt.apply(tx)
		return nil
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.scopes = fresh
	a.mu.Unlock()
	return nil
}

// TopN returns the first n ranked entries for a scope. Ties break by earliest
// completion timestamp, then participant identity, for determinism.
func (a *Aggregator) TopN(scope Scope, n int) []Entry {
	ranked := a.ranked(scope)
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// RankOf returns a participant's 1-based rank within a scope, or false when
// the participant has no committed rewards there.
func (a *Aggregator) RankOf(scope Scope, participantID string) (int, bool) {
	for _, entry := range a.ranked(scope) {
		if entry.ParticipantID == participantID {
			return entry.Rank, true
		}
	}
	return 0, false
}

func (a *Aggregator) ranked(scope Scope) []Entry {
	a.mu.RLock()
	entries := a.scopes[scope.key()]
	ranked := make([]Entry, 0, len(entries))
	for id, totals := range entries {
		ranked = append(ranked, Entry{
			ParticipantID: id,
			Points:        totals.points,
			CompletedAt:   totals.completedAt,
		})
	}
	a.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		ci, cj := ranked[i].CompletedAt, ranked[j].CompletedAt
		if !ci.Equal(cj) {
			if ci.IsZero() {
				return false
			}
			if cj.IsZero() {
				return true
			}
			return ci.Before(cj)
		}
		return ranked[i].ParticipantID < ranked[j].ParticipantID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
