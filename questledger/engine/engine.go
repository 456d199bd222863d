package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
	"github.com/wayfarerlabs/questledger/questledger/logger"
)

const questCacheSize = 1024

// Config tunes the event pipeline. All knobs are explicit; the defaults match
// the documented adversarial model (bounded duplication and reordering).
type Config struct {
	DedupWindowSize int
	DedupWindowAge  time.Duration
	Geofence        GeofenceConfig
	MaxRetries      int
	RetryBackoff    time.Duration
	QuestCacheTTL   time.Duration
}

func DefaultConfig() Config {
	return Config{
		DedupWindowSize: 256,
		DedupWindowAge:  15 * time.Minute,
		Geofence:        DefaultGeofenceConfig(),
		MaxRetries:      3,
		RetryBackoff:    50 * time.Millisecond,
		QuestCacheTTL:   5 * time.Minute,
	}
}

// Engine turns untrusted, possibly duplicated, possibly reordered events into
// exactly-once state transitions and reward grants. One SubmitEvent call is
// one durable unit: admission, transition and ledger commits land together or
// not at all.
type Engine struct {
	store     Store
	cfg       Config
	dedup     *Deduplicator
	locks     *lockTable
	quests    *lru.Cache
	listeners []CommitListener
}

type cachedQuest struct {
	quest    *models.Quest
	cachedAt time.Time
}

func New(store Store, cfg Config) *Engine {
	if cfg.DedupWindowSize <= 0 {
		cfg = DefaultConfig()
	}
	cache, _ := lru.New(questCacheSize)
	return &Engine{
		store:  store,
		cfg:    cfg,
		dedup:  NewDeduplicator(cfg.DedupWindowSize, cfg.DedupWindowAge),
		locks:  newLockTable(),
		quests: cache,
	}
}

// AddListener registers a post-commit observer for ledger appends.
func (e *Engine) AddListener(l CommitListener) {
	e.listeners = append(e.listeners, l)
}

// SubmitEvent is the sole write entry point.
func (e *Engine) SubmitEvent(ctx context.Context, ev Event) (*EventOutcome, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	// Fast path: identity replayed within the process-local window.
	if e.dedup.SeenRecently(ev.ID) {
		return &EventOutcome{Status: StatusDuplicate}, nil
	}

	quest, err := e.quest(ctx, ev.QuestID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(ev.EntityKey())
	defer unlock()

	var (
		outcome   *EventOutcome
		committed []*models.RewardTransaction
	)

	apply := func(ctx context.Context, tx Tx) error {
		outcome = nil
		committed = committed[:0]

		admitted, err := tx.WasAdmitted(ctx, ev.ID)
		if err != nil {
			return err
		}
		if admitted {
			outcome = &EventOutcome{Status: StatusDuplicate}
			return nil
		}

		progress, err := tx.Progress(ctx, ev.ParticipantID, ev.QuestID)
		if err != nil {
			return err
		}

		// Sweeper events carry no client sequence and skip the staleness rule.
		if ev.Kind != EventExpire && progress != nil && e.dedup.StaleSeq(progress.LastSeq, ev.Seq) {
			outcome = &EventOutcome{Status: StatusDuplicate, State: progress.State}
			return nil
		}

		if ev.Kind == EventJoin && progress == nil {
			reject, err := e.checkJoin(ctx, tx, quest, ev.SubmittedAt)
			if err != nil {
				return err
			}
			if reject != nil {
				outcome = reject
				return nil
			}
		}

		next, effects, err := Reduce(progress.Clone(), quest, ev, e.cfg.Geofence, ev.SubmittedAt)
		if err != nil {
			return err
		}

		if err := tx.RecordAdmission(ctx, admissionRecord(ev)); err != nil {
			return err
		}
		if next != nil {
			if err := tx.SaveProgress(ctx, next); err != nil {
				return err
			}
		}

		outcome = &EventOutcome{Status: StatusAccepted}
		if next != nil {
			outcome.State = next.State
		}
		for _, eff := range effects {
			reward := &models.RewardTransaction{
				TxID:          RewardTxID(ev.ParticipantID, ev.QuestID, eff.Milestone),
				ParticipantID: ev.ParticipantID,
				QuestID:       ev.QuestID,
				City:          quest.City,
				Milestone:     eff.Milestone,
				Kind:          eff.Kind,
				Amount:        eff.Amount,
				CommittedAt:   ev.SubmittedAt,
				CreatedAt:     ev.SubmittedAt,
			}
			inserted, err := tx.CommitReward(ctx, reward)
			if err != nil {
				return err
			}
			if !inserted {
				// AlreadyCommitted: a prior application of this milestone won.
				continue
			}
			committed = append(committed, reward)
			if eff.Kind == models.RewardKindCheckpoint {
				outcome.Satisfied = append(outcome.Satisfied, eff.CheckpointSeq)
			}
			outcome.Rewards = append(outcome.Rewards, RewardGrant{
				TxID:      reward.TxID,
				Milestone: reward.Milestone,
				Kind:      reward.Kind,
				Amount:    reward.Amount,
			})
		}
		return nil
	}

	start := time.Now()
	if err := e.runWithRetry(ctx, apply); err != nil {
		logger.LogEvent(ev.ParticipantID, ev.QuestID, "rejected", time.Since(start), err)
		return nil, err
	}
	logger.LogEvent(ev.ParticipantID, ev.QuestID, string(outcome.Status), time.Since(start), nil)

	e.dedup.Remember(ev.ID)
	for _, reward := range committed {
		for _, l := range e.listeners {
			l.RewardCommitted(reward)
		}
	}
	return outcome, nil
}

// checkJoin enforces the quest window and capacity before a record exists.
// Business rejections leave no trace beyond the response.
func (e *Engine) checkJoin(ctx context.Context, tx Tx, quest *models.Quest, now time.Time) (*EventOutcome, error) {
	if !quest.Open(now) {
		return &EventOutcome{Status: StatusQuestClosed}, nil
	}
	count, err := tx.ParticipantCount(ctx, quest.QuestID)
	if err != nil {
		return nil, err
	}
	if quest.MaxParticipants > 0 && count >= quest.MaxParticipants {
		return &EventOutcome{Status: StatusCapacityExceeded}, nil
	}
	return nil, nil
}

func (e *Engine) runWithRetry(ctx context.Context, fn func(context.Context, Tx) error) error {
	var err error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("Retrying event transaction",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
		err = e.store.RunInTx(ctx, fn)
		if err == nil || !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
	}
	return fmt.Errorf("event transaction exhausted retries: %w", err)
}

func (e *Engine) quest(ctx context.Context, questID string) (*models.Quest, error) {
	if v, ok := e.quests.Get(questID); ok {
		entry := v.(cachedQuest)
		if time.Since(entry.cachedAt) < e.cfg.QuestCacheTTL {
			return entry.quest, nil
		}
		e.quests.Remove(questID)
	}
	quest, err := e.store.Quest(ctx, questID)
	if err != nil {
		return nil, err
	}
	// Quests are immutable once published, so caching is safe.
	e.quests.Add(questID, cachedQuest{quest: quest, cachedAt: time.Now()})
	return quest, nil
}

func validateEvent(ev Event) error {
	switch {
	case ev.ID == "":
		return fmt.Errorf("%w: missing event identity", ErrValidation)
	case ev.ParticipantID == "":
		return fmt.Errorf("%w: missing participant", ErrValidation)
	case ev.QuestID == "":
		return fmt.Errorf("%w: missing quest", ErrValidation)
	case ev.Seq < 0:
		return fmt.Errorf("%w: negative sequence number", ErrValidation)
	}
	switch ev.Kind {
	case EventJoin, EventLeave, EventExpire:
	case EventLocation:
		if ev.Sample == nil {
			return fmt.Errorf("%w: location event without sample", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, ev.Kind)
	}
	return nil
}

func admissionRecord(ev Event) *models.EventAdmission {
	admission := &models.EventAdmission{
		EventID:       ev.ID,
		ParticipantID: ev.ParticipantID,
		QuestID:       ev.QuestID,
		Kind:          string(ev.Kind),
		Seq:           ev.Seq,
		CreatedAt:     time.Now(),
	}
	if ev.Sample != nil {
		admission.ObservedAt = ev.Sample.ObservedAt
	}
	return admission
}
