package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
)

// Effect is a side effect produced by a state transition, to be converted
// into a ledger commit inside the same transaction.
type Effect struct {
	Milestone     string
	Kind          string
	Amount        int64
	CheckpointSeq int
}

// Reduce applies one admitted event to a participant's progress. It is a pure
// function of its inputs: no I/O, no clocks beyond the supplied now. For join
// events progress may be nil, in which case a new record is returned. The
// passed progress must be a private copy; Reduce mutates it.
//
// Reduce never grants rewards itself; it only describes them as effects. The
// caller owns admission, persistence and ledger commits, all inside one
// transaction.
func Reduce(progress *models.ParticipantProgress, quest *models.Quest, ev Event, cfg GeofenceConfig, now time.Time) (*models.ParticipantProgress, []Effect, error) {
	switch ev.Kind {
	case EventJoin:
		return reduceJoin(progress, quest, ev, now)
	case EventLocation:
		return reduceLocation(progress, quest, ev, cfg)
	case EventLeave:
		return reduceLeave(progress, ev, now)
	case EventExpire:
		return reduceExpire(progress, quest, ev, now)
	default:
		return nil, nil, fmt.Errorf("%w: unknown kind %q", ErrValidation, ev.Kind)
	}
}

func reduceJoin(progress *models.ParticipantProgress, quest *models.Quest, ev Event, now time.Time) (*models.ParticipantProgress, []Effect, error) {
	if progress != nil {
		// Re-join with a fresh nonce on a live or terminal record is a no-op;
		// the admission record stops further retries.
		applyEvent(progress, ev, now)
		return progress, nil, nil
	}

	progress = &models.ParticipantProgress{
		ParticipantID: ev.ParticipantID,
		QuestID:       quest.QuestID,
		State:         models.StateJoined,
		JoinedAt:      now,
		CreatedAt:     now,
	}
	applyEvent(progress, ev, now)
	return progress, nil, nil
}

func reduceLocation(progress *models.ParticipantProgress, quest *models.Quest, ev Event, cfg GeofenceConfig) (*models.ParticipantProgress, []Effect, error) {
	if ev.Sample == nil {
		return nil, nil, fmt.Errorf("%w: location event without sample", ErrValidation)
	}
	now := ev.Sample.ObservedAt
	if progress == nil || progress.Terminal() {
		// Late events on terminal records are admitted but change nothing.
		if progress != nil {
			applyEvent(progress, ev, now)
		}
		return progress, nil, nil
	}

	var effects []Effect
	for _, cp := range eligibleCheckpoints(progress, quest) {
		res := EvaluateGeofence(cfg, *ev.Sample, cp, progress.DwellStart(cp.Seq))
		if !res.Contained {
			progress.SetDwellStart(cp.Seq, nil)
			continue
		}
		if !res.Satisfied {
			progress.SetDwellStart(cp.Seq, res.DwellStart)
			continue
		}
		progress.MarkSatisfied(cp.Seq)
		effects = append(effects, Effect{
			Milestone:     CheckpointMilestone(cp.Seq),
			Kind:          models.RewardKindCheckpoint,
			Amount:        cp.Points,
			CheckpointSeq: cp.Seq,
		})
	}

	if len(effects) > 0 && progress.State == models.StateJoined {
		progress.State = models.StateInProgress
	}
	if len(progress.Satisfied) == len(quest.Checkpoints) && len(quest.Checkpoints) > 0 {
		progress.State = models.StateCompleted
		t := now
		progress.CompletedAt = &t
		progress.EndedAt = &t
		effects = append(effects, Effect{
			Milestone: CompletionMilestone,
			Kind:      models.RewardKindCompletion,
			Amount:    quest.CompletionBonus,
		})
	}

	applyEvent(progress, ev, now)
	return progress, effects, nil
}

func reduceLeave(progress *models.ParticipantProgress, ev Event, now time.Time) (*models.ParticipantProgress, []Effect, error) {
	if progress == nil || progress.Terminal() {
		if progress != nil {
			applyEvent(progress, ev, now)
		}
		return progress, nil, nil
	}
	progress.State = models.StateAbandoned
	t := now
	progress.EndedAt = &t
	applyEvent(progress, ev, now)
	return progress, nil, nil
}

func reduceExpire(progress *models.ParticipantProgress, quest *models.Quest, ev Event, now time.Time) (*models.ParticipantProgress, []Effect, error) {
	if progress == nil || progress.Terminal() || !quest.Ended(now) {
		if progress != nil {
			applyEvent(progress, ev, now)
		}
		return progress, nil, nil
	}
	progress.State = models.StateExpired
	t := now
	progress.EndedAt = &t
	applyEvent(progress, ev, now)
	return progress, nil, nil
}

// eligibleCheckpoints returns the unsatisfied checkpoints the ordering policy
// allows this sample to satisfy: the single next index under strict ordering,
// every remaining one under free ordering.
func eligibleCheckpoints(progress *models.ParticipantProgress, quest *models.Quest) []*models.Checkpoint {
	remaining := make([]*models.Checkpoint, 0, len(quest.Checkpoints))
	for _, cp := range quest.Checkpoints {
		if !progress.HasSatisfied(cp.Seq) {
			remaining = append(remaining, cp)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Seq < remaining[j].Seq })

	if quest.Ordering == models.OrderingStrict && len(remaining) > 1 {
		return remaining[:1]
	}
	return remaining
}

func applyEvent(progress *models.ParticipantProgress, ev Event, now time.Time) {
	progress.LastEventID = ev.ID
	if ev.Seq > progress.LastSeq {
		progress.LastSeq = ev.Seq
	}
	progress.UpdatedAt = now
}
