package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
)

var testBase = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testQuest(ordering string) *models.Quest {
	return &models.Quest{
		QuestID:         "wall-trail",
		City:            "berlin",
		Ordering:        ordering,
		StartTime:       testBase.Add(-time.Hour),
		EndTime:         testBase.Add(24 * time.Hour),
		MaxParticipants: 50,
		CompletionBonus: 500,
		Checkpoints: []*models.Checkpoint{
			{QuestID: "wall-trail", Seq: 0, Name: "East Side Gallery", Latitude: 52.5050, Longitude: 13.4399, RadiusM: 50, Points: 100},
			{QuestID: "wall-trail", Seq: 1, Name: "Checkpoint Charlie", Latitude: 52.5076, Longitude: 13.3904, RadiusM: 50, Points: 150},
		},
	}
}

func locationEvent(nonce string, seq int64, lat, lon float64, at time.Time) Event {
	ev := NewEvent(EventLocation, "alice", "wall-trail", nonce, seq)
	ev.SubmittedAt = at
	ev.Sample = &LocationSample{Latitude: lat, Longitude: lon, AccuracyM: 5, ObservedAt: at}
	return ev
}

func joinedProgress() *models.ParticipantProgress {
	return &models.ParticipantProgress{
		ParticipantID: "alice",
		QuestID:       "wall-trail",
		State:         models.StateJoined,
		JoinedAt:      testBase,
	}
}

func TestReduce_JoinCreatesRecord(t *testing.T) {
	quest := testQuest(models.OrderingStrict)
	ev := NewEvent(EventJoin, "alice", "wall-trail", "n1", 1)
	ev.SubmittedAt = testBase

	progress, effects, err := Reduce(nil, quest, ev, DefaultGeofenceConfig(), testBase)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(effects) != 0 {
		t.Errorf("join produced %d effects, want 0", len(effects))
	}
	if progress == nil || progress.State != models.StateJoined {
		t.Fatalf("join progress = %+v, want joined record", progress)
	}
	if progress.LastEventID != ev.ID || progress.LastSeq != 1 {
		t.Errorf("event watermark not applied: lastEventID=%q lastSeq=%d", progress.LastEventID, progress.LastSeq)
	}
	if !progress.JoinedAt.Equal(testBase) {
		t.Errorf("JoinedAt = %v, want %v", progress.JoinedAt, testBase)
	}
}

func TestReduce_StrictOrdering(t *testing.T) {
	quest := testQuest(models.OrderingStrict)
	cfg := DefaultGeofenceConfig()
	progress := joinedProgress()

	// Visiting the second checkpoint first is accepted but satisfies nothing.
	out, effects, err := Reduce(progress, quest, locationEvent("n2", 2, 52.5076, 13.3904, testBase.Add(time.Minute)), cfg, testBase)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(effects) != 0 {
		t.Fatalf("out-of-order visit produced effects: %+v", effects)
	}
	if len(out.Satisfied) != 0 || out.State != models.StateJoined {
		t.Fatalf("out-of-order visit changed progress: %+v", out)
	}

	// The first checkpoint satisfies and moves the record to in_progress.
	out, effects, err = Reduce(out, quest, locationEvent("n3", 3, 52.5050, 13.4399, testBase.Add(2*time.Minute)), cfg, testBase)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(effects) != 1 || effects[0].Milestone != "checkpoint-0" || effects[0].Amount != 100 {
		t.Fatalf("first checkpoint effects = %+v", effects)
	}
	if out.State != models.StateInProgress || !out.HasSatisfied(0) {
		t.Fatalf("after first checkpoint: %+v", out)
	}

	// The second checkpoint completes the quest and adds the bonus effect.
	out, effects, err = Reduce(out, quest, locationEvent("n4", 4, 52.5076, 13.3904, testBase.Add(3*time.Minute)), cfg, testBase)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(effects) != 2 {
		t.Fatalf("completion effects = %+v, want checkpoint + bonus", effects)
	}
	if effects[0].Milestone != "checkpoint-1" || effects[0].Amount != 150 {
		t.Errorf("checkpoint effect = %+v", effects[0])
	}
	if effects[1].Milestone != CompletionMilestone || effects[1].Amount != 500 {
		t.Errorf("bonus effect = %+v", effects[1])
	}
	if out.State != models.StateCompleted || out.CompletedAt == nil {
		t.Fatalf("after completion: state=%q completedAt=%v", out.State, out.CompletedAt)
	}
}

func TestReduce_FreeOrderingSatisfiesAnyCheckpoint(t *testing.T) {
	quest := testQuest(models.OrderingFree)
	progress := joinedProgress()

	out, effects, err := Reduce(progress, quest, locationEvent("n2", 2, 52.5076, 13.3904, testBase.Add(time.Minute)), DefaultGeofenceConfig(), testBase)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(effects) != 1 || effects[0].Milestone != "checkpoint-1" {
		t.Fatalf("free-order visit effects = %+v, want checkpoint-1", effects)
	}
	if !out.HasSatisfied(1) || out.HasSatisfied(0) {
		t.Errorf("satisfied set = %v, want only checkpoint 1", out.Satisfied)
	}
}

func TestReduce_DwellAcrossEvents(t *testing.T) {
	quest := testQuest(models.OrderingStrict)
	quest.Checkpoints = quest.Checkpoints[:1]
	quest.Checkpoints[0].MinDwellSec = 60
	cfg := DefaultGeofenceConfig()

	inside := func(nonce string, seq int64, at time.Time) Event {
		return locationEvent(nonce, seq, 52.5050, 13.4399, at)
	}

	// First contained sample starts the dwell clock.
	out, effects, err := Reduce(joinedProgress(), quest, inside("n1", 1, testBase), cfg, testBase)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(effects) != 0 {
		t.Fatalf("dwell not yet met but effects = %+v", effects)
	}
	if out.DwellStart(0) == nil {
		t.Fatal("dwell clock not started")
	}

	// Leaving the fence resets the clock.
	out, _, err = Reduce(out, quest, locationEvent("n2", 2, 52.5300, 13.4399, testBase.Add(30*time.Second)), cfg, testBase)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if out.DwellStart(0) != nil {
		t.Fatal("dwell clock survived a containment gap")
	}

	// Re-entry restarts; only continuous presence satisfies.
	out, effects, err = Reduce(out, quest, inside("n3", 3, testBase.Add(time.Minute)), cfg, testBase)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(effects) != 0 {
		t.Fatalf("re-entry satisfied immediately: %+v", effects)
	}

	out, effects, err = Reduce(out, quest, inside("n4", 4, testBase.Add(time.Minute+61*time.Second)), cfg, testBase)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(effects) != 2 {
		t.Fatalf("dwell met effects = %+v, want checkpoint + bonus", effects)
	}
	if !out.HasSatisfied(0) || out.State != models.StateCompleted {
		t.Fatalf("after dwell met: %+v", out)
	}
}

func TestReduce_LeaveAbandons(t *testing.T) {
	quest := testQuest(models.OrderingStrict)
	ev := NewEvent(EventLeave, "alice", "wall-trail", "n9", 9)
	ev.SubmittedAt = testBase.Add(time.Hour)

	out, effects, err := Reduce(joinedProgress(), quest, ev, DefaultGeofenceConfig(), ev.SubmittedAt)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(effects) != 0 {
		t.Errorf("leave produced effects: %+v", effects)
	}
	if out.State != models.StateAbandoned || out.EndedAt == nil {
		t.Fatalf("after leave: state=%q endedAt=%v", out.State, out.EndedAt)
	}
}

func TestReduce_TerminalRecordsAreImmutable(t *testing.T) {
	quest := testQuest(models.OrderingStrict)
	cfg := DefaultGeofenceConfig()

	for _, state := range []string{models.StateCompleted, models.StateAbandoned, models.StateExpired} {
		progress := joinedProgress()
		progress.State = state

		out, effects, err := Reduce(progress, quest, locationEvent("n5", 5, 52.5050, 13.4399, testBase), cfg, testBase)
		if err != nil {
			t.Fatalf("state %s: Reduce() error = %v", state, err)
		}
		if len(effects) != 0 {
			t.Errorf("state %s: terminal record produced effects %+v", state, effects)
		}
		if out.State != state {
			t.Errorf("state %s: terminal record transitioned to %s", state, out.State)
		}
	}
}

func TestReduce_ExpireOnlyAfterQuestEnd(t *testing.T) {
	quest := testQuest(models.OrderingStrict)
	cfg := DefaultGeofenceConfig()

	// Before the window closes the expire event is a no-op.
	ev := NewExpireEvent("alice", "wall-trail", quest.EndTime)
	out, _, err := Reduce(joinedProgress(), quest, ev, cfg, quest.EndTime.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if out.State != models.StateJoined {
		t.Fatalf("early expire transitioned record to %s", out.State)
	}

	// After the window closes the record expires.
	out, _, err = Reduce(joinedProgress(), quest, ev, cfg, quest.EndTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if out.State != models.StateExpired || out.EndedAt == nil {
		t.Fatalf("after expire: state=%q endedAt=%v", out.State, out.EndedAt)
	}
}

func TestReduce_UnknownKind(t *testing.T) {
	quest := testQuest(models.OrderingStrict)
	ev := Event{ID: "x", Kind: EventKind("teleport"), ParticipantID: "alice", QuestID: "wall-trail"}

	if _, _, err := Reduce(nil, quest, ev, DefaultGeofenceConfig(), testBase); !errors.Is(err, ErrValidation) {
		t.Fatalf("Reduce() error = %v, want ErrValidation", err)
	}
}
