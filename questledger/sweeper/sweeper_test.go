package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wayfarerlabs/questledger/questledger/database/repositories"
	"github.com/wayfarerlabs/questledger/questledger/engine"
)

type fakeLister struct {
	stale []repositories.StaleProgress
	err   error
}

func (f *fakeLister) ListStale(ctx context.Context, now time.Time, limit int) ([]repositories.StaleProgress, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.stale) {
		return f.stale[:limit], nil
	}
	return f.stale, nil
}

type fakeSubmitter struct {
	mu       sync.Mutex
	events   []engine.Event
	statuses map[string]engine.OutcomeStatus // participant ID -> forced status
	err      error
}

func (f *fakeSubmitter) SubmitEvent(ctx context.Context, ev engine.Event) (*engine.EventOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.events = append(f.events, ev)
	status := engine.StatusAccepted
	if s, ok := f.statuses[ev.ParticipantID]; ok {
		status = s
	}
	return &engine.EventOutcome{Status: status}, nil
}

func TestSweepOnce_ExpiresStaleRecords(t *testing.T) {
	end := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{stale: []repositories.StaleProgress{
		{ParticipantID: "alice", QuestID: "wall-trail", QuestEndTime: end},
		{ParticipantID: "bob", QuestID: "wall-trail", QuestEndTime: end},
		{ParticipantID: "carol", QuestID: "museum-hop", QuestEndTime: end.Add(time.Hour)},
	}}
	submitter := &fakeSubmitter{}

	s := New(lister, submitter, DefaultConfig())
	if err := s.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	if len(submitter.events) != 3 {
		t.Fatalf("submitted %d events, want 3", len(submitter.events))
	}
	for _, ev := range submitter.events {
		if ev.Kind != engine.EventExpire {
			t.Errorf("event kind = %s, want expire", ev.Kind)
		}
	}

	// The derived identity is stable across sweeps of the same record.
	first := submitter.events[0]
	replay := engine.NewExpireEvent(first.ParticipantID, first.QuestID, end)
	if first.ParticipantID == "alice" && first.ID != replay.ID {
		t.Error("expire event identity not stable across sweeps")
	}
}

func TestSweepOnce_EmptyBatch(t *testing.T) {
	submitter := &fakeSubmitter{}
	s := New(&fakeLister{}, submitter, DefaultConfig())
	if err := s.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if len(submitter.events) != 0 {
		t.Errorf("empty batch submitted %d events", len(submitter.events))
	}
}

func TestSweepOnce_ListFailure(t *testing.T) {
	wantErr := errors.New("connection refused")
	s := New(&fakeLister{err: wantErr}, &fakeSubmitter{}, DefaultConfig())
	if err := s.SweepOnce(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("SweepOnce() error = %v, want %v", err, wantErr)
	}
}

func TestSweepOnce_SubmitFailureDoesNotAbortBatch(t *testing.T) {
	// Submission errors are logged per record; the sweep itself succeeds and
	// the next tick retries.
	lister := &fakeLister{stale: []repositories.StaleProgress{
		{ParticipantID: "alice", QuestID: "wall-trail", QuestEndTime: time.Now().Add(-time.Hour)},
	}}
	s := New(lister, &fakeSubmitter{err: errors.New("transient")}, DefaultConfig())
	if err := s.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce() error = %v, want nil", err)
	}
}

func TestSweepOnce_RespectsBatchSize(t *testing.T) {
	var stale []repositories.StaleProgress
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		stale = append(stale, repositories.StaleProgress{ParticipantID: id, QuestID: "q", QuestEndTime: time.Now().Add(-time.Hour)})
	}
	submitter := &fakeSubmitter{}
	cfg := DefaultConfig()
	cfg.BatchSize = 2

	if err := New(&fakeLister{stale: stale}, submitter, cfg).SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if len(submitter.events) != 2 {
		t.Errorf("submitted %d events, want batch of 2", len(submitter.events))
	}
}
