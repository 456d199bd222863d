package models

import (
	"testing"
	"time"
)

func TestQuestWindow(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	q := &Quest{StartTime: start, EndTime: start.Add(24 * time.Hour)}

	tests := []struct {
		name      string
		now       time.Time
		wantOpen  bool
		wantEnded bool
	}{
		{"before start", start.Add(-time.Second), false, false},
		{"at start", start, true, false},
		{"mid window", start.Add(12 * time.Hour), true, false},
		{"at end", start.Add(24 * time.Hour), false, true},
		{"after end", start.Add(25 * time.Hour), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := q.Open(tt.now); got != tt.wantOpen {
				t.Errorf("Open() = %v, want %v", got, tt.wantOpen)
			}
			if got := q.Ended(tt.now); got != tt.wantEnded {
				t.Errorf("Ended() = %v, want %v", got, tt.wantEnded)
			}
		})
	}
}

func TestProgressDwellTracking(t *testing.T) {
	p := &ParticipantProgress{}
	if p.DwellStart(0) != nil {
		t.Error("empty record has a dwell start")
	}

	t0 := time.Now()
	p.SetDwellStart(0, &t0)
	if got := p.DwellStart(0); got == nil || !got.Equal(t0) {
		t.Errorf("DwellStart(0) = %v, want %v", got, t0)
	}

	p.SetDwellStart(0, nil)
	if p.DwellStart(0) != nil {
		t.Error("cleared dwell start still present")
	}

	// Satisfying a checkpoint clears its dwell tracking.
	p.SetDwellStart(1, &t0)
	p.MarkSatisfied(1)
	if p.DwellStart(1) != nil {
		t.Error("satisfied checkpoint kept its dwell start")
	}
	if !p.HasSatisfied(1) {
		t.Error("MarkSatisfied did not record the checkpoint")
	}

	// Marking twice does not duplicate the entry.
	p.MarkSatisfied(1)
	if len(p.Satisfied) != 1 {
		t.Errorf("satisfied list = %v, want one entry", p.Satisfied)
	}
}

func TestProgressClone(t *testing.T) {
	t0 := time.Now()
	orig := &ParticipantProgress{
		ParticipantID: "alice",
		QuestID:       "wall-trail",
		State:         StateInProgress,
		Satisfied:     []int{0},
		DwellStarts:   map[string]time.Time{"1": t0},
	}

	clone := orig.Clone()
	clone.MarkSatisfied(1)
	clone.SetDwellStart(2, &t0)
	clone.State = StateCompleted

	if len(orig.Satisfied) != 1 || orig.State != StateInProgress {
		t.Errorf("mutating the clone changed the original: %+v", orig)
	}
	if _, ok := orig.DwellStarts["2"]; ok {
		t.Error("clone shares the dwell map with the original")
	}

	var nilProgress *ParticipantProgress
	if nilProgress.Clone() != nil {
		t.Error("Clone of nil is not nil")
	}
}

func TestProgressTerminal(t *testing.T) {
	for state, want := range map[string]bool{
		StateJoined:     false,
		StateInProgress: false,
		StateCompleted:  true,
		StateAbandoned:  true,
		StateExpired:    true,
	} {
		p := &ParticipantProgress{State: state}
		if got := p.Terminal(); got != want {
			t.Errorf("Terminal() for %s = %v, want %v", state, got, want)
		}
	}
}
