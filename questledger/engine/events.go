package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type EventKind string

const (
	EventJoin     EventKind = "join"
	EventLocation EventKind = "location"
	EventLeave    EventKind = "leave"
	EventExpire   EventKind = "expire"
)

// LocationSample is a client-reported position fix.
type LocationSample struct {
	Latitude   float64
	Longitude  float64
	AccuracyM  float64
	ObservedAt time.Time
}

// Event is a deduplicated unit of work for one (participant, quest) entity.
// ID is deterministic: the same logical submission always hashes to the same
// identity, so network retries collapse into duplicates.
type Event struct {
	ID            string
	Kind          EventKind
	ParticipantID string
	QuestID       string
	Seq           int64
	Sample        *LocationSample
	SubmittedAt   time.Time
}

// EventID derives the stable identity of an event from its participant, quest,
// kind and a client-supplied nonce.
func EventID(participantID, questID string, kind EventKind, nonce string) string {
	sum := sha256.Sum256([]byte(participantID + "\x00" + questID + "\x00" + string(kind) + "\x00" + nonce))
	return hex.EncodeToString(sum[:])
}

// NewEvent builds an event with its deterministic identity.
func NewEvent(kind EventKind, participantID, questID, nonce string, seq int64) Event {
	return Event{
		ID:            EventID(participantID, questID, kind, nonce),
		Kind:          kind,
		ParticipantID: participantID,
		QuestID:       questID,
		Seq:           seq,
		SubmittedAt:   time.Now(),
	}
}

// NewExpireEvent builds the synthetic event the sweeper injects when a quest
// window elapses. The nonce is derived from the quest end time, so repeated
// sweeps of the same record deduplicate naturally.
func NewExpireEvent(participantID, questID string, endTime time.Time) Event {
	nonce := "expire-" + endTime.UTC().Format(time.RFC3339)
	return NewEvent(EventExpire, participantID, questID, nonce, 0)
}

// EntityKey is the serialization key for per-entity event application.
func (e Event) EntityKey() string {
	return e.ParticipantID + "|" + e.QuestID
}

// RewardTxID derives the deterministic ledger identity for a milestone grant.
func RewardTxID(participantID, questID, milestone string) string {
	sum := sha256.Sum256([]byte("reward\x00" + participantID + "\x00" + questID + "\x00" + milestone))
	return hex.EncodeToString(sum[:])
}

// CheckpointMilestone names the milestone for a satisfied checkpoint.
func CheckpointMilestone(seq int) string {
	return fmt.Sprintf("checkpoint-%d", seq)
}

// CompletionMilestone names the full-completion milestone.
const CompletionMilestone = "completion"

type OutcomeStatus string

const (
	StatusAccepted         OutcomeStatus = "accepted"
	StatusDuplicate        OutcomeStatus = "duplicate"
	StatusCapacityExceeded OutcomeStatus = "capacity_exceeded"
	StatusQuestClosed      OutcomeStatus = "quest_closed"
)

// RewardGrant summarizes a ledger commit caused by an event, for client display.
type RewardGrant struct {
	TxID      string
	Milestone string
	Kind      string
	Amount    int64
}

// EventOutcome is the result of submitting one event.
type EventOutcome struct {
	Status    OutcomeStatus
	State     string
	Satisfied []int
	Rewards   []RewardGrant
}

// Accepted reports whether the event was applied or benignly deduplicated.
func (o *EventOutcome) Accepted() bool {
	return o.Status == StatusAccepted || o.Status == StatusDuplicate
}
