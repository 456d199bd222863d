package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
	"github.com/wayfarerlabs/questledger/questledger/engine"
)

// StaleProgress is one sweep candidate: a non-terminal record whose quest
// window has elapsed.
type StaleProgress struct {
	ParticipantID string
	QuestID       string
	QuestEndTime  time.Time
}

type ProgressRepository interface {
	GetProgress(ctx context.Context, participantID, questID string) (*models.ParticipantProgress, error)
	GetParticipantProgress(ctx context.Context, participantID string) ([]*models.ParticipantProgress, error)
	ListStale(ctx context.Context, now time.Time, limit int) ([]StaleProgress, error)
}

type progressRepository struct {
	db *bun.DB
}

func NewProgressRepository(db *bun.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) GetProgress(ctx context.Context, participantID, questID string) (*models.ParticipantProgress, error) {
	progress := new(models.ParticipantProgress)
	err := r.db.NewSelect().
		Model(progress).
		Where("participant_id = ? AND quest_id = ?", participantID, questID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrNotFound
		}
		return nil, err
	}

	return progress, nil
}

func (r *progressRepository) GetParticipantProgress(ctx context.Context, participantID string) ([]*models.ParticipantProgress, error) {
	var progress []*models.ParticipantProgress
	err := r.db.NewSelect().
		Model(&progress).
		Where("participant_id = ?", participantID).
		Order("joined_at DESC").
		Scan(ctx)

	return progress, err
}

// ListStale returns sweep candidates ordered by quest end time, oldest first.
// The sweeper takes no locks here; each record is expired through the normal
// per-entity event path.
func (r *progressRepository) ListStale(ctx context.Context, now time.Time, limit int) ([]StaleProgress, error) {
	var stale []StaleProgress
	err := r.db.NewSelect().
		Model((*models.ParticipantProgress)(nil)).
		ColumnExpr("pp.participant_id").
		ColumnExpr("pp.quest_id").
		ColumnExpr("q.end_time AS quest_end_time").
		Join("JOIN quests q ON q.quest_id = pp.quest_id").
		Where("pp.state IN (?)", bun.In([]string{models.StateJoined, models.StateInProgress})).
		Where("q.end_time <= ?", now).
		Order("q.end_time ASC").
		Limit(limit).
		Scan(ctx, &stale)

	return stale, err
}
