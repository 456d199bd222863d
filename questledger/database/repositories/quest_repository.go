package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
	"github.com/wayfarerlabs/questledger/questledger/engine"
)

type QuestRepository interface {
	GetQuest(ctx context.Context, questID string) (*models.Quest, error)
	GetQuestsByCity(ctx context.Context, city string) ([]*models.Quest, error)
	GetOpenQuests(ctx context.Context, now time.Time) ([]*models.Quest, error)
	CreateQuest(ctx context.Context, quest *models.Quest) error
}

type questRepository struct {
	db *bun.DB
}

func NewQuestRepository(db *bun.DB) QuestRepository {
	return &questRepository{db: db}
}

func (r *questRepository) GetQuest(ctx context.Context, questID string) (*models.Quest, error) {
	quest := new(models.Quest)
	err := r.db.NewSelect().
		Model(quest).
		Relation("Checkpoints", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("seq ASC")
		}).
		Where("quest_id = ?", questID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", engine.ErrUnknownQuest, questID)
		}
		return nil, err
	}

	return quest, nil
}

func (r *questRepository) GetQuestsByCity(ctx context.Context, city string) ([]*models.Quest, error) {
	var quests []*models.Quest
	err := r.db.NewSelect().
		Model(&quests).
		Where("city = ?", city).
		Order("start_time ASC", "quest_id ASC").
		Scan(ctx)

	return quests, err
}

func (r *questRepository) GetOpenQuests(ctx context.Context, now time.Time) ([]*models.Quest, error) {
	var quests []*models.Quest
	err := r.db.NewSelect().
		Model(&quests).
		Where("start_time <= ?", now).
		Where("end_time > ?", now).
		Order("end_time ASC").
		Scan(ctx)

	return quests, err
}

// CreateQuest inserts a quest and its checkpoints atomically. Quests are
// immutable once published; there is deliberately no update path.
func (r *questRepository) CreateQuest(ctx context.Context, quest *models.Quest) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		quest.CreatedAt = now
		quest.UpdatedAt = now

		if _, err := tx.NewInsert().Model(quest).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert quest: %w", err)
		}

		for _, cp := range quest.Checkpoints {
			cp.QuestID = quest.QuestID
			cp.CreatedAt = now
			cp.UpdatedAt = now
		}
		if len(quest.Checkpoints) > 0 {
			if _, err := tx.NewInsert().Model(&quest.Checkpoints).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert checkpoints: %w", err)
			}
		}
		return nil
	})
}
