package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
	"github.com/wayfarerlabs/questledger/questledger/engine"
)

const txTimeout = 10 * time.Second

// LedgerStore is the Postgres implementation of engine.Store. Each RunInTx
// call is one serializable transaction; serialization and deadlock failures
// surface as engine.ErrConcurrencyConflict so the engine retries them.
type LedgerStore struct {
	db *bun.DB
}

func NewLedgerStore(db *bun.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Quest(ctx context.Context, questID string) (*models.Quest, error) {
	quest := new(models.Quest)
	err := s.db.NewSelect().
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
		return nil, wrapStoreErr("load quest", err)
	}
	return quest, nil
}

func (s *LedgerStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(timeoutCtx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return wrapStoreErr("begin", err)
	}
	defer tx.Rollback()

	if err := fn(timeoutCtx, &ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("commit", err)
	}
	return nil
}

type ledgerTx struct {
	tx bun.Tx
}

func (t *ledgerTx) Progress(ctx context.Context, participantID, questID string) (*models.ParticipantProgress, error) {
	progress := new(models.ParticipantProgress)
	err := t.tx.NewSelect().
		Model(progress).
		Where("participant_id = ? AND quest_id = ?", participantID, questID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreErr("load progress", err)
	}
	return progress, nil
}

func (t *ledgerTx) SaveProgress(ctx context.Context, progress *models.ParticipantProgress) error {
	if progress.ID == 0 {
		_, err := t.tx.NewInsert().Model(progress).Exec(ctx)
		if err != nil {
			return wrapStoreErr("insert progress", err)
		}
		return nil
	}
	_, err := t.tx.NewUpdate().Model(progress).WherePK().Exec(ctx)
	if err != nil {
		return wrapStoreErr("update progress", err)
	}
	return nil
}

func (t *ledgerTx) ParticipantCount(ctx context.Context, questID string) (int, error) {
	// Abandoned and expired records release their capacity slot.
	count, err := t.tx.NewSelect().
		Model((*models.ParticipantProgress)(nil)).
		Where("quest_id = ?", questID).
		Where("state IN (?)", bun.In([]string{
			models.StateJoined, models.StateInProgress, models.StateCompleted,
		})).
		Count(ctx)
	if err != nil {
		return 0, wrapStoreErr("count participants", err)
	}
	return count, nil
}

func (t *ledgerTx) WasAdmitted(ctx context.Context, eventID string) (bool, error) {
	exists, err := t.tx.NewSelect().
		Model((*models.EventAdmission)(nil)).
		Where("event_id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, wrapStoreErr("check admission", err)
	}
	return exists, nil
}

func (t *ledgerTx) RecordAdmission(ctx context.Context, admission *models.EventAdmission) error {
	_, err := t.tx.NewInsert().Model(admission).Exec(ctx)
	if err != nil {
		return wrapStoreErr("record admission", err)
	}
	return nil
}

func (t *ledgerTx) CommitReward(ctx context.Context, reward *models.RewardTransaction) (bool, error) {
	result, err := t.tx.NewInsert().
		Model(reward).
		On("CONFLICT (tx_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, wrapStoreErr("append reward", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return false, nil
	}

	// Running total moves in the same transaction as the append.
	_, err = t.tx.NewInsert().
		Model(&models.RewardBalance{
			ParticipantID: reward.ParticipantID,
			TotalPoints:   reward.Amount,
			UpdatedAt:     reward.CommittedAt,
		}).
		On("CONFLICT (participant_id) DO UPDATE").
		Set("total_points = rb.total_points + EXCLUDED.total_points").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return false, wrapStoreErr("update balance", err)
	}
	return true, nil
}

// wrapStoreErr maps retryable Postgres failures to the engine's taxonomy and
// wraps everything else as a storage failure.
func wrapStoreErr(op string, err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: %w", op, engine.ErrConcurrencyConflict)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, engine.ErrStorage, err)
}
