package repositories

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
)

var ErrRewardNotFound = errors.New("reward transaction not found")

const historyBatchSize = 100

type RewardRepository interface {
	GetTotalPoints(ctx context.Context, participantID string) (int64, error)
	History(participantID string) *RewardHistoryIterator
	// ScanAll streams every committed transaction in deterministic commit
	// order; used to rebuild the leaderboard aggregator.
	ScanAll(ctx context.Context, fn func(*models.RewardTransaction) error) error
	ScanSince(ctx context.Context, since time.Time, fn func(*models.RewardTransaction) error) error
	// Compensate appends a reversing entry for a prior commit. The original
	// is never mutated; history stays append-only.
	Compensate(ctx context.Context, origTxID string) (*models.RewardTransaction, error)
}

type rewardRepository struct {
	db *bun.DB
}

func NewRewardRepository(db *bun.DB) RewardRepository {
	return &rewardRepository{db: db}
}

func (r *rewardRepository) GetTotalPoints(ctx context.Context, participantID string) (int64, error) {
	balance := new(models.RewardBalance)
	err := r.db.NewSelect().
		Model(balance).
		Where("participant_id = ?", participantID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	return balance.TotalPoints, nil
}

// RewardHistoryIterator pages through a participant's committed transactions
// in commit order. It is finite and restartable: a fresh iterator replays the
// same prefix, and Reset rewinds an existing one.
type RewardHistoryIterator struct {
	db            *bun.DB
	participantID string
	afterID       int64
	buf           []*models.RewardTransaction
	done          bool
}

func (r *rewardRepository) History(participantID string) *RewardHistoryIterator {
	return &RewardHistoryIterator{db: r.db, participantID: participantID}
}

// Next returns the next transaction, or nil once the history is exhausted.
func (it *RewardHistoryIterator) Next(ctx context.Context) (*models.RewardTransaction, error) {
	if len(it.buf) == 0 {
		if it.done {
			return nil, nil
		}
		var batch []*models.RewardTransaction
		err := it.db.NewSelect().
			Model(&batch).
			Where("participant_id = ?", it.participantID).
			Where("id > ?", it.afterID).
			Order("id ASC").
			Limit(historyBatchSize).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to page reward history: %w", err)
		}
		if len(batch) < historyBatchSize {
			it.done = true
		}
		if len(batch) == 0 {
			return nil, nil
		}
		it.buf = batch
	}

	next := it.buf[0]
	it.buf = it.buf[1:]
	it.afterID = next.ID
	return next, nil
}

// Reset rewinds the iterator to the start of the history.
func (it *RewardHistoryIterator) Reset() {
	it.afterID = 0
	it.buf = nil
	it.done = false
}

func (r *rewardRepository) ScanAll(ctx context.Context, fn func(*models.RewardTransaction) error) error {
	return r.scan(ctx, time.Time{}, fn)
}

func (r *rewardRepository) ScanSince(ctx context.Context, since time.Time, fn func(*models.RewardTransaction) error) error {
	return r.scan(ctx, since, fn)
}

func (r *rewardRepository) scan(ctx context.Context, since time.Time, fn func(*models.RewardTransaction) error) error {
	var afterID int64
	for {
		var batch []*models.RewardTransaction
		q := r.db.NewSelect().
			Model(&batch).
			Where("id > ?", afterID).
			Order("id ASC").
			Limit(historyBatchSize)
		if !since.IsZero() {
			q = q.Where("committed_at >= ?", since)
		}
		if err := q.Scan(ctx); err != nil {
			return fmt.Errorf("failed to scan ledger: %w", err)
		}
		for _, tx := range batch {
			if err := fn(tx); err != nil {
				return err
			}
			afterID = tx.ID
		}
		if len(batch) < historyBatchSize {
			return nil
		}
	}
}

func (r *rewardRepository) Compensate(ctx context.Context, origTxID string) (*models.RewardTransaction, error) {
	var comp *models.RewardTransaction
	err := r.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		orig := new(models.RewardTransaction)
		err := tx.NewSelect().
			Model(orig).
			Where("tx_id = ?", origTxID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrRewardNotFound, origTxID)
			}
			return err
		}

		now := time.Now()
		comp = &models.RewardTransaction{
			TxID:          compensationTxID(origTxID),
			ParticipantID: orig.ParticipantID,
			QuestID:       orig.QuestID,
			City:          orig.City,
			Milestone:     orig.Milestone,
			Kind:          models.RewardKindCompensation,
			Amount:        -orig.Amount,
			RefTxID:       &orig.TxID,
			CommittedAt:   now,
			CreatedAt:     now,
		}

		result, err := tx.NewInsert().
			Model(comp).
			On("CONFLICT (tx_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to append compensation: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			// Already compensated; idempotent no-op.
			comp = nil
			return nil
		}

		_, err = tx.NewInsert().
			Model(&models.RewardBalance{
				ParticipantID: comp.ParticipantID,
				TotalPoints:   comp.Amount,
				UpdatedAt:     now,
			}).
			On("CONFLICT (participant_id) DO UPDATE").
			Set("total_points = rb.total_points + EXCLUDED.total_points").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return comp, nil
}

// compensationTxID derives the deterministic identity of the reversing entry,
// so compensating twice is a no-op.
func compensationTxID(origTxID string) string {
	sum := sha256.Sum256([]byte("compensation\x00" + origTxID))
	return hex.EncodeToString(sum[:])
}
