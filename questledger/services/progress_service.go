package services

import (
	"context"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
	"github.com/wayfarerlabs/questledger/questledger/database/repositories"
	"github.com/wayfarerlabs/questledger/questledger/leaderboard"
)

// ProgressService is the read surface exposed to collaborators. Writes go
// exclusively through engine.SubmitEvent.
type ProgressService struct {
	progressRepo repositories.ProgressRepository
	rewardRepo   repositories.RewardRepository
	aggregator   *leaderboard.Aggregator
}

func NewProgressService(progressRepo repositories.ProgressRepository, rewardRepo repositories.RewardRepository, aggregator *leaderboard.Aggregator) *ProgressService {
	return &ProgressService{
		progressRepo: progressRepo,
		rewardRepo:   rewardRepo,
		aggregator:   aggregator,
	}
}

// GetProgress returns the live record for the entity, or engine.ErrNotFound.
func (s *ProgressService) GetProgress(ctx context.Context, participantID, questID string) (*models.ParticipantProgress, error) {
	return s.progressRepo.GetProgress(ctx, participantID, questID)
}

// GetLeaderboard returns the top n entries for a scope from the live aggregator.
func (s *ProgressService) GetLeaderboard(scope leaderboard.Scope, n int) []leaderboard.Entry {
	return s.aggregator.TopN(scope, n)
}

// GetRank returns a participant's rank within a scope.
func (s *ProgressService) GetRank(scope leaderboard.Scope, participantID string) (int, bool) {
	return s.aggregator.RankOf(scope, participantID)
}

// RewardHistory returns a finite, restartable iterator over the participant's
// committed reward transactions.
func (s *ProgressService) RewardHistory(participantID string) *repositories.RewardHistoryIterator {
	return s.rewardRepo.History(participantID)
}

// TotalPoints returns the participant's running total from the ledger balance.
func (s *ProgressService) TotalPoints(ctx context.Context, participantID string) (int64, error) {
	return s.rewardRepo.GetTotalPoints(ctx, participantID)
}
