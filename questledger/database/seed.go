package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
)

// SeedDemoQuests inserts a small demo catalog for development environments.
// Quests are immutable once published, so existing rows are left untouched.
func (db *DB) SeedDemoQuests(ctx context.Context) error {
	count, err := db.bunDB.NewSelect().
		Model((*models.Quest)(nil)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count quests: %w", err)
	}
	if count > 0 {
		slog.Info("Quest catalog already seeded, skipping", slog.Int("quests", count))
		return nil
	}

	now := time.Now()
	quests := []*models.Quest{
		{
			QuestID:         "berlin-wall-trail",
			Name:            "Wall Trail",
			Description:     "Follow the path of the former Berlin Wall through Mitte.",
			City:            "berlin",
			Difficulty:      models.DifficultyEasy,
			Ordering:        models.OrderingStrict,
			StartTime:       now,
			EndTime:         now.Add(30 * 24 * time.Hour),
			MaxParticipants: 200,
			CompletionBonus: 500,
			Checkpoints: []*models.Checkpoint{
				{Seq: 0, Name: "East Side Gallery", Hint: "Longest surviving stretch", Latitude: 52.5050, Longitude: 13.4399, RadiusM: 50, Points: 100},
				{Seq: 1, Name: "Checkpoint Charlie", Hint: "The famous crossing", Latitude: 52.5076, Longitude: 13.3904, RadiusM: 40, Points: 100},
				{Seq: 2, Name: "Bernauer Strasse Memorial", Hint: "Where the wall split a street", Latitude: 52.5354, Longitude: 13.3903, RadiusM: 60, MinDwellSec: 60, Points: 150},
			},
		},
		{
			QuestID:         "berlin-museum-hop",
			Name:            "Museum Island Hop",
			Description:     "Visit the museums of Museumsinsel in any order.",
			City:            "berlin",
			Difficulty:      models.DifficultyMedium,
			Ordering:        models.OrderingFree,
			StartTime:       now,
			EndTime:         now.Add(14 * 24 * time.Hour),
			MaxParticipants: 100,
			CompletionBonus: 750,
			Checkpoints: []*models.Checkpoint{
				{Seq: 0, Name: "Pergamonmuseum", Latitude: 52.5212, Longitude: 13.3966, RadiusM: 45, Points: 120},
				{Seq: 1, Name: "Altes Museum", Latitude: 52.5196, Longitude: 13.3989, RadiusM: 45, Points: 120},
				{Seq: 2, Name: "Bode-Museum", Latitude: 52.5220, Longitude: 13.3946, RadiusM: 45, Points: 120},
				{Seq: 3, Name: "Alte Nationalgalerie", Latitude: 52.5206, Longitude: 13.3982, RadiusM: 45, MinDwellSec: 120, Points: 150},
			},
		},
	}

	for _, quest := range quests {
		quest.CreatedAt = now
		quest.UpdatedAt = now
		if _, err := db.bunDB.NewInsert().Model(quest).Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed quest %s: %w", quest.QuestID, err)
		}
		for _, cp := range quest.Checkpoints {
			cp.QuestID = quest.QuestID
			cp.CreatedAt = now
			cp.UpdatedAt = now
		}
		if _, err := db.bunDB.NewInsert().Model(&quest.Checkpoints).Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed checkpoints for %s: %w", quest.QuestID, err)
		}
	}

	slog.Info("Demo quest catalog seeded", slog.Int("quests", len(quests)))
	return nil
}
