package services

import (
	"context"
	"time"

	"mfanalytics/analytics"

	"go.uber.org/zap"
)

type RescreenSummary struct {
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// RescreenAll re-runs every saved screen against fresh NAV data and stores
// the new shortlist under the same id, keeping the first creation time.
func RescreenAll(ctx context.Context, store ScreenStore, analysis AnalysisServiceI) RescreenSummary {
	zap.L().Info("Starting saved screen refresh")

	summary := RescreenSummary{}
	err := store.Each(ctx, func(screen SavedScreen) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		zap.L().Info("Processing screen",
			zap.String("id", screen.ID),
			zap.String("keyword", screen.Keyword))

		rf := screen.RiskFreeRate
		result, err := analysis.SelectFunds(ctx, SelectRequest{
			Keyword:       screen.Keyword,
			Codes:         screen.Codes,
			BenchmarkCode: screen.BenchmarkCode,
			Window:        screen.Window,
			RiskFreeRate:  &rf,
			Thresholds:    screen.Thresholds,
			ScreenID:      screen.ID,
		})
		if err != nil {
			zap.L().Error("Error re-running screen", zap.String("id", screen.ID), zap.Error(err))
			summary.Errors++
			return nil
		}

		shortlist := make([]analytics.FundIdentity, len(result.Shortlist))
		for i, m := range result.Shortlist {
			shortlist[i] = m.Fund
		}
		screen.Shortlist = shortlist
		screen.Excluded = result.Table.Excluded
		screen.Evaluated = len(result.Table.Rows) + len(result.Table.Excluded)
		screen.UpdatedAt = time.Now()

		if err := store.Save(ctx, screen); err != nil {
			zap.L().Error("Error updating screen", zap.String("id", screen.ID), zap.Error(err))
			summary.Errors++
			return nil
		}
		summary.Updated++
		return nil
	})
	if err != nil {
		zap.L().Error("Error iterating saved screens", zap.Error(err))
	}

	zap.L().Info("Saved screen refresh completed",
		zap.Int("updated", summary.Updated),
		zap.Int("errors", summary.Errors))
	return summary
}
