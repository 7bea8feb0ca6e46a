package finance

import (
	"context"
	"fmt"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// GameResultInput is one simulated game outcome. WinnerOrgID 0 records a
// game without a winner.
type GameResultInput struct {
	LeagueYear  int   `json:"league_year"`
	Week        int   `json:"week"`
	HomeOrgID   int64 `json:"home_org_id"`
	AwayOrgID   int64 `json:"away_org_id"`
	WinnerOrgID int64 `json:"winner_org_id"`
}

// RecordGameResult stores a game outcome for later performance revenue.
func (b *Books) RecordGameResult(ctx context.Context, in GameResultInput) (*model.GameResult, error) {
	if in.Week < 1 {
		return nil, model.Invalidf("week must be >= 1, got %d", in.Week)
	}
	if in.HomeOrgID == in.AwayOrgID {
		return nil, model.Invalidf("home and away organization must differ")
	}
	if in.WinnerOrgID != 0 && in.WinnerOrgID != in.HomeOrgID && in.WinnerOrgID != in.AwayOrgID {
		return nil, model.Invalidf("winner %d did not play in this game", in.WinnerOrgID)
	}

	gr := &model.GameResult{
		LeagueYear:  in.LeagueYear,
		WeekIndex:   in.Week,
		HomeOrgID:   in.HomeOrgID,
		AwayOrgID:   in.AwayOrgID,
		WinnerOrgID: in.WinnerOrgID,
	}
	err := b.store.InTx(ctx, func(q store.Querier) error {
		ly, err := q.GetLeagueYear(ctx, in.LeagueYear)
		if err != nil {
			return err
		}
		if ly.WeeksInSeason > 0 && in.Week > ly.WeeksInSeason {
			return model.Invalidf("week %d is past the end of a %d-week season", in.Week, ly.WeeksInSeason)
		}
		for _, id := range []int64{in.HomeOrgID, in.AwayOrgID} {
			if _, err := q.GetOrganization(ctx, id); err != nil {
				return err
			}
		}
		if err := q.InsertGameResult(ctx, gr); err != nil {
			return fmt.Errorf("insert game result: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("game result recorded",
		"game_id", gr.ID,
		"league_year", gr.LeagueYear,
		"week", gr.WeekIndex,
		"winner_org_id", gr.WinnerOrgID,
	)
	return gr, nil
}
