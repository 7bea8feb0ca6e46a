// Package finance posts league cash flow to the immutable ledger and
// reconstructs organization balances from it.
//
// Three posting granularities exist per league year: year-start (media
// payouts and signing bonuses), weekly (salary and performance revenue)
// and year-end (interest). Every phase is idempotent so a partially-run
// season can be re-invoked safely.
//
// Money is shopspring/decimal throughout; float64 never holds an amount.
package finance

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/metrics"
	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// InterestRate is the fixed annual rate applied to year-end balances.
var InterestRate = decimal.New(5, -2)

// WinWindowYears is how many league years the rolling win total spans,
// the target year included.
const WinWindowYears = 3

// Week status values.
const (
	StatusProcessed        = "processed"
	StatusAlreadyProcessed = "already_processed"
)

// Books runs the ledger posting phases.
type Books struct {
	store  store.Store
	logger *slog.Logger
}

// NewBooks creates a books engine. A nil logger uses slog.Default().
func NewBooks(st store.Store, logger *slog.Logger) *Books {
	if logger == nil {
		logger = slog.Default()
	}
	return &Books{store: st, logger: logger}
}

// YearStartResult reports what year-start posting did.
type YearStartResult struct {
	LeagueYear    int `json:"league_year"`
	MediaCreated  int `json:"media_created"`
	MediaSkipped  int `json:"media_skipped"`
	BonusCreated  int `json:"bonus_created"`
	BonusSkipped  int `json:"bonus_skipped"`
	BuyoutCreated int `json:"buyout_created"`
	BuyoutSkipped int `json:"buyout_skipped"`
}

// Summary returns a human-readable summary of the phase.
func (r *YearStartResult) Summary() string {
	return fmt.Sprintf(
		"year=%d media=%d/%d bonus=%d/%d buyout=%d/%d (created/skipped)",
		r.LeagueYear, r.MediaCreated, r.MediaSkipped,
		r.BonusCreated, r.BonusSkipped, r.BuyoutCreated, r.BuyoutSkipped,
	)
}

// WeekResult reports what a week's posting did.
type WeekResult struct {
	LeagueYear         int             `json:"league_year"`
	Week               int             `json:"week"`
	Status             string          `json:"status"`
	SalaryEntries      int             `json:"salary_entries"`
	SalaryTotal        decimal.Decimal `json:"salary_total"`
	PerformanceEntries int             `json:"performance_entries"`
	PerformanceTotal   decimal.Decimal `json:"performance_total"`
	WinsInWindow       int             `json:"wins_in_window"`
}

// Summary returns a human-readable summary of the phase.
func (r *WeekResult) Summary() string {
	return fmt.Sprintf(
		"year=%d week=%d status=%s salary=%d (%s) performance=%d (%s) wins=%d",
		r.LeagueYear, r.Week, r.Status, r.SalaryEntries, r.SalaryTotal.String(),
		r.PerformanceEntries, r.PerformanceTotal.String(), r.WinsInWindow,
	)
}

// InterestResult reports what year-end interest posting did.
type InterestResult struct {
	LeagueYear     int `json:"league_year"`
	IncomeCreated  int `json:"income_created"`
	ExpenseCreated int `json:"expense_created"`
	Skipped        int `json:"skipped"`
	ZeroBalance    int `json:"zero_balance"`
}

// Summary returns a human-readable summary of the phase.
func (r *InterestResult) Summary() string {
	return fmt.Sprintf(
		"year=%d income=%d expense=%d skipped=%d zero_balance=%d",
		r.LeagueYear, r.IncomeCreated, r.ExpenseCreated, r.Skipped, r.ZeroBalance,
	)
}

// SeasonResult aggregates a full-season run.
type SeasonResult struct {
	RunID      string           `json:"run_id"`
	LeagueYear int              `json:"league_year"`
	YearStart  *YearStartResult `json:"year_start"`
	Weeks      []WeekResult     `json:"weeks"`
	YearEnd    *InterestResult  `json:"year_end"`
}

// Summary returns a human-readable summary of the run.
func (r *SeasonResult) Summary() string {
	processed := 0
	for _, w := range r.Weeks {
		if w.Status == StatusProcessed {
			processed++
		}
	}
	return fmt.Sprintf("run=%s year=%d weeks=%d processed=%d", r.RunID, r.LeagueYear, len(r.Weeks), processed)
}

// RunYearStart posts media payouts for every org with a media share and the
// bonus (or buyout) lump for every contract signed in year. Each entry is
// guarded individually so a re-run only fills gaps.
func (b *Books) RunYearStart(ctx context.Context, year int) (*YearStartResult, error) {
	defer metrics.ObservePhase("year_start", time.Now())

	res := &YearStartResult{LeagueYear: year}
	var created []model.LedgerEntry

	err := b.store.InTx(ctx, func(q store.Querier) error {
		*res = YearStartResult{LeagueYear: year}
		created = created[:0]

		ly, err := q.GetLeagueYear(ctx, year)
		if err != nil {
			return err
		}

		shares, err := q.ListMediaShares(ctx, year)
		if err != nil {
			return fmt.Errorf("list media shares: %w", err)
		}
		for _, ms := range shares {
			exists, err := q.LedgerEntryExists(ctx, store.LedgerFilter{
				OrgID:      &ms.OrgID,
				LeagueYear: &year,
				Types:      []model.EntryType{model.EntryMedia},
			})
			if err != nil {
				return fmt.Errorf("check media entry: %w", err)
			}
			if exists {
				res.MediaSkipped++
				continue
			}
			e := model.LedgerEntry{
				OrgID:      ms.OrgID,
				LeagueYear: year,
				EntryType:  model.EntryMedia,
				Amount:     ly.MediaTotal.Mul(ms.Share).Round(2),
				Note:       "media payout",
			}
			if err := q.InsertLedgerEntry(ctx, &e); err != nil {
				return fmt.Errorf("insert media entry: %w", err)
			}
			created = append(created, e)
			res.MediaCreated++
		}

		contracts, err := q.ListContracts(ctx, store.ContractFilter{SigningYear: &year})
		if err != nil {
			return fmt.Errorf("list signed contracts: %w", err)
		}
		for _, c := range contracts {
			if !c.Bonus.IsPositive() {
				continue
			}
			entryType := model.EntryBonus
			if c.IsBuyout {
				entryType = model.EntryBuyout
			}
			// Guarded across all years: the immediate entry written at
			// signing satisfies it.
			exists, err := q.LedgerEntryExists(ctx, store.LedgerFilter{
				ContractID: &c.ID,
				Types:      []model.EntryType{entryType},
			})
			if err != nil {
				return fmt.Errorf("check %s entry: %w", entryType, err)
			}
			if exists {
				if c.IsBuyout {
					res.BuyoutSkipped++
				} else {
					res.BonusSkipped++
				}
				continue
			}
			e := model.LedgerEntry{
				OrgID:      c.OrgID,
				LeagueYear: year,
				EntryType:  entryType,
				Amount:     c.Bonus.Neg(),
				ContractID: model.Int64(c.ID),
				PlayerID:   model.Int64(c.PlayerID),
				Note:       fmt.Sprintf("%s for contract %d", entryType, c.ID),
			}
			if err := q.InsertLedgerEntry(ctx, &e); err != nil {
				return fmt.Errorf("insert %s entry: %w", entryType, err)
			}
			created = append(created, e)
			if c.IsBuyout {
				res.BuyoutCreated++
			} else {
				res.BonusCreated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	countEntries(created)
	b.logger.Info("year-start books posted",
		"league_year", year,
		"media_created", res.MediaCreated,
		"media_skipped", res.MediaSkipped,
		"bonus_created", res.BonusCreated,
		"buyout_created", res.BuyoutCreated,
	)
	return res, nil
}

// RunWeek posts salary and performance revenue for one week. The guard is
// week-wide: if any salary or performance entry exists for (year, week) the
// call is a no-op reporting StatusAlreadyProcessed.
func (b *Books) RunWeek(ctx context.Context, year, week int) (*WeekResult, error) {
	defer metrics.ObservePhase("week", time.Now())

	if week < 1 {
		return nil, model.Invalidf("week must be >= 1, got %d", week)
	}

	res := &WeekResult{}
	var created []model.LedgerEntry

	err := b.store.InTx(ctx, func(q store.Querier) error {
		*res = WeekResult{
			LeagueYear:       year,
			Week:             week,
			Status:           StatusProcessed,
			SalaryTotal:      decimal.Zero,
			PerformanceTotal: decimal.Zero,
		}
		created = created[:0]

		ly, err := q.GetLeagueYear(ctx, year)
		if err != nil {
			return err
		}
		if ly.WeeksInSeason <= 0 {
			return fmt.Errorf("%w: league year %d has weeks_in_season=%d", model.ErrConfiguration, year, ly.WeeksInSeason)
		}
		if week > ly.WeeksInSeason {
			return model.Invalidf("week %d is past the end of a %d-week season", week, ly.WeeksInSeason)
		}

		posted, err := q.LedgerEntryExists(ctx, store.LedgerFilter{
			LeagueYear: &year,
			GameWeek:   &week,
			Types:      []model.EntryType{model.EntrySalary, model.EntryPerformance},
		})
		if err != nil {
			return fmt.Errorf("check week entries: %w", err)
		}
		if posted {
			res.Status = StatusAlreadyProcessed
			return nil
		}

		weeks := decimal.NewFromInt(int64(ly.WeeksInSeason))

		// (a) salary
		obligations, err := q.SalaryObligations(ctx, year)
		if err != nil {
			return fmt.Errorf("load salary obligations: %w", err)
		}
		for _, o := range obligations {
			amount := o.Salary.Mul(o.SalaryShare).Div(weeks).Round(2).Neg()
			if amount.IsZero() {
				continue
			}
			e := model.LedgerEntry{
				OrgID:      o.OrgID,
				LeagueYear: year,
				GameWeek:   model.Week(week),
				EntryType:  model.EntrySalary,
				Amount:     amount,
				ContractID: model.Int64(o.ContractID),
				PlayerID:   model.Int64(o.PlayerID),
			}
			if err := q.InsertLedgerEntry(ctx, &e); err != nil {
				return fmt.Errorf("insert salary entry: %w", err)
			}
			created = append(created, e)
			res.SalaryEntries++
			res.SalaryTotal = res.SalaryTotal.Add(amount)
		}

		// (b) performance
		entries, wins, err := performanceEntries(ctx, q, ly, week)
		if err != nil {
			return err
		}
		res.WinsInWindow = wins
		for i := range entries {
			if err := q.InsertLedgerEntry(ctx, &entries[i]); err != nil {
				return fmt.Errorf("insert performance entry: %w", err)
			}
			created = append(created, entries[i])
			res.PerformanceEntries++
			res.PerformanceTotal = res.PerformanceTotal.Add(entries[i].Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	countEntries(created)
	b.logger.Info("week books posted",
		"league_year", year,
		"week", week,
		"status", res.Status,
		"salary_entries", res.SalaryEntries,
		"performance_entries", res.PerformanceEntries,
	)
	return res, nil
}

// performanceEntries splits this week's slice of the performance budget by
// win share over the rolling window. Orgs without wins get nothing; a window
// with no wins at all produces no entries.
func performanceEntries(ctx context.Context, q store.Querier, ly *model.LeagueYear, week int) ([]model.LedgerEntry, int, error) {
	wins, err := q.WinTotals(ctx, store.WinWindow{
		FromYear:    ly.LeagueYear - (WinWindowYears - 1),
		ToYear:      ly.LeagueYear,
		ThroughWeek: week,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("load win totals: %w", err)
	}

	total := 0
	orgIDs := make([]int64, 0, len(wins))
	for org, n := range wins {
		if n > 0 {
			total += n
			orgIDs = append(orgIDs, org)
		}
	}
	pool := ly.PerformanceBudget.Div(decimal.NewFromInt(int64(ly.WeeksInSeason)))
	if total == 0 || !pool.IsPositive() {
		return nil, total, nil
	}
	slices.Sort(orgIDs)

	totalWins := decimal.NewFromInt(int64(total))
	var out []model.LedgerEntry
	for _, org := range orgIDs {
		amount := pool.Mul(decimal.NewFromInt(int64(wins[org]))).Div(totalWins).Round(2)
		if amount.IsZero() {
			continue
		}
		out = append(out, model.LedgerEntry{
			OrgID:      org,
			LeagueYear: ly.LeagueYear,
			GameWeek:   model.Week(week),
			EntryType:  model.EntryPerformance,
			Amount:     amount,
			Note:       fmt.Sprintf("%d of %d wins", wins[org], total),
		})
	}
	return out, total, nil
}

// RunYearEndInterest credits or charges interest on each org's ledger net
// through year. Orgs already carrying an interest entry for year are
// skipped; a zero balance produces no entry.
func (b *Books) RunYearEndInterest(ctx context.Context, year int) (*InterestResult, error) {
	defer metrics.ObservePhase("year_end", time.Now())

	res := &InterestResult{}
	var created []model.LedgerEntry

	err := b.store.InTx(ctx, func(q store.Querier) error {
		*res = InterestResult{LeagueYear: year}
		created = created[:0]

		if _, err := q.GetLeagueYear(ctx, year); err != nil {
			return err
		}
		orgs, err := q.ListOrganizations(ctx)
		if err != nil {
			return fmt.Errorf("list organizations: %w", err)
		}
		for _, org := range orgs {
			exists, err := q.LedgerEntryExists(ctx, store.LedgerFilter{
				OrgID:      &org.ID,
				LeagueYear: &year,
				Types:      []model.EntryType{model.EntryInterestIncome, model.EntryInterestExpense},
			})
			if err != nil {
				return fmt.Errorf("check interest entry: %w", err)
			}
			if exists {
				res.Skipped++
				continue
			}

			balance, err := q.LedgerBalance(ctx, org.ID, year)
			if err != nil {
				return fmt.Errorf("ledger balance for org %d: %w", org.ID, err)
			}
			amount := balance.Abs().Mul(InterestRate).Round(2)
			if balance.IsZero() || amount.IsZero() {
				res.ZeroBalance++
				continue
			}

			e := model.LedgerEntry{
				OrgID:      org.ID,
				LeagueYear: year,
				EntryType:  model.EntryInterestIncome,
				Amount:     amount,
				Note:       "interest on " + balance.String(),
			}
			if balance.IsNegative() {
				e.EntryType = model.EntryInterestExpense
				e.Amount = amount.Neg()
			}
			if err := q.InsertLedgerEntry(ctx, &e); err != nil {
				return fmt.Errorf("insert interest entry: %w", err)
			}
			created = append(created, e)
			if balance.IsNegative() {
				res.ExpenseCreated++
			} else {
				res.IncomeCreated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	countEntries(created)
	b.logger.Info("year-end interest posted",
		"league_year", year,
		"income_created", res.IncomeCreated,
		"expense_created", res.ExpenseCreated,
		"skipped", res.Skipped,
	)
	return res, nil
}

// RunFullSeason runs year-start, every week in order, then year-end
// interest. Each phase and week is its own transaction, so a failed run can
// be re-invoked and only the missing pieces post. Cancellation is honoured
// between weeks.
func (b *Books) RunFullSeason(ctx context.Context, year int) (*SeasonResult, error) {
	res := &SeasonResult{RunID: uuid.New().String(), LeagueYear: year}
	logger := b.logger.With("run_id", res.RunID)

	var weeks int
	err := b.store.View(ctx, func(q store.Querier) error {
		ly, err := q.GetLeagueYear(ctx, year)
		if err != nil {
			return err
		}
		weeks = ly.WeeksInSeason
		return nil
	})
	if err != nil {
		return nil, err
	}
	if weeks <= 0 {
		return nil, fmt.Errorf("%w: league year %d has weeks_in_season=%d", model.ErrConfiguration, year, weeks)
	}

	logger.Info("season books started", "league_year", year, "weeks", weeks)

	if res.YearStart, err = b.RunYearStart(ctx, year); err != nil {
		return res, fmt.Errorf("year-start: %w", err)
	}
	for week := 1; week <= weeks; week++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("season books stopped before week %d: %w", week, err)
		}
		wr, err := b.RunWeek(ctx, year, week)
		if err != nil {
			return res, fmt.Errorf("week %d: %w", week, err)
		}
		res.Weeks = append(res.Weeks, *wr)
	}
	if res.YearEnd, err = b.RunYearEndInterest(ctx, year); err != nil {
		return res, fmt.Errorf("year-end: %w", err)
	}

	logger.Info("season books finished", "league_year", year, "summary", res.Summary())
	return res, nil
}

func countEntries(entries []model.LedgerEntry) {
	for _, e := range entries {
		metrics.LedgerEntriesTotal.WithLabelValues(string(e.EntryType)).Inc()
	}
}
