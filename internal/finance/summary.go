package finance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// SummaryCache stores encoded summaries under a write generation.
// store.CachedStore satisfies it. Cached reports the generation it read;
// Cache drops the write when that generation is no longer current.
type SummaryCache interface {
	Cached(ctx context.Context, key string) (data []byte, gen int64, ok bool)
	Cache(ctx context.Context, key string, gen int64, data []byte)
}

// WeekSummary is one week's ledger activity for an org. Amounts are signed:
// SalaryOut and OtherOut are zero or negative.
type WeekSummary struct {
	Week              int             `json:"week"`
	SalaryOut         decimal.Decimal `json:"salary_out"`
	PerformanceIn     decimal.Decimal `json:"performance_in"`
	OtherIn           decimal.Decimal `json:"other_in"`
	OtherOut          decimal.Decimal `json:"other_out"`
	Net               decimal.Decimal `json:"net"`
	CumulativeBalance decimal.Decimal `json:"cumulative_balance"`
}

// OrgSummary replays one org's ledger for a league year.
type OrgSummary struct {
	OrgID                       int64                               `json:"org_id"`
	Abbrev                      string                              `json:"abbrev"`
	LeagueYear                  int                                 `json:"league_year"`
	StartingBalance             decimal.Decimal                     `json:"starting_balance"`
	YearStartEvents             map[model.EntryType]decimal.Decimal `json:"year_start_events"`
	YearStartNet                decimal.Decimal                     `json:"year_start_net"`
	BalanceAfterYearStart       decimal.Decimal                     `json:"balance_after_year_start"`
	Weeks                       []WeekSummary                       `json:"weeks"`
	EndingBalanceBeforeInterest decimal.Decimal                     `json:"ending_balance_before_interest"`
	InterestEvents              map[model.EntryType]decimal.Decimal `json:"interest_events"`
	InterestNet                 decimal.Decimal                     `json:"interest_net"`
	EndingBalance               decimal.Decimal                     `json:"ending_balance"`
}

// LeagueSummary holds every org's summary keyed by abbreviation.
type LeagueSummary struct {
	LeagueYear    int                    `json:"league_year"`
	Organizations map[string]*OrgSummary `json:"organizations"`
}

// Reconstructor derives balances purely from ledger rows. It holds no
// state of its own beyond an optional cache of encoded results.
type Reconstructor struct {
	store store.Store
	cache SummaryCache
}

// NewReconstructor creates a reconstructor. cache may be nil.
func NewReconstructor(st store.Store, cache SummaryCache) *Reconstructor {
	return &Reconstructor{store: st, cache: cache}
}

// OrgSummary returns the financial summary for one org and league year.
func (r *Reconstructor) OrgSummary(ctx context.Context, orgID int64, year int) (*OrgSummary, error) {
	key := fmt.Sprintf("summary:org:%d:%d", orgID, year)
	var out OrgSummary
	gen, hit := r.cached(ctx, key, &out)
	if hit {
		return &out, nil
	}

	var sum *OrgSummary
	err := r.store.View(ctx, func(q store.Querier) error {
		ly, err := q.GetLeagueYear(ctx, year)
		if err != nil {
			return err
		}
		org, err := q.GetOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		sum, err = orgSummary(ctx, q, ly, org)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.remember(ctx, key, gen, sum)
	return sum, nil
}

// LeagueSummary returns every org's summary for a league year. The league
// year is validated once up front.
func (r *Reconstructor) LeagueSummary(ctx context.Context, year int) (*LeagueSummary, error) {
	key := fmt.Sprintf("summary:league:%d", year)
	var out LeagueSummary
	gen, hit := r.cached(ctx, key, &out)
	if hit {
		return &out, nil
	}

	res := &LeagueSummary{LeagueYear: year, Organizations: make(map[string]*OrgSummary)}
	err := r.store.View(ctx, func(q store.Querier) error {
		ly, err := q.GetLeagueYear(ctx, year)
		if err != nil {
			return err
		}
		orgs, err := q.ListOrganizations(ctx)
		if err != nil {
			return fmt.Errorf("list organizations: %w", err)
		}
		for i := range orgs {
			sum, err := orgSummary(ctx, q, ly, &orgs[i])
			if err != nil {
				return err
			}
			res.Organizations[orgs[i].Abbrev] = sum
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.remember(ctx, key, gen, res)
	return res, nil
}

func orgSummary(ctx context.Context, q store.Querier, ly *model.LeagueYear, org *model.Organization) (*OrgSummary, error) {
	year := ly.LeagueYear
	prior, err := q.LedgerBalance(ctx, org.ID, year-1)
	if err != nil {
		return nil, fmt.Errorf("prior balance for org %d: %w", org.ID, err)
	}
	entries, err := q.ListLedgerEntries(ctx, store.LedgerFilter{OrgID: &org.ID, LeagueYear: &year})
	if err != nil {
		return nil, fmt.Errorf("ledger for org %d: %w", org.ID, err)
	}

	sum := &OrgSummary{
		OrgID:           org.ID,
		Abbrev:          org.Abbrev,
		LeagueYear:      year,
		StartingBalance: org.SeedCash.Add(prior),
		YearStartEvents: make(map[model.EntryType]decimal.Decimal),
		InterestEvents:  make(map[model.EntryType]decimal.Decimal),
	}

	lastWeek := ly.WeeksInSeason
	byWeek := make(map[int][]model.LedgerEntry)
	for _, e := range entries {
		switch {
		case e.GameWeek == nil && isInterest(e.EntryType):
			sum.InterestEvents[e.EntryType] = sum.InterestEvents[e.EntryType].Add(e.Amount)
			sum.InterestNet = sum.InterestNet.Add(e.Amount)
		case e.GameWeek == nil:
			sum.YearStartEvents[e.EntryType] = sum.YearStartEvents[e.EntryType].Add(e.Amount)
			sum.YearStartNet = sum.YearStartNet.Add(e.Amount)
		default:
			w := *e.GameWeek
			byWeek[w] = append(byWeek[w], e)
			if w > lastWeek {
				lastWeek = w
			}
		}
	}

	sum.BalanceAfterYearStart = sum.StartingBalance.Add(sum.YearStartNet)
	running := sum.BalanceAfterYearStart
	for w := 1; w <= lastWeek; w++ {
		ws := WeekSummary{Week: w}
		for _, e := range byWeek[w] {
			switch {
			case e.EntryType == model.EntrySalary:
				ws.SalaryOut = ws.SalaryOut.Add(e.Amount)
			case e.EntryType == model.EntryPerformance:
				ws.PerformanceIn = ws.PerformanceIn.Add(e.Amount)
			case e.Amount.IsNegative():
				ws.OtherOut = ws.OtherOut.Add(e.Amount)
			default:
				ws.OtherIn = ws.OtherIn.Add(e.Amount)
			}
			ws.Net = ws.Net.Add(e.Amount)
		}
		running = running.Add(ws.Net)
		ws.CumulativeBalance = running
		sum.Weeks = append(sum.Weeks, ws)
	}

	sum.EndingBalanceBeforeInterest = running
	sum.EndingBalance = running.Add(sum.InterestNet)
	return sum, nil
}

func isInterest(t model.EntryType) bool {
	return t == model.EntryInterestIncome || t == model.EntryInterestExpense
}

// cached decodes a hit into v. The generation is returned for a later
// remember after a miss.
func (r *Reconstructor) cached(ctx context.Context, key string, v any) (int64, bool) {
	if r.cache == nil {
		return 0, false
	}
	data, gen, ok := r.cache.Cached(ctx, key)
	if !ok {
		return gen, false
	}
	return gen, json.Unmarshal(data, v) == nil
}

func (r *Reconstructor) remember(ctx context.Context, key string, gen int64, v any) {
	if r.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		r.cache.Cache(ctx, key, gen, data)
	}
}
