package finance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/finance"
	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

const year = 2026

// newTestEnv creates a Books engine over an in-memory store seeded with one
// league year and two organizations.
func newTestEnv(t *testing.T, weeks int) (*finance.Books, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		if err := q.UpsertLeagueYear(ctx, &model.LeagueYear{
			LeagueYear:        year,
			WeeksInSeason:     weeks,
			MediaTotal:        d(1000000),
			PerformanceBudget: d(2000),
		}); err != nil {
			return err
		}
		for _, org := range []model.Organization{
			{ID: 1, Abbrev: "BOS", Name: "Boston", SeedCash: d(5000000)},
			{ID: 2, Abbrev: "NYY", Name: "New York", SeedCash: d(3000000)},
		} {
			if err := q.InsertOrganization(ctx, &org); err != nil {
				return err
			}
		}
		return nil
	})
	return finance.NewBooks(ms, nil), ms
}

func mustTx(t *testing.T, ms *store.MemoryStore, fn func(ctx context.Context, q store.Querier) error) {
	t.Helper()
	ctx := context.Background()
	if err := ms.InTx(ctx, func(q store.Querier) error { return fn(ctx, q) }); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// seedContract inserts a contract held in full by org with one salary line
// per year.
func seedContract(t *testing.T, ms *store.MemoryStore, org, player int64, signingYear int, bonus float64, salaries ...float64) *model.Contract {
	t.Helper()
	return insertContract(t, ms, &model.Contract{
		PlayerID:     player,
		OrgID:        org,
		CurrentYear:  1,
		SigningYear:  signingYear,
		Bonus:        d(bonus),
		CurrentLevel: model.LevelMLB,
	}, salaries...)
}

func insertContract(t *testing.T, ms *store.MemoryStore, c *model.Contract, salaries ...float64) *model.Contract {
	t.Helper()
	c.Years = len(salaries)
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		if err := q.InsertContract(ctx, c); err != nil {
			return err
		}
		for i, s := range salaries {
			det := &model.ContractDetail{ContractID: c.ID, Year: i + 1, Salary: d(s)}
			if err := q.InsertContractDetail(ctx, det); err != nil {
				return err
			}
			if err := q.InsertTeamShare(ctx, &model.TeamShare{DetailID: det.ID, OrgID: c.OrgID, IsHolder: true, SalaryShare: d(1)}); err != nil {
				return err
			}
		}
		return nil
	})
	return c
}

func seedWins(t *testing.T, ms *store.MemoryStore, leagueYear, week int, winner, loser int64, n int) {
	t.Helper()
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		for i := 0; i < n; i++ {
			if err := q.InsertGameResult(ctx, &model.GameResult{
				LeagueYear: leagueYear, WeekIndex: week,
				HomeOrgID: winner, AwayOrgID: loser, WinnerOrgID: winner,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func entries(t *testing.T, ms *store.MemoryStore, f store.LedgerFilter) []model.LedgerEntry {
	t.Helper()
	var out []model.LedgerEntry
	err := ms.View(context.Background(), func(q store.Querier) error {
		var err error
		out, err = q.ListLedgerEntries(context.Background(), f)
		return err
	})
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	return out
}

func balance(t *testing.T, ms *store.MemoryStore, org int64, through int) decimal.Decimal {
	t.Helper()
	var b decimal.Decimal
	err := ms.View(context.Background(), func(q store.Querier) error {
		var err error
		b, err = q.LedgerBalance(context.Background(), org, through)
		return err
	})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func typed(tp model.EntryType) store.LedgerFilter {
	return store.LedgerFilter{Types: []model.EntryType{tp}}
}

// --- Year-start ---

func TestRunYearStart_MediaPayout(t *testing.T) {
	books, ms := newTestEnv(t, 20)
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		return q.UpsertMediaShare(ctx, &model.MediaShare{OrgID: 1, LeagueYear: year, Share: d(0.045)})
	})
	ctx := context.Background()

	res, err := books.RunYearStart(ctx, year)
	if err != nil {
		t.Fatalf("RunYearStart: %v", err)
	}
	if res.MediaCreated != 1 || res.MediaSkipped != 0 {
		t.Errorf("first run: created=%d skipped=%d, want 1/0", res.MediaCreated, res.MediaSkipped)
	}

	media := entries(t, ms, typed(model.EntryMedia))
	if len(media) != 1 {
		t.Fatalf("expected 1 media entry, got %d", len(media))
	}
	if !media[0].Amount.Equal(d(45000)) {
		t.Errorf("media amount = %s, want 45000", media[0].Amount)
	}
	if media[0].GameWeek != nil {
		t.Errorf("media entry should be year-level")
	}

	res, err = books.RunYearStart(ctx, year)
	if err != nil {
		t.Fatalf("second RunYearStart: %v", err)
	}
	if res.MediaCreated != 0 || res.MediaSkipped != 1 {
		t.Errorf("second run: created=%d skipped=%d, want 0/1", res.MediaCreated, res.MediaSkipped)
	}
	if n := len(entries(t, ms, store.LedgerFilter{})); n != 1 {
		t.Errorf("ledger has %d entries after re-run, want 1", n)
	}
}

func TestRunYearStart_BonusAndBuyout(t *testing.T) {
	books, ms := newTestEnv(t, 20)
	seedContract(t, ms, 1, 100, year, 250000, 500000)
	seedContract(t, ms, 2, 101, year, 0, 500000)       // no bonus
	seedContract(t, ms, 2, 102, year-1, 90000, 500000) // other year
	insertContract(t, ms, &model.Contract{
		PlayerID: 103, OrgID: 2, CurrentYear: 1, SigningYear: year,
		IsBuyout: true, Bonus: d(1000000), CurrentLevel: model.LevelMLB,
	}, 0)
	ctx := context.Background()

	res, err := books.RunYearStart(ctx, year)
	if err != nil {
		t.Fatalf("RunYearStart: %v", err)
	}
	if res.BonusCreated != 1 {
		t.Errorf("BonusCreated = %d, want 1", res.BonusCreated)
	}
	if res.BuyoutCreated != 1 {
		t.Errorf("BuyoutCreated = %d, want 1", res.BuyoutCreated)
	}

	bonus := entries(t, ms, typed(model.EntryBonus))
	if len(bonus) != 1 || !bonus[0].Amount.Equal(d(-250000)) || bonus[0].OrgID != 1 {
		t.Errorf("unexpected bonus entries: %+v", bonus)
	}
	buyout := entries(t, ms, typed(model.EntryBuyout))
	if len(buyout) != 1 || !buyout[0].Amount.Equal(d(-1000000)) {
		t.Errorf("unexpected buyout entries: %+v", buyout)
	}

	res, err = books.RunYearStart(ctx, year)
	if err != nil {
		t.Fatalf("second RunYearStart: %v", err)
	}
	if res.BonusCreated+res.BuyoutCreated != 0 || res.BonusSkipped != 1 || res.BuyoutSkipped != 1 {
		t.Errorf("second run should skip everything: %s", res.Summary())
	}
}

func TestRunYearStart_BonusAlreadyPostedAtSigning(t *testing.T) {
	books, ms := newTestEnv(t, 20)
	c := seedContract(t, ms, 1, 100, year, 250000, 500000)
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		return q.InsertLedgerEntry(ctx, &model.LedgerEntry{
			OrgID: 1, LeagueYear: year, GameWeek: model.Week(3), EntryType: model.EntryBonus,
			Amount: d(-250000), ContractID: model.Int64(c.ID),
		})
	})

	res, err := books.RunYearStart(context.Background(), year)
	if err != nil {
		t.Fatalf("RunYearStart: %v", err)
	}
	if res.BonusCreated != 0 || res.BonusSkipped != 1 {
		t.Errorf("bonus posted at signing should satisfy the guard: %s", res.Summary())
	}
}

func TestRunYearStart_UnknownYear(t *testing.T) {
	books, _ := newTestEnv(t, 20)
	_, err := books.RunYearStart(context.Background(), 1999)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// --- Weekly ---

func TestRunWeek_Salary(t *testing.T) {
	books, ms := newTestEnv(t, 20)
	seedContract(t, ms, 1, 100, year, 0, 600000)
	ctx := context.Background()

	res, err := books.RunWeek(ctx, year, 1)
	if err != nil {
		t.Fatalf("RunWeek: %v", err)
	}
	if res.Status != finance.StatusProcessed || res.SalaryEntries != 1 {
		t.Fatalf("unexpected result: %s", res.Summary())
	}
	salary := entries(t, ms, typed(model.EntrySalary))
	if len(salary) != 1 {
		t.Fatalf("expected 1 salary entry, got %d", len(salary))
	}
	if !salary[0].Amount.Equal(d(-30000)) {
		t.Errorf("salary amount = %s, want -30000", salary[0].Amount)
	}
	if salary[0].GameWeek == nil || *salary[0].GameWeek != 1 {
		t.Errorf("salary entry should be tagged week 1")
	}

	res, err = books.RunWeek(ctx, year, 1)
	if err != nil {
		t.Fatalf("second RunWeek: %v", err)
	}
	if res.Status != finance.StatusAlreadyProcessed {
		t.Errorf("status = %q, want %q", res.Status, finance.StatusAlreadyProcessed)
	}
	if n := len(entries(t, ms, store.LedgerFilter{})); n != 1 {
		t.Errorf("ledger has %d entries after re-run, want 1", n)
	}
}

func TestRunWeek_SalaryUsesContractYear(t *testing.T) {
	books, ms := newTestEnv(t, 10)
	// Signed last year: detail 2 maps to this year.
	seedContract(t, ms, 1, 100, year-1, 0, 100000, 200000, 300000)
	// Signed next year: nothing owed yet.
	seedContract(t, ms, 2, 101, year+1, 0, 900000)

	if _, err := books.RunWeek(context.Background(), year, 1); err != nil {
		t.Fatalf("RunWeek: %v", err)
	}
	salary := entries(t, ms, typed(model.EntrySalary))
	if len(salary) != 1 || !salary[0].Amount.Equal(d(-20000)) {
		t.Errorf("expected one -20000 entry, got %+v", salary)
	}
}

func TestRunWeek_RetainedShareSplitsSalary(t *testing.T) {
	books, ms := newTestEnv(t, 10)
	c := seedContract(t, ms, 1, 100, year, 0, 1000000)
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		dets, _ := q.ListContractDetails(ctx, c.ID)
		shares, _ := q.ListTeamShares(ctx, dets[0].ID)
		sh := shares[0]
		sh.IsHolder = false
		sh.SalaryShare = d(0.25)
		if err := q.UpdateTeamShare(ctx, &sh); err != nil {
			return err
		}
		return q.InsertTeamShare(ctx, &model.TeamShare{DetailID: dets[0].ID, OrgID: 2, IsHolder: true, SalaryShare: d(0.75)})
	})

	if _, err := books.RunWeek(context.Background(), year, 1); err != nil {
		t.Fatalf("RunWeek: %v", err)
	}
	if b := balance(t, ms, 1, year); !b.Equal(d(-25000)) {
		t.Errorf("org 1 paid %s, want -25000", b)
	}
	if b := balance(t, ms, 2, year); !b.Equal(d(-75000)) {
		t.Errorf("org 2 paid %s, want -75000", b)
	}
}

func TestRunWeek_ZeroWinsNoPerformance(t *testing.T) {
	books, ms := newTestEnv(t, 20)

	res, err := books.RunWeek(context.Background(), year, 1)
	if err != nil {
		t.Fatalf("RunWeek: %v", err)
	}
	if res.PerformanceEntries != 0 {
		t.Errorf("PerformanceEntries = %d, want 0", res.PerformanceEntries)
	}
	if n := len(entries(t, ms, typed(model.EntryPerformance))); n != 0 {
		t.Errorf("expected no performance entries, got %d", n)
	}
}

func TestRunWeek_PerformanceSplitByWinShare(t *testing.T) {
	books, ms := newTestEnv(t, 20) // pool = 2000 / 20 = 100 per week
	seedWins(t, ms, year, 1, 1, 2, 3)
	seedWins(t, ms, year, 1, 2, 1, 1)

	res, err := books.RunWeek(context.Background(), year, 1)
	if err != nil {
		t.Fatalf("RunWeek: %v", err)
	}
	if res.WinsInWindow != 4 || res.PerformanceEntries != 2 {
		t.Fatalf("unexpected result: %s", res.Summary())
	}
	if b := balance(t, ms, 1, year); !b.Equal(d(75)) {
		t.Errorf("org 1 performance = %s, want 75", b)
	}
	if b := balance(t, ms, 2, year); !b.Equal(d(25)) {
		t.Errorf("org 2 performance = %s, want 25", b)
	}
}

func TestRunWeek_RollingWindow(t *testing.T) {
	books, ms := newTestEnv(t, 20)
	seedWins(t, ms, year-3, 5, 2, 1, 10) // outside the window
	seedWins(t, ms, year-2, 5, 1, 2, 1)  // inside
	seedWins(t, ms, year, 4, 2, 1, 5)    // after week 3, not yet counted

	res, err := books.RunWeek(context.Background(), year, 3)
	if err != nil {
		t.Fatalf("RunWeek: %v", err)
	}
	if res.WinsInWindow != 1 {
		t.Errorf("WinsInWindow = %d, want 1", res.WinsInWindow)
	}
	if b := balance(t, ms, 1, year); !b.Equal(d(100)) {
		t.Errorf("org 1 performance = %s, want the whole 100 pool", b)
	}
	if b := balance(t, ms, 2, year); !b.IsZero() {
		t.Errorf("org 2 performance = %s, want 0", b)
	}
}

func TestRunWeek_ZeroWeeksIsConfigurationError(t *testing.T) {
	books, _ := newTestEnv(t, 0)

	_, err := books.RunWeek(context.Background(), year, 1)
	if !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestRunWeek_BadWeek(t *testing.T) {
	books, _ := newTestEnv(t, 20)
	for _, w := range []int{0, 21} {
		if _, err := books.RunWeek(context.Background(), year, w); !model.IsValidation(err) {
			t.Errorf("week %d: expected validation error, got %v", w, err)
		}
	}
}

// --- Year-end ---

func TestRunYearEndInterest(t *testing.T) {
	books, ms := newTestEnv(t, 20)
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		if err := q.InsertOrganization(ctx, &model.Organization{ID: 3, Abbrev: "TEX"}); err != nil {
			return err
		}
		for _, e := range []model.LedgerEntry{
			{OrgID: 1, LeagueYear: year - 1, EntryType: model.EntryMedia, Amount: d(100000)},
			{OrgID: 1, LeagueYear: year, EntryType: model.EntryMedia, Amount: d(100000)},
			{OrgID: 1, LeagueYear: year + 1, EntryType: model.EntryMedia, Amount: d(999999)},
			{OrgID: 2, LeagueYear: year, GameWeek: model.Week(1), EntryType: model.EntrySalary, Amount: d(-50000)},
		} {
			e := e
			if err := q.InsertLedgerEntry(ctx, &e); err != nil {
				return err
			}
		}
		return nil
	})
	ctx := context.Background()

	res, err := books.RunYearEndInterest(ctx, year)
	if err != nil {
		t.Fatalf("RunYearEndInterest: %v", err)
	}
	if res.IncomeCreated != 1 || res.ExpenseCreated != 1 || res.ZeroBalance != 1 {
		t.Errorf("unexpected result: %s", res.Summary())
	}

	income := entries(t, ms, typed(model.EntryInterestIncome))
	if len(income) != 1 || income[0].OrgID != 1 || !income[0].Amount.Equal(d(10000)) {
		t.Errorf("unexpected income entries: %+v", income)
	}
	expense := entries(t, ms, typed(model.EntryInterestExpense))
	if len(expense) != 1 || expense[0].OrgID != 2 || !expense[0].Amount.Equal(d(-2500)) {
		t.Errorf("unexpected expense entries: %+v", expense)
	}

	res, err = books.RunYearEndInterest(ctx, year)
	if err != nil {
		t.Fatalf("second RunYearEndInterest: %v", err)
	}
	if res.Skipped != 2 || res.IncomeCreated+res.ExpenseCreated != 0 {
		t.Errorf("second run should skip credited orgs: %s", res.Summary())
	}
}

// --- Full season ---

func TestRunFullSeason_BalanceConservation(t *testing.T) {
	books, ms := newTestEnv(t, 4)
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		if err := q.UpsertMediaShare(ctx, &model.MediaShare{OrgID: 1, LeagueYear: year, Share: d(0.5)}); err != nil {
			return err
		}
		return q.UpsertMediaShare(ctx, &model.MediaShare{OrgID: 2, LeagueYear: year, Share: d(0.5)})
	})
	seedContract(t, ms, 1, 100, year, 125000, 400000)
	seedContract(t, ms, 2, 101, year, 0, 1200000, 1200000)
	seedWins(t, ms, year, 1, 1, 2, 2)
	seedWins(t, ms, year, 2, 2, 1, 1)
	seedWins(t, ms, year, 3, 1, 2, 1)
	ctx := context.Background()

	res, err := books.RunFullSeason(ctx, year)
	if err != nil {
		t.Fatalf("RunFullSeason: %v", err)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if len(res.Weeks) != 4 {
		t.Fatalf("expected 4 weeks, got %d", len(res.Weeks))
	}
	for _, w := range res.Weeks {
		if w.Status != finance.StatusProcessed {
			t.Errorf("week %d status = %s", w.Week, w.Status)
		}
	}

	recon := finance.NewReconstructor(ms, nil)
	for _, org := range []struct {
		id   int64
		seed decimal.Decimal
	}{{1, d(5000000)}, {2, d(3000000)}} {
		sum, err := recon.OrgSummary(ctx, org.id, year)
		if err != nil {
			t.Fatalf("OrgSummary(%d): %v", org.id, err)
		}
		want := org.seed.Add(balance(t, ms, org.id, year))
		if !sum.EndingBalance.Equal(want) {
			t.Errorf("org %d ending balance = %s, want %s", org.id, sum.EndingBalance, want)
		}
		if len(sum.Weeks) != 4 {
			t.Errorf("org %d has %d weeks, want 4", org.id, len(sum.Weeks))
		}
	}

	// Re-running is safe and posts nothing new.
	before := len(entries(t, ms, store.LedgerFilter{}))
	res, err = books.RunFullSeason(ctx, year)
	if err != nil {
		t.Fatalf("second RunFullSeason: %v", err)
	}
	for _, w := range res.Weeks {
		if w.Status != finance.StatusAlreadyProcessed {
			t.Errorf("week %d status = %s on re-run", w.Week, w.Status)
		}
	}
	if after := len(entries(t, ms, store.LedgerFilter{})); after != before {
		t.Errorf("re-run changed ledger size: %d -> %d", before, after)
	}
}

func TestRunFullSeason_StopsWhenCancelled(t *testing.T) {
	books, ms := newTestEnv(t, 4)
	seedContract(t, ms, 1, 100, year, 0, 400000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := books.RunFullSeason(ctx, year)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := len(entries(t, ms, typed(model.EntrySalary))); n != 0 {
		t.Errorf("no week should post after cancellation, got %d salary entries", n)
	}
}

func TestRunFullSeason_ZeroWeeks(t *testing.T) {
	books, _ := newTestEnv(t, 0)
	if _, err := books.RunFullSeason(context.Background(), year); !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

// --- Game results ---

func TestRecordGameResult(t *testing.T) {
	books, ms := newTestEnv(t, 20)
	ctx := context.Background()

	gr, err := books.RecordGameResult(ctx, finance.GameResultInput{
		LeagueYear: year, Week: 2, HomeOrgID: 1, AwayOrgID: 2, WinnerOrgID: 2,
	})
	if err != nil {
		t.Fatalf("RecordGameResult: %v", err)
	}
	if gr.ID == 0 {
		t.Error("expected an id")
	}

	var wins map[int64]int
	_ = ms.View(ctx, func(q store.Querier) error {
		wins, err = q.WinTotals(ctx, store.WinWindow{FromYear: year, ToYear: year, ThroughWeek: 2})
		return err
	})
	if wins[2] != 1 {
		t.Errorf("wins = %v, want org 2 with 1", wins)
	}
}

func TestRecordGameResult_Validation(t *testing.T) {
	books, _ := newTestEnv(t, 20)
	cases := []finance.GameResultInput{
		{LeagueYear: year, Week: 0, HomeOrgID: 1, AwayOrgID: 2},
		{LeagueYear: year, Week: 1, HomeOrgID: 1, AwayOrgID: 1},
		{LeagueYear: year, Week: 1, HomeOrgID: 1, AwayOrgID: 2, WinnerOrgID: 7},
		{LeagueYear: year, Week: 25, HomeOrgID: 1, AwayOrgID: 2},
	}
	for _, in := range cases {
		if _, err := books.RecordGameResult(context.Background(), in); !model.IsValidation(err) {
			t.Errorf("%+v: expected validation error, got %v", in, err)
		}
	}
}
