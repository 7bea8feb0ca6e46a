package transactions_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
	"github.com/alexfall862/simBaseball-API-sub000/internal/transactions"
)

func TestExecuteTrade_RetentionAndCash(t *testing.T) {
	eng, ms, rec := newTestEnv(t, nil)
	c := seedContract(t, ms, 1, 10, model.LevelMLB, 1000000, 1000000)
	back := seedContract(t, ms, 2, 20, 6, 300000)
	ctx := context.Background()

	res, err := eng.ExecuteTrade(ctx, model.TradeTerms{
		OrgA:            1,
		OrgB:            2,
		PlayersToB:      []int64{10},
		PlayersToA:      []int64{20},
		SalaryRetention: map[int64]decimal.Decimal{10: d(0.25)},
		CashAToB:        d(50000),
		LeagueYear:      year,
		Week:            3,
	}, "test", "deadline deal")
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}

	for yr, shares := range sharesByYear(t, ms, c.ID) {
		if len(shares) != 2 {
			t.Fatalf("year %d: %d shares, want 2", yr, len(shares))
		}
		for _, sh := range shares {
			switch sh.OrgID {
			case 1:
				if sh.IsHolder || !sh.SalaryShare.Equal(d(0.25)) {
					t.Errorf("year %d sender share = %+v", yr, sh)
				}
			case 2:
				if !sh.IsHolder || !sh.SalaryShare.Equal(d(0.75)) {
					t.Errorf("year %d receiver share = %+v", yr, sh)
				}
			default:
				t.Errorf("unexpected share %+v", sh)
			}
		}
	}
	if shares := sharesByYear(t, ms, back.ID)[1]; len(shares) != 2 {
		t.Errorf("returned player shares = %+v", shares)
	}

	cash := ledger(t, ms, store.LedgerFilter{Types: []model.EntryType{model.EntryTradeCash}})
	if len(cash) != 2 {
		t.Fatalf("trade cash entries = %d, want 2", len(cash))
	}
	sum := decimal.Zero
	for _, e := range cash {
		sum = sum.Add(e.Amount)
		if e.GameWeek == nil || *e.GameWeek != 3 {
			t.Errorf("cash entry week = %v, want 3", e.GameWeek)
		}
		if e.OrgID == 1 && !e.Amount.Equal(d(-50000)) {
			t.Errorf("org 1 cash = %s, want -50000", e.Amount)
		}
	}
	if !sum.IsZero() {
		t.Errorf("cash legs sum to %s, want 0", sum)
	}

	last := rec.events[len(rec.events)-1]
	if len(last.OrgIDs) != 2 {
		t.Errorf("event orgs = %v, want both sides", last.OrgIDs)
	}

	// Rollback restores every share and removes the cash.
	if _, err := eng.Rollback(ctx, res.TransactionID, "admin", ""); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	for _, id := range []int64{c.ID, back.ID} {
		orig := getContract(t, ms, id)
		for yr, shares := range sharesByYear(t, ms, id) {
			if len(shares) != 1 {
				t.Fatalf("contract %d year %d: %d shares after rollback, want 1", id, yr, len(shares))
			}
			sh := shares[0]
			if !sh.IsHolder || sh.OrgID != orig.OrgID || !sh.SalaryShare.Equal(d(1)) {
				t.Errorf("contract %d year %d share = %+v", id, yr, sh)
			}
		}
	}
	if n := len(ledger(t, ms, store.LedgerFilter{})); n != 0 {
		t.Errorf("ledger entries after rollback = %d, want 0", n)
	}
}

func TestExecuteTrade_SupersededRollback(t *testing.T) {
	eng, ms, _ := newTestEnv(t, nil)
	c := seedContract(t, ms, 1, 10, model.LevelMLB, 1000000)
	ctx := context.Background()

	there, err := eng.ExecuteTrade(ctx, model.TradeTerms{OrgA: 1, OrgB: 2, PlayersToB: []int64{10}, LeagueYear: year}, "test", "")
	if err != nil {
		t.Fatalf("trade there: %v", err)
	}
	back, err := eng.ExecuteTrade(ctx, model.TradeTerms{OrgA: 2, OrgB: 1, PlayersToB: []int64{10}, LeagueYear: year}, "test", "")
	if err != nil {
		t.Fatalf("trade back: %v", err)
	}

	_, err = eng.Rollback(ctx, there.TransactionID, "admin", "")
	expectValidation(t, err)

	if _, err := eng.Rollback(ctx, back.TransactionID, "admin", ""); err != nil {
		t.Fatalf("Rollback trade back: %v", err)
	}
	if _, err := eng.Rollback(ctx, there.TransactionID, "admin", ""); err != nil {
		t.Fatalf("Rollback trade there: %v", err)
	}
	shares := sharesByYear(t, ms, c.ID)[1]
	if len(shares) != 1 || shares[0].OrgID != 1 || !shares[0].IsHolder {
		t.Errorf("shares after unwinding = %+v", shares)
	}
}

func TestExecuteTrade_Validation(t *testing.T) {
	eng, ms, _ := newTestEnv(t, nil)
	c := seedContract(t, ms, 1, 10, model.LevelMLB, 1000000)
	ctx := context.Background()

	cases := map[string]model.TradeTerms{
		"same org":          {OrgA: 1, OrgB: 1, PlayersToB: []int64{10}},
		"nothing moves":     {OrgA: 1, OrgB: 2},
		"duplicate player":  {OrgA: 1, OrgB: 2, PlayersToB: []int64{10}, PlayersToA: []int64{10}},
		"retention no move": {OrgA: 1, OrgB: 2, PlayersToB: []int64{10}, SalaryRetention: map[int64]decimal.Decimal{99: d(0.5)}},
		"retention above 1": {OrgA: 1, OrgB: 2, PlayersToB: []int64{10}, SalaryRetention: map[int64]decimal.Decimal{10: d(1.5)}},
		"wrong sender":      {OrgA: 2, OrgB: 1, PlayersToB: []int64{10}},
		"unheld and cash":   {OrgA: 1, OrgB: 2, PlayersToB: []int64{77}, CashAToB: d(1000)},
		"sub-cent cash":     {OrgA: 1, OrgB: 2, CashAToB: d(10.005)},
		"retention places":  {OrgA: 1, OrgB: 2, PlayersToB: []int64{10}, SalaryRetention: map[int64]decimal.Decimal{10: d(0.1234567)}},
	}
	for name, terms := range cases {
		t.Run(name, func(t *testing.T) {
			terms.LeagueYear = year
			_, err := eng.ExecuteTrade(ctx, terms, "test", "")
			expectValidation(t, err)
		})
	}

	shares := sharesByYear(t, ms, c.ID)[1]
	if len(shares) != 1 || shares[0].OrgID != 1 {
		t.Errorf("failed trades changed shares: %+v", shares)
	}
	if n := len(ledger(t, ms, store.LedgerFilter{})); n != 0 {
		t.Errorf("failed trades left %d ledger entries", n)
	}
}

func TestExecuteTrade_CashOnly(t *testing.T) {
	eng, ms, _ := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := eng.ExecuteTrade(ctx, model.TradeTerms{OrgA: 1, OrgB: 2, CashAToB: d(-2500), LeagueYear: year}, "test", ""); err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	entries := ledger(t, ms, store.LedgerFilter{OrgID: model.Int64(2)})
	if len(entries) != 1 || !entries[0].Amount.Equal(d(-2500)) || entries[0].GameWeek != nil {
		t.Errorf("org 2 entries = %+v", entries)
	}
}

func TestExecuteTrade_ChainedRetentionKeepsSharePrecision(t *testing.T) {
	eng, ms, _ := newTestEnv(t, nil)
	c := seedContract(t, ms, 1, 10, model.LevelMLB, 900000)
	ctx := context.Background()
	third := map[int64]decimal.Decimal{10: d(0.333333)}

	if _, err := eng.ExecuteTrade(ctx, model.TradeTerms{OrgA: 1, OrgB: 2, PlayersToB: []int64{10}, SalaryRetention: third, LeagueYear: year}, "test", ""); err != nil {
		t.Fatalf("first trade: %v", err)
	}
	if _, err := eng.ExecuteTrade(ctx, model.TradeTerms{OrgA: 2, OrgB: 1, PlayersToB: []int64{10}, SalaryRetention: third, LeagueYear: year}, "test", ""); err != nil {
		t.Fatalf("second trade: %v", err)
	}

	total := decimal.Zero
	for _, sh := range sharesByYear(t, ms, c.ID)[1] {
		if !sh.SalaryShare.Equal(sh.SalaryShare.Round(transactions.SharePlaces)) {
			t.Errorf("share %d = %s exceeds %d places", sh.ID, sh.SalaryShare, transactions.SharePlaces)
		}
		total = total.Add(sh.SalaryShare)
	}
	if !total.Equal(d(1)) {
		t.Errorf("shares sum to %s, want 1", total)
	}
}
