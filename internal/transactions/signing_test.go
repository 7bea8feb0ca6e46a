package transactions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/roster"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
	"github.com/alexfall862/simBaseball-API-sub000/internal/transactions"
)

func signing(player, org int64, bonus float64, salaries ...float64) transactions.SigningRequest {
	req := transactions.SigningRequest{
		PlayerID: player,
		OrgID:    org,
		Years:    len(salaries),
		Bonus:    d(bonus),
		Level:    model.LevelMLB,
		Meta:     meta,
	}
	for _, s := range salaries {
		req.Salaries = append(req.Salaries, d(s))
	}
	return req
}

func TestSignFreeAgent(t *testing.T) {
	eng, ms, _ := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := eng.SignFreeAgent(ctx, signing(10, 1, 100000, 500000, 600000))
	if err != nil {
		t.Fatalf("SignFreeAgent: %v", err)
	}
	c := getContract(t, ms, *res.ContractID)
	if c.Years != 2 || c.SigningYear != year || c.OrgID != 1 || c.CurrentYear != 1 {
		t.Errorf("contract = %+v", c)
	}
	shares := sharesByYear(t, ms, c.ID)
	if len(shares) != 2 {
		t.Fatalf("detail years = %d, want 2", len(shares))
	}
	for yr, s := range shares {
		if len(s) != 1 || !s[0].IsHolder || s[0].OrgID != 1 {
			t.Errorf("year %d shares = %+v", yr, s)
		}
	}

	bonus := ledger(t, ms, store.LedgerFilter{Types: []model.EntryType{model.EntryBonus}})
	if len(bonus) != 1 || !bonus[0].Amount.Equal(d(-100000)) || bonus[0].GameWeek != nil {
		t.Errorf("bonus entries = %+v", bonus)
	}

	_, err = eng.SignFreeAgent(ctx, signing(10, 2, 0, 500000))
	expectValidation(t, err)
}

func TestSignFreeAgent_InvalidTerms(t *testing.T) {
	eng, _, _ := newTestEnv(t, nil)
	ctx := context.Background()

	cases := map[string]transactions.SigningRequest{
		"no years":        signing(10, 1, 0),
		"too many years":  signing(10, 1, 0, 1, 1, 1, 1, 1, 1),
		"negative bonus":  signing(10, 1, -5, 100),
		"negative salary": signing(10, 1, 0, -100),
		"sub-cent bonus":  signing(10, 1, 10.005, 100),
		"sub-cent salary": signing(10, 1, 0, 100.001),
	}
	mismatch := signing(10, 1, 0, 100, 100)
	mismatch.Years = 3
	cases["salary count mismatch"] = mismatch
	badLevel := signing(10, 1, 0, 100)
	badLevel.Level = 0
	cases["bad level"] = badLevel

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := eng.SignFreeAgent(ctx, req)
			expectValidation(t, err)
		})
	}
}

func TestSignFreeAgent_Budget(t *testing.T) {
	eng, ms, _ := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := eng.SignFreeAgent(ctx, signing(10, 1, 1500000, 100))
	expectValidation(t, err)

	// An unposted bonus on an active contract counts against the budget.
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		return q.InsertContract(ctx, &model.Contract{
			PlayerID: 20, OrgID: 1, Years: 1, CurrentYear: 1,
			SigningYear: year + 1, Bonus: d(900000), CurrentLevel: 5,
		})
	})

	var budget decimal.Decimal
	view(t, ms, func(ctx context.Context, q store.Querier) error {
		var err error
		budget, err = transactions.SigningBudget(ctx, q, 1, year)
		return err
	})
	if !budget.Equal(d(100000)) {
		t.Errorf("budget = %s, want 100000", budget)
	}

	_, err = eng.SignFreeAgent(ctx, signing(10, 1, 200000, 100))
	expectValidation(t, err)
	if _, err := eng.SignFreeAgent(ctx, signing(10, 1, 100000, 100)); err != nil {
		t.Fatalf("SignFreeAgent at budget: %v", err)
	}
}

func TestSignFreeAgent_RosterLimit(t *testing.T) {
	eng, ms, _ := newTestEnv(t, map[int]int{model.LevelMLB: 1})
	seedContract(t, ms, 1, 10, model.LevelMLB, 100000)
	ctx := context.Background()

	_, err := eng.SignFreeAgent(ctx, signing(11, 1, 0, 100000))
	if !errors.Is(err, roster.ErrRosterLimitExceeded) {
		t.Fatalf("expected roster limit error, got %v", err)
	}

	req := signing(11, 1, 0, 100000)
	req.Level = 4
	if _, err := eng.SignFreeAgent(ctx, req); err != nil {
		t.Fatalf("SignFreeAgent at level 4: %v", err)
	}
}

func TestSignFreeAgent_Rollback(t *testing.T) {
	eng, ms, _ := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := eng.SignFreeAgent(ctx, signing(10, 1, 100000, 500000))
	if err != nil {
		t.Fatalf("SignFreeAgent: %v", err)
	}
	if _, err := eng.Rollback(ctx, res.TransactionID, "admin", ""); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if contractExists(t, ms, *res.ContractID) {
		t.Error("rollback left the signed contract")
	}
	if n := len(ledger(t, ms, store.LedgerFilter{})); n != 0 {
		t.Errorf("ledger entries after rollback = %d, want 0", n)
	}
}

func TestSignFreeAgent_RollbackAfterTrade(t *testing.T) {
	eng, _, _ := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := eng.SignFreeAgent(ctx, signing(10, 1, 0, 500000))
	if err != nil {
		t.Fatalf("SignFreeAgent: %v", err)
	}
	if _, err := eng.ExecuteTrade(ctx, model.TradeTerms{
		OrgA: 1, OrgB: 2, PlayersToB: []int64{10}, LeagueYear: year,
	}, "test", ""); err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	_, err = eng.Rollback(ctx, res.TransactionID, "admin", "")
	expectValidation(t, err)
}

func TestExtendContract(t *testing.T) {
	eng, ms, _ := newTestEnv(t, nil)
	orig := seedContract(t, ms, 1, 10, model.LevelMLB, 500000, 500000)
	ctx := context.Background()

	req := transactions.ExtensionRequest{
		OrgID:    1,
		Years:    3,
		Salaries: []decimal.Decimal{d(700000), d(700000), d(800000)},
		Bonus:    d(50000),
		Meta:     meta,
	}

	other := req
	other.OrgID = 2
	_, err := eng.ExtendContract(ctx, orig.ID, other)
	expectValidation(t, err)

	res, err := eng.ExtendContract(ctx, orig.ID, req)
	if err != nil {
		t.Fatalf("ExtendContract: %v", err)
	}
	ext := getContract(t, ms, *res.ContractID)
	if !ext.IsExtension || ext.SigningYear != year+2 || ext.Years != 3 || ext.CurrentLevel != model.LevelMLB {
		t.Errorf("extension = %+v", ext)
	}
	if res.TransactionType != model.TxExtension {
		t.Errorf("type = %s, want extension", res.TransactionType)
	}

	_, err = eng.ExtendContract(ctx, orig.ID, req)
	expectValidation(t, err)

	if _, err := eng.Rollback(ctx, res.TransactionID, "admin", ""); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if contractExists(t, ms, ext.ID) {
		t.Error("rollback left the extension")
	}
	if _, err := eng.ExtendContract(ctx, orig.ID, req); err != nil {
		t.Fatalf("ExtendContract after rollback: %v", err)
	}
}
