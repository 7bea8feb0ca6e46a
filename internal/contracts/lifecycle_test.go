package contracts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/contracts"
	"github.com/alexfall862/simBaseball-API-sub000/internal/finance"
	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
	"github.com/alexfall862/simBaseball-API-sub000/internal/transactions"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

const year = 2026

func newTestEnv(t *testing.T) (*contracts.Lifecycle, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		if err := q.UpsertLeagueYear(ctx, &model.LeagueYear{LeagueYear: year, WeeksInSeason: 20}); err != nil {
			return err
		}
		for _, org := range []model.Organization{
			{ID: 1, Abbrev: "BOS"},
			{ID: 2, Abbrev: "NYY"},
		} {
			if err := q.InsertOrganization(ctx, &org); err != nil {
				return err
			}
		}
		return nil
	})
	return contracts.NewLifecycle(ms, contracts.DefaultTerms(), nil), ms
}

func mustTx(t *testing.T, ms *store.MemoryStore, fn func(ctx context.Context, q store.Querier) error) {
	t.Helper()
	ctx := context.Background()
	if err := ms.InTx(ctx, func(q store.Querier) error { return fn(ctx, q) }); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// seed inserts c with one detail per salary. holder, when non-zero, holds
// every year in full; otherwise the signing org keeps a non-holding share.
func seed(t *testing.T, ms *store.MemoryStore, c *model.Contract, holder int64, salaries ...float64) *model.Contract {
	t.Helper()
	c.Years = len(salaries)
	if c.CurrentYear == 0 {
		c.CurrentYear = 1
	}
	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		if err := q.InsertContract(ctx, c); err != nil {
			return err
		}
		for i, s := range salaries {
			det := &model.ContractDetail{ContractID: c.ID, Year: i + 1, Salary: d(s)}
			if err := q.InsertContractDetail(ctx, det); err != nil {
				return err
			}
			sh := &model.TeamShare{DetailID: det.ID, OrgID: c.OrgID, SalaryShare: d(1)}
			if holder != 0 {
				sh.OrgID, sh.IsHolder = holder, true
			}
			if err := q.InsertTeamShare(ctx, sh); err != nil {
				return err
			}
		}
		return nil
	})
	return c
}

func held(player, org int64, level, signingYear int) *model.Contract {
	return &model.Contract{PlayerID: player, OrgID: org, SigningYear: signingYear, CurrentLevel: level}
}

func getContract(t *testing.T, ms *store.MemoryStore, id int64) *model.Contract {
	t.Helper()
	var c *model.Contract
	err := ms.View(context.Background(), func(q store.Querier) error {
		var err error
		c, err = q.GetContract(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("get contract %d: %v", id, err)
	}
	return c
}

func resolution(t *testing.T, res *contracts.EndOfSeasonResult, contractID int64) contracts.Resolution {
	t.Helper()
	for _, r := range res.Resolutions {
		if r.ContractID == contractID {
			return r
		}
	}
	t.Fatalf("no resolution for contract %d", contractID)
	return contracts.Resolution{}
}

func TestProcessEndOfSeason_MinorRenewal(t *testing.T) {
	lc, ms := newTestEnv(t)
	c := seed(t, ms, held(10, 1, 5, year), 1, 30000)

	res, err := lc.ProcessEndOfSeason(context.Background(), year)
	if err != nil {
		t.Fatalf("ProcessEndOfSeason: %v", err)
	}
	if res.Expired != 1 || res.RenewedMinor != 1 {
		t.Errorf("summary = %s", res.Summary())
	}

	if !getContract(t, ms, c.ID).IsFinished {
		t.Error("expired contract not finished")
	}
	r := resolution(t, res, c.ID)
	if r.Outcome != contracts.OutcomeRenewedMinor || r.NewContractID == nil || r.TransactionID == nil {
		t.Fatalf("resolution = %+v", r)
	}
	nc := getContract(t, ms, *r.NewContractID)
	if nc.SigningYear != year+1 || nc.Years != 1 || nc.CurrentYear != 1 || nc.CurrentLevel != 5 || nc.OrgID != 1 || nc.IsFinished {
		t.Errorf("renewal contract = %+v", nc)
	}

	ctx := context.Background()
	err = ms.View(ctx, func(q store.Querier) error {
		details, err := q.ListContractDetails(ctx, nc.ID)
		if err != nil {
			return err
		}
		if len(details) != 1 || !details[0].Salary.Equal(d(40000)) {
			t.Errorf("renewal details = %+v", details)
			return nil
		}
		shares, err := q.ListTeamShares(ctx, details[0].ID)
		if err != nil {
			return err
		}
		if len(shares) != 1 || !shares[0].IsHolder || shares[0].OrgID != 1 || !shares[0].SalaryShare.Equal(d(1)) {
			t.Errorf("renewal shares = %+v", shares)
		}
		tx, err := q.GetTransaction(ctx, *r.TransactionID)
		if err != nil {
			return err
		}
		if tx.Type != model.TxRenewal {
			t.Errorf("log type = %s, want renewal", tx.Type)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	eng := transactions.NewEngine(ms, nil, nil, nil)
	_, err = eng.Rollback(ctx, *r.TransactionID, "admin", "")
	if !errors.Is(err, model.ErrUnsupportedRollback) {
		t.Errorf("rollback of renewal: expected unsupported, got %v", err)
	}
}

func TestProcessEndOfSeason_TopLevelOutcomes(t *testing.T) {
	lc, ms := newTestEnv(t)
	rookie := seed(t, ms, held(10, 1, model.LevelMLB, year), 1, 600000)
	veteran := seed(t, ms, held(11, 2, model.LevelMLB, year), 2, 9000000)

	mustTx(t, ms, func(ctx context.Context, q store.Querier) error {
		for _, y := range []int{year - 3, year - 2, year - 1} {
			if _, err := q.CreditServiceTime(ctx, 11, y); err != nil {
				return err
			}
		}
		return nil
	})

	res, err := lc.ProcessEndOfSeason(context.Background(), year)
	if err != nil {
		t.Fatalf("ProcessEndOfSeason: %v", err)
	}
	if res.ServiceCredited != 2 {
		t.Errorf("service credited = %d, want 2", res.ServiceCredited)
	}

	r := resolution(t, res, rookie.ID)
	if r.Outcome != contracts.OutcomeRenewedPreArb || r.Salary == nil || !r.Salary.Equal(d(800000)) {
		t.Errorf("rookie resolution = %+v", r)
	}
	v := resolution(t, res, veteran.ID)
	if v.Outcome != contracts.OutcomeFreeAgent || v.NewContractID != nil {
		t.Errorf("veteran resolution = %+v", v)
	}
	if !getContract(t, ms, veteran.ID).IsFinished {
		t.Error("free agent contract not finished")
	}

	var st *model.ServiceTime
	_ = ms.View(context.Background(), func(q store.Querier) error {
		var err error
		st, err = q.GetServiceTime(context.Background(), 11)
		return err
	})
	if st.MLBServiceYears != 4 || st.LastAccrualYear != year {
		t.Errorf("veteran service time = %+v", st)
	}
}

func TestProcessEndOfSeason_UnheldBecomesFreeAgent(t *testing.T) {
	lc, ms := newTestEnv(t)
	released := seed(t, ms, held(10, 1, 4, year), 0, 30000)

	res, err := lc.ProcessEndOfSeason(context.Background(), year)
	if err != nil {
		t.Fatalf("ProcessEndOfSeason: %v", err)
	}
	if r := resolution(t, res, released.ID); r.Outcome != contracts.OutcomeFreeAgent {
		t.Errorf("released resolution = %+v", r)
	}
	if res.ServiceCredited != 0 {
		t.Errorf("credited %d players, want 0", res.ServiceCredited)
	}
}

func TestProcessEndOfSeason_ExtensionTakesOver(t *testing.T) {
	lc, ms := newTestEnv(t)
	orig := seed(t, ms, held(10, 1, model.LevelMLB, year), 1, 500000)
	ext := &model.Contract{PlayerID: 10, OrgID: 1, IsExtension: true, SigningYear: year + 1, CurrentLevel: model.LevelMLB}
	seed(t, ms, ext, 1, 700000, 700000)

	res, err := lc.ProcessEndOfSeason(context.Background(), year)
	if err != nil {
		t.Fatalf("ProcessEndOfSeason: %v", err)
	}
	if r := resolution(t, res, orig.ID); r.Outcome != contracts.OutcomeExtended || r.NewContractID != nil {
		t.Errorf("resolution = %+v", r)
	}
	if res.Extended != 1 || res.Expired != 1 {
		t.Errorf("summary = %s", res.Summary())
	}

	got := getContract(t, ms, ext.ID)
	if got.IsFinished || got.CurrentYear != 1 {
		t.Errorf("extension after season = %+v", got)
	}
}

func TestProcessEndOfSeason_AdvanceAndBuyout(t *testing.T) {
	lc, ms := newTestEnv(t)
	multi := seed(t, ms, held(10, 1, 6, year), 1, 100000, 100000, 100000)
	lastYear := seed(t, ms, &model.Contract{PlayerID: 11, OrgID: 2, SigningYear: year - 1, CurrentYear: 2, CurrentLevel: 3}, 2, 50000, 50000)
	buyout := seed(t, ms, &model.Contract{PlayerID: 12, OrgID: 1, IsBuyout: true, SigningYear: year, Bonus: d(250000), CurrentLevel: 7}, 0, 0)

	res, err := lc.ProcessEndOfSeason(context.Background(), year)
	if err != nil {
		t.Fatalf("ProcessEndOfSeason: %v", err)
	}
	if res.Advanced != 1 {
		t.Errorf("advanced = %d, want 1", res.Advanced)
	}
	if got := getContract(t, ms, multi.ID); got.CurrentYear != 2 || got.IsFinished {
		t.Errorf("multi-year contract = %+v", got)
	}

	if r := resolution(t, res, lastYear.ID); r.Outcome != contracts.OutcomeRenewedMinor {
		t.Errorf("final-year resolution = %+v", r)
	} else if nc := getContract(t, ms, *r.NewContractID); nc.SigningYear != year+1 || nc.OrgID != 2 {
		t.Errorf("renewal of final-year contract = %+v", nc)
	}

	if r := resolution(t, res, buyout.ID); r.Outcome != contracts.OutcomeBuyoutClosed || r.NewContractID != nil {
		t.Errorf("buyout resolution = %+v", r)
	}
	if !getContract(t, ms, buyout.ID).IsFinished {
		t.Error("buyout contract not finished")
	}
	if res.Expired != 2 {
		t.Errorf("expired = %d, want 2", res.Expired)
	}
}

func TestProcessEndOfSeason_UnknownYear(t *testing.T) {
	lc, _ := newTestEnv(t)
	_, err := lc.ProcessEndOfSeason(context.Background(), 1999)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessEndOfSeason_RepeatIsNoOp(t *testing.T) {
	lc, ms := newTestEnv(t)
	c := seed(t, ms, &model.Contract{PlayerID: 10, OrgID: 1, SigningYear: year - 1, CurrentYear: 2, CurrentLevel: 4}, 1, 10000, 10000, 10000)
	ctx := context.Background()

	first, err := lc.ProcessEndOfSeason(ctx, year)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Status != finance.StatusProcessed || first.Advanced != 1 || first.Expired != 0 {
		t.Fatalf("first run = %s", first.Summary())
	}

	second, err := lc.ProcessEndOfSeason(ctx, year)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Status != finance.StatusAlreadyProcessed || second.Advanced != 0 || second.Expired != 0 || len(second.Resolutions) != 0 {
		t.Errorf("second run = %s", second.Summary())
	}
	if got := getContract(t, ms, c.ID); got.CurrentYear != 3 || got.IsFinished {
		t.Errorf("contract after repeat = %+v", got)
	}
}

// The expiring set is taken before the advance, so a contract that just
// reached its final year keeps playing next season.
func TestProcessEndOfSeason_EnteringFinalYearIsNotExpired(t *testing.T) {
	lc, ms := newTestEnv(t)
	c := seed(t, ms, &model.Contract{PlayerID: 10, OrgID: 1, SigningYear: year, CurrentLevel: 4}, 1, 10000, 10000)

	res, err := lc.ProcessEndOfSeason(context.Background(), year)
	if err != nil {
		t.Fatalf("ProcessEndOfSeason: %v", err)
	}
	if res.Advanced != 1 || res.Expired != 0 {
		t.Errorf("summary = %s", res.Summary())
	}
	if got := getContract(t, ms, c.ID); got.CurrentYear != 2 || got.IsFinished {
		t.Errorf("contract = %+v", got)
	}
}
