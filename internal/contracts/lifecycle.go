// Package contracts runs the end-of-season contract lifecycle: service-time
// credit, mid-contract advance and expiry resolution (extension takeover,
// automatic renewal or free agency).
package contracts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/finance"
	"github.com/alexfall862/simBaseball-API-sub000/internal/metrics"
	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
	"github.com/alexfall862/simBaseball-API-sub000/internal/transactions"
)

// Terms are the renewal constants.
type Terms struct {
	MinorRenewalSalary decimal.Decimal
	PreArbSalary       decimal.Decimal
	ArbThresholdYears  int
}

// DefaultTerms returns the standard renewal constants.
func DefaultTerms() Terms {
	return Terms{
		MinorRenewalSalary: decimal.NewFromInt(40000),
		PreArbSalary:       decimal.NewFromInt(800000),
		ArbThresholdYears:  3,
	}
}

// Expiry outcomes.
const (
	OutcomeExtended      = "extended"
	OutcomeRenewedMinor  = "renewed_minor"
	OutcomeRenewedPreArb = "renewed_pre_arb"
	OutcomeFreeAgent     = "free_agent"
	OutcomeBuyoutClosed  = "buyout_closed"
)

// Resolution is what happened to one expiring contract.
type Resolution struct {
	ContractID    int64            `json:"contract_id"`
	PlayerID      int64            `json:"player_id"`
	Outcome       string           `json:"outcome"`
	NewContractID *int64           `json:"new_contract_id,omitempty"`
	OrgID         *int64           `json:"org_id,omitempty"`
	Salary        *decimal.Decimal `json:"salary,omitempty"`
	TransactionID *int64           `json:"transaction_id,omitempty"`
}

// EndOfSeasonResult counts each phase's outcomes.
type EndOfSeasonResult struct {
	RunID           string       `json:"run_id"`
	LeagueYear      int          `json:"league_year"`
	Status          string       `json:"status"`
	ServiceCredited int          `json:"service_credited"`
	Advanced        int          `json:"advanced"`
	Expired         int          `json:"expired"`
	Extended        int          `json:"extended"`
	RenewedMinor    int          `json:"renewed_minor"`
	RenewedPreArb   int          `json:"renewed_pre_arb"`
	FreeAgents      int          `json:"free_agents"`
	BuyoutsClosed   int          `json:"buyouts_closed"`
	Resolutions     []Resolution `json:"resolutions"`
}

// Summary returns a human-readable summary of the run.
func (r *EndOfSeasonResult) Summary() string {
	return fmt.Sprintf(
		"year=%d status=%s credited=%d advanced=%d expired=%d extended=%d renewed_minor=%d renewed_pre_arb=%d free_agents=%d buyouts=%d",
		r.LeagueYear, r.Status, r.ServiceCredited, r.Advanced, r.Expired, r.Extended,
		r.RenewedMinor, r.RenewedPreArb, r.FreeAgents, r.BuyoutsClosed,
	)
}

// Lifecycle processes season boundaries.
type Lifecycle struct {
	store  store.Store
	terms  Terms
	logger *slog.Logger
}

// NewLifecycle creates a lifecycle engine. A nil logger uses slog.Default().
func NewLifecycle(st store.Store, terms Terms, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{store: st, terms: terms, logger: logger}
}

// ProcessEndOfSeason runs, in one transaction: service-time credit for every
// player held at the top level, advance of every started mid-contract, and
// resolution of every contract that was in its final year. The expiring set
// is captured before the advance so a contract that just entered its last
// year is not expired the same night. A year is processed once; a repeat
// call is a no-op reporting finance.StatusAlreadyProcessed.
func (l *Lifecycle) ProcessEndOfSeason(ctx context.Context, year int) (*EndOfSeasonResult, error) {
	defer metrics.ObservePhase("end_of_season", time.Now())

	res := &EndOfSeasonResult{}
	runID := uuid.New().String()

	err := l.store.InTx(ctx, func(q store.Querier) error {
		*res = EndOfSeasonResult{RunID: runID, LeagueYear: year, Status: finance.StatusProcessed, Resolutions: []Resolution{}}

		if _, err := q.GetLeagueYear(ctx, year); err != nil {
			return err
		}
		first, err := q.MarkSeasonProcessed(ctx, year, runID)
		if err != nil {
			return fmt.Errorf("mark season %d processed: %w", year, err)
		}
		if !first {
			res.Status = finance.StatusAlreadyProcessed
			return nil
		}

		// 1. Service time.
		players, err := q.HeldPlayersAtLevel(ctx, model.LevelMLB, year)
		if err != nil {
			return fmt.Errorf("list top-level players: %w", err)
		}
		for _, p := range players {
			credited, err := q.CreditServiceTime(ctx, p, year)
			if err != nil {
				return fmt.Errorf("credit service time for player %d: %w", p, err)
			}
			if credited {
				res.ServiceCredited++
			}
		}

		// Capture the expiring set before advancing.
		active, err := q.ListContracts(ctx, store.ContractFilter{ActiveOnly: true})
		if err != nil {
			return fmt.Errorf("list active contracts: %w", err)
		}
		var expiring []model.Contract
		for _, c := range active {
			if c.SigningYear <= year && c.CurrentYear >= c.Years {
				expiring = append(expiring, c)
			}
		}

		// 2. Advance.
		if res.Advanced, err = q.AdvanceContracts(ctx, year); err != nil {
			return fmt.Errorf("advance contracts: %w", err)
		}

		// 3. Expiry.
		for i := range expiring {
			r, err := l.resolve(ctx, q, &expiring[i])
			if err != nil {
				return err
			}
			res.Expired++
			switch r.Outcome {
			case OutcomeExtended:
				res.Extended++
			case OutcomeRenewedMinor:
				res.RenewedMinor++
			case OutcomeRenewedPreArb:
				res.RenewedPreArb++
			case OutcomeFreeAgent:
				res.FreeAgents++
			case OutcomeBuyoutClosed:
				res.BuyoutsClosed++
			}
			res.Resolutions = append(res.Resolutions, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range res.Resolutions {
		metrics.ContractOutcomes.WithLabelValues(r.Outcome).Inc()
	}
	l.logger.Info("end of season processed",
		"run_id", res.RunID,
		"league_year", year,
		"status", res.Status,
		"service_credited", res.ServiceCredited,
		"advanced", res.Advanced,
		"expired", res.Expired,
		"renewed", res.RenewedMinor+res.RenewedPreArb,
		"free_agents", res.FreeAgents,
	)
	return res, nil
}

// resolve finishes one expiring contract and renews it when the player's
// level and service time call for it.
func (l *Lifecycle) resolve(ctx context.Context, q store.Querier, c *model.Contract) (*Resolution, error) {
	r := &Resolution{ContractID: c.ID, PlayerID: c.PlayerID}

	finish := func(outcome string) (*Resolution, error) {
		c.IsFinished = true
		if err := q.UpdateContract(ctx, c); err != nil {
			return nil, fmt.Errorf("finish contract %d: %w", c.ID, err)
		}
		r.Outcome = outcome
		return r, nil
	}

	if c.IsBuyout {
		return finish(OutcomeBuyoutClosed)
	}

	others, err := q.ListContracts(ctx, store.ContractFilter{PlayerID: &c.PlayerID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list contracts for player %d: %w", c.PlayerID, err)
	}
	for _, o := range others {
		if o.ID != c.ID && o.IsExtension && o.SigningYear == c.EndYear()+1 {
			return finish(OutcomeExtended)
		}
	}

	holder, held, err := finalHolder(ctx, q, c)
	if err != nil {
		return nil, err
	}

	var outcome string
	var salary decimal.Decimal
	if c.CurrentLevel < model.LevelMLB {
		outcome, salary = OutcomeRenewedMinor, l.terms.MinorRenewalSalary
	} else {
		st, err := q.GetServiceTime(ctx, c.PlayerID)
		if err != nil {
			return nil, fmt.Errorf("service time for player %d: %w", c.PlayerID, err)
		}
		if st.MLBServiceYears >= l.terms.ArbThresholdYears {
			return finish(OutcomeFreeAgent)
		}
		outcome, salary = OutcomeRenewedPreArb, l.terms.PreArbSalary
	}
	if !held {
		return finish(OutcomeFreeAgent)
	}

	if _, err := finish(outcome); err != nil {
		return nil, err
	}
	return l.renew(ctx, q, c, holder, salary, r)
}

func (l *Lifecycle) renew(ctx context.Context, q store.Querier, old *model.Contract, holder int64, salary decimal.Decimal, r *Resolution) (*Resolution, error) {
	nc := &model.Contract{
		PlayerID:     old.PlayerID,
		OrgID:        holder,
		Years:        1,
		CurrentYear:  1,
		SigningYear:  old.SigningYear + old.Years,
		Bonus:        decimal.Zero,
		CurrentLevel: old.CurrentLevel,
	}
	if err := q.InsertContract(ctx, nc); err != nil {
		return nil, fmt.Errorf("insert renewal contract: %w", err)
	}
	det := &model.ContractDetail{ContractID: nc.ID, Year: 1, Salary: salary}
	if err := q.InsertContractDetail(ctx, det); err != nil {
		return nil, fmt.Errorf("insert renewal detail: %w", err)
	}
	if err := q.InsertTeamShare(ctx, &model.TeamShare{
		DetailID:    det.ID,
		OrgID:       holder,
		IsHolder:    true,
		SalaryShare: decimal.NewFromInt(1),
	}); err != nil {
		return nil, fmt.Errorf("insert renewal share: %w", err)
	}

	raw, err := transactions.EncodeDetails(&transactions.RenewalDetails{
		OldContractID: old.ID,
		NewContractID: nc.ID,
		OrgID:         holder,
		Salary:        salary,
		Reason:        r.Outcome,
	}, nil)
	if err != nil {
		return nil, err
	}
	t := &model.TransactionLog{
		Type:         model.TxRenewal,
		LeagueYear:   old.EndYear(),
		PrimaryOrgID: holder,
		ContractID:   model.Int64(nc.ID),
		PlayerID:     model.Int64(nc.PlayerID),
		Details:      raw,
		Note:         fmt.Sprintf("renewal of contract %d", old.ID),
		ExecutedBy:   "end_of_season",
	}
	if err := q.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("insert renewal log: %w", err)
	}

	r.NewContractID = model.Int64(nc.ID)
	r.OrgID = model.Int64(holder)
	r.Salary = &salary
	r.TransactionID = model.Int64(t.ID)
	return r, nil
}

// finalHolder returns the holder of the contract's last year.
func finalHolder(ctx context.Context, q store.Querier, c *model.Contract) (int64, bool, error) {
	details, err := q.ListContractDetails(ctx, c.ID)
	if err != nil {
		return 0, false, fmt.Errorf("list contract details: %w", err)
	}
	for _, det := range details {
		if det.Year != c.Years {
			continue
		}
		shares, err := q.ListTeamShares(ctx, det.ID)
		if err != nil {
			return 0, false, fmt.Errorf("list shares for detail %d: %w", det.ID, err)
		}
		for _, sh := range shares {
			if sh.IsHolder {
				return sh.OrgID, true, nil
			}
		}
	}
	return 0, false, nil
}
