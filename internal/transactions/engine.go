// Package transactions executes audited roster and contract mutations:
// level moves, injured list, release, buyout, free-agent signing,
// extension, trades and the trade proposal workflow.
//
// Every operation runs in exactly one store transaction and writes exactly
// one transaction log row whose details carry enough state to reverse it.
// Rollback replays those details and appends a new row; the original row is
// never touched.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/metrics"
	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/roster"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// MaxContractYears bounds signing and extension terms.
const MaxContractYears = 5

// Stored precision: amounts are cents and salary shares have six places.
const (
	MoneyPlaces = 2
	SharePlaces = 6
)

// Event is published after a mutation commits.
type Event struct {
	Type            string                `json:"type"`
	TransactionID   int64                 `json:"transaction_id,omitempty"`
	TransactionType model.TransactionType `json:"transaction_type,omitempty"`
	ProposalID      int64                 `json:"proposal_id,omitempty"`
	Status          model.ProposalStatus  `json:"status,omitempty"`
	LeagueYear      int                   `json:"league_year"`
	OrgIDs          []int64               `json:"org_ids,omitempty"`
	ContractID      *int64                `json:"contract_id,omitempty"`
	PlayerID        *int64                `json:"player_id,omitempty"`
}

// Event types.
const (
	EventTransactionExecuted = "transaction_executed"
	EventTransactionReverted = "transaction_rolled_back"
	EventProposalUpdated     = "trade_proposal_updated"
)

// Notifier receives committed events. api.Hub satisfies it.
type Notifier interface {
	Notify(Event)
}

// Meta is the context recorded with a transaction.
type Meta struct {
	LeagueYear int    `json:"league_year"`
	Week       int    `json:"week"` // 0 = year-level
	ExecutedBy string `json:"executed_by,omitempty"`
	Note       string `json:"note,omitempty"`
}

// Result is returned by every mutating operation.
type Result struct {
	TransactionID   int64                 `json:"transaction_id"`
	TransactionType model.TransactionType `json:"transaction_type"`
	LeagueYear      int                   `json:"league_year"`
	ContractID      *int64                `json:"contract_id,omitempty"`
	PlayerID        *int64                `json:"player_id,omitempty"`
	RollbackOf      *int64                `json:"rollback_of,omitempty"`
	Details         Details               `json:"details"`
}

// Engine runs transactions against a store.
type Engine struct {
	store    store.Store
	limiter  *roster.Limiter
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a transaction engine. limiter, notifier and logger may
// be nil.
func NewEngine(st store.Store, limiter *roster.Limiter, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    st,
		limiter:  limiter,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for proposal timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// record encodes d and appends the log row t.
func record(ctx context.Context, q store.Querier, t *model.TransactionLog, d Details) error {
	raw, err := EncodeDetails(d, t.RollbackOf)
	if err != nil {
		return err
	}
	t.Details = raw
	if err := q.InsertTransaction(ctx, t); err != nil {
		return fmt.Errorf("insert transaction log: %w", err)
	}
	return nil
}

func newResult(t *model.TransactionLog, d Details) *Result {
	return &Result{
		TransactionID:   t.ID,
		TransactionType: t.Type,
		LeagueYear:      t.LeagueYear,
		ContractID:      t.ContractID,
		PlayerID:        t.PlayerID,
		RollbackOf:      t.RollbackOf,
		Details:         d,
	}
}

// committed logs, counts and publishes a transaction after commit.
func (e *Engine) committed(t *model.TransactionLog) {
	orgs := []int64{t.PrimaryOrgID}
	if t.SecondaryOrgID != nil {
		orgs = append(orgs, *t.SecondaryOrgID)
	}

	eventType := EventTransactionExecuted
	msg := "transaction executed"
	if t.RollbackOf != nil {
		eventType = EventTransactionReverted
		msg = "transaction rolled back"
		metrics.RollbacksTotal.WithLabelValues(string(t.Type)).Inc()
	} else {
		metrics.TransactionsTotal.WithLabelValues(string(t.Type)).Inc()
	}

	attrs := []any{
		"transaction_id", t.ID,
		"type", string(t.Type),
		"league_year", t.LeagueYear,
		"org_id", t.PrimaryOrgID,
	}
	if t.ContractID != nil {
		attrs = append(attrs, "contract_id", *t.ContractID)
	}
	if t.RollbackOf != nil {
		attrs = append(attrs, "rollback_of", *t.RollbackOf)
	}
	e.logger.Info(msg, attrs...)

	e.notify(Event{
		Type:            eventType,
		TransactionID:   t.ID,
		TransactionType: t.Type,
		LeagueYear:      t.LeagueYear,
		OrgIDs:          orgs,
		ContractID:      t.ContractID,
		PlayerID:        t.PlayerID,
	})
}

func (e *Engine) notify(ev Event) {
	if e.notifier != nil {
		e.notifier.Notify(ev)
	}
}

// holderOf returns the org holding the contract's current year.
func holderOf(ctx context.Context, q store.Querier, c *model.Contract) (int64, bool, error) {
	details, err := q.ListContractDetails(ctx, c.ID)
	if err != nil {
		return 0, false, fmt.Errorf("list contract details: %w", err)
	}
	for _, det := range details {
		if det.Year != c.CurrentYear {
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

// requireHolder fails unless org holds the contract's current year.
func requireHolder(ctx context.Context, q store.Querier, c *model.Contract, org int64) error {
	holder, ok, err := holderOf(ctx, q, c)
	if err != nil {
		return err
	}
	if !ok || holder != org {
		return model.Invalidf("org %d does not hold contract %d", org, c.ID)
	}
	return nil
}

// checkPeriod rejects a league year that is not configured and a week
// outside 0..weeks_in_season. Week 0 is a year-level posting.
func checkPeriod(ctx context.Context, q store.Querier, year, week int) error {
	ly, err := q.GetLeagueYear(ctx, year)
	if errors.Is(err, model.ErrNotFound) {
		return model.Invalidf("league year %d is not configured", year)
	}
	if err != nil {
		return err
	}
	if week < 0 || week > ly.WeeksInSeason {
		return model.Invalidf("week %d is outside 0..%d for league year %d", week, ly.WeeksInSeason, year)
	}
	return nil
}

// checkPlaces rejects v when it carries more decimal places than storage
// keeps.
func checkPlaces(what string, v decimal.Decimal, places int32) error {
	if !v.Equal(v.Round(places)) {
		return model.Invalidf("%s %s has more than %d decimal places", what, v, places)
	}
	return nil
}

// lockActive locks a contract and rejects finished ones.
func lockActive(ctx context.Context, q store.Querier, id int64) (*model.Contract, error) {
	c, err := q.LockContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsFinished {
		return nil, model.Invalidf("contract %d is finished", id)
	}
	return c, nil
}

// checkRoster applies the roster cap for org at level.
func (e *Engine) checkRoster(ctx context.Context, q store.Querier, org int64, level int) error {
	if err := e.limiter.CheckAdd(ctx, q, org, level); err != nil {
		if model.IsValidation(err) {
			metrics.RosterLimitRejections.Inc()
		}
		return err
	}
	return nil
}
