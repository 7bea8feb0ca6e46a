package transactions

import (
	"context"
	"strconv"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// GetTransaction returns one log row.
func (e *Engine) GetTransaction(ctx context.Context, id int64) (*model.TransactionLog, error) {
	var t *model.TransactionLog
	err := e.store.View(ctx, func(q store.Querier) error {
		var err error
		t, err = q.GetTransaction(ctx, id)
		return err
	})
	return t, err
}

// ListTransactions returns log rows newest first.
func (e *Engine) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]model.TransactionLog, error) {
	var out []model.TransactionLog
	err := e.store.View(ctx, func(q store.Querier) error {
		var err error
		out, err = q.ListTransactions(ctx, f)
		return err
	})
	if out == nil {
		out = []model.TransactionLog{}
	}
	return out, err
}

// GetProposal returns one trade proposal.
func (e *Engine) GetProposal(ctx context.Context, id int64) (*model.TradeProposal, error) {
	var p *model.TradeProposal
	err := e.store.View(ctx, func(q store.Querier) error {
		var err error
		p, err = q.GetTradeProposal(ctx, id)
		return err
	})
	return p, err
}

// ListProposals returns trade proposals oldest first.
func (e *Engine) ListProposals(ctx context.Context, f store.ProposalFilter) ([]model.TradeProposal, error) {
	var out []model.TradeProposal
	err := e.store.View(ctx, func(q store.Querier) error {
		var err error
		out, err = q.ListTradeProposals(ctx, f)
		return err
	})
	if out == nil {
		out = []model.TradeProposal{}
	}
	return out, err
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
