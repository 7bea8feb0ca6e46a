package transactions

import (
	"context"
	"fmt"

	"github.com/alexfall862/simBaseball-API-sub000/internal/metrics"
	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// ProposalAction drives a trade proposal transition.
type ProposalAction string

const (
	ActionAccept       ProposalAction = "accept"
	ActionReject       ProposalAction = "reject"
	ActionCancel       ProposalAction = "cancel"
	ActionAdminApprove ProposalAction = "admin_approve"
	ActionAdminReject  ProposalAction = "admin_reject"
)

// transitions lists every legal (status, action) pair. Statuses missing
// here are terminal.
var transitions = map[model.ProposalStatus]map[ProposalAction]model.ProposalStatus{
	model.ProposalProposed: {
		ActionAccept: model.ProposalCounterpartyAccepted,
		ActionReject: model.ProposalCounterpartyRejected,
		ActionCancel: model.ProposalCancelled,
	},
	model.ProposalCounterpartyAccepted: {
		ActionCancel:       model.ProposalCancelled,
		ActionAdminApprove: model.ProposalExecuted,
		ActionAdminReject:  model.ProposalAdminRejected,
	},
}

// NextStatus returns the status reached by applying action to from.
func NextStatus(from model.ProposalStatus, action ProposalAction) (model.ProposalStatus, error) {
	to, ok := transitions[from][action]
	if !ok {
		return "", model.Invalidf("invalid trade proposal transition: %s -> %s", from, action)
	}
	return to, nil
}

// ProposalRequest opens a trade proposal. Terms.OrgA is the proposing org
// and Terms.OrgB the receiving org.
type ProposalRequest struct {
	Terms model.TradeTerms `json:"proposal"`
	Note  string           `json:"note,omitempty"`
}

// ProposalResult is returned by every proposal operation. Trade is set
// only when approval executed the trade.
type ProposalResult struct {
	Proposal *model.TradeProposal `json:"proposal"`
	Trade    *Result              `json:"trade,omitempty"`
}

// Propose stores a new proposal in status proposed.
func (e *Engine) Propose(ctx context.Context, req ProposalRequest) (*ProposalResult, error) {
	if err := validateTradeTerms(req.Terms); err != nil {
		return nil, err
	}

	p := &model.TradeProposal{
		ProposingOrgID: req.Terms.OrgA,
		ReceivingOrgID: req.Terms.OrgB,
		LeagueYear:     req.Terms.LeagueYear,
		Status:         model.ProposalProposed,
		Proposal:       req.Terms,
		ProposalNote:   req.Note,
		ProposedAt:     e.now(),
	}
	err := e.store.InTx(ctx, func(q store.Querier) error {
		if err := checkPeriod(ctx, q, req.Terms.LeagueYear, req.Terms.Week); err != nil {
			return err
		}
		for _, org := range []int64{p.ProposingOrgID, p.ReceivingOrgID} {
			if _, err := q.GetOrganization(ctx, org); err != nil {
				return err
			}
		}
		if err := q.InsertTradeProposal(ctx, p); err != nil {
			return fmt.Errorf("insert trade proposal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.proposalChanged(p)
	return &ProposalResult{Proposal: p}, nil
}

// Accept records the receiving org's acceptance.
func (e *Engine) Accept(ctx context.Context, id int64, note string) (*ProposalResult, error) {
	return e.transition(ctx, id, ActionAccept, note, "")
}

// Reject records the receiving org's rejection.
func (e *Engine) Reject(ctx context.Context, id int64, note string) (*ProposalResult, error) {
	return e.transition(ctx, id, ActionReject, note, "")
}

// Cancel withdraws a proposal that has not been executed.
func (e *Engine) Cancel(ctx context.Context, id int64, note string) (*ProposalResult, error) {
	return e.transition(ctx, id, ActionCancel, note, "")
}

// AdminApprove executes the stored trade and marks the proposal executed.
func (e *Engine) AdminApprove(ctx context.Context, id int64, note, executedBy string) (*ProposalResult, error) {
	return e.transition(ctx, id, ActionAdminApprove, note, executedBy)
}

// AdminReject declines an accepted proposal.
func (e *Engine) AdminReject(ctx context.Context, id int64, note string) (*ProposalResult, error) {
	return e.transition(ctx, id, ActionAdminReject, note, "")
}

func (e *Engine) transition(ctx context.Context, id int64, action ProposalAction, note, executedBy string) (*ProposalResult, error) {
	var p *model.TradeProposal
	var t *model.TransactionLog
	var d *TradeDetails
	err := e.store.InTx(ctx, func(q store.Querier) error {
		var err error
		p, err = q.LockTradeProposal(ctx, id)
		if err != nil {
			return err
		}
		next, err := NextStatus(p.Status, action)
		if err != nil {
			return err
		}

		now := e.now()
		switch action {
		case ActionAccept, ActionReject:
			p.CounterpartyNote = note
			p.CounterpartyActedAt = &now
		case ActionCancel:
			if note != "" {
				p.ProposalNote = note
			}
		case ActionAdminReject:
			p.AdminNote = note
			p.AdminActedAt = &now
		case ActionAdminApprove:
			if err := validateTradeTerms(p.Proposal); err != nil {
				return err
			}
			t, d, err = executeTrade(ctx, q, p.Proposal, executedBy,
				fmt.Sprintf("trade proposal %d", p.ID))
			if err != nil {
				return err
			}
			p.AdminNote = note
			p.AdminActedAt = &now
			p.ExecutedAt = &now
			p.TransactionID = model.Int64(t.ID)
		}
		p.Status = next
		return q.UpdateTradeProposal(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	res := &ProposalResult{Proposal: p}
	if t != nil {
		e.committed(t)
		res.Trade = newResult(t, d)
	}
	e.proposalChanged(p)
	return res, nil
}

func (e *Engine) proposalChanged(p *model.TradeProposal) {
	metrics.ProposalTransitions.WithLabelValues(string(p.Status)).Inc()
	e.logger.Info("trade proposal updated",
		"proposal_id", p.ID,
		"status", string(p.Status),
		"league_year", p.LeagueYear,
		"org_id", p.ProposingOrgID,
	)
	e.notify(Event{
		Type:       EventProposalUpdated,
		ProposalID: p.ID,
		Status:     p.Status,
		LeagueYear: p.LeagueYear,
		OrgIDs:     []int64{p.ProposingOrgID, p.ReceivingOrgID},
	})
}
