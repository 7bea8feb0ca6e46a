package transactions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// Details is the reversal data stored with a transaction log row. The set
// of variants is closed: each one knows how to undo itself, so a new kind
// cannot be added without writing its reversal.
type Details interface {
	kind() string
	reverse(ctx context.Context, q store.Querier) error
}

// Detail kinds as persisted in the envelope.
const (
	kindLevelChange = "level_change"
	kindInjuredList = "injured_list"
	kindRelease     = "release"
	kindBuyout      = "buyout"
	kindSigning     = "signing"
	kindTrade       = "trade"
	kindRenewal     = "renewal"
)

// envelope is the JSON form of Details in transaction_log.details.
type envelope struct {
	Kind       string          `json:"kind"`
	RollbackOf *int64          `json:"rollback_of,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// EncodeDetails wraps d in its envelope. rollbackOf is set on rows written
// by a rollback.
func EncodeDetails(d Details, rollbackOf *int64) (json.RawMessage, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode %s details: %w", d.kind(), err)
	}
	out, err := json.Marshal(envelope{Kind: d.kind(), RollbackOf: rollbackOf, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out, nil
}

// DecodeDetails parses an envelope. Unknown kinds return
// model.ErrUnsupportedRollback.
func DecodeDetails(raw json.RawMessage) (Details, *int64, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}

	var d Details
	switch env.Kind {
	case kindLevelChange:
		d = &LevelChangeDetails{}
	case kindInjuredList:
		d = &InjuredListDetails{}
	case kindRelease:
		d = &ReleaseDetails{}
	case kindBuyout:
		d = &BuyoutDetails{}
	case kindSigning:
		d = &SigningDetails{}
	case kindTrade:
		d = &TradeDetails{}
	case kindRenewal:
		d = &RenewalDetails{}
	default:
		return nil, env.RollbackOf, fmt.Errorf("%w: unknown details kind %q", model.ErrUnsupportedRollback, env.Kind)
	}
	if err := json.Unmarshal(env.Data, d); err != nil {
		return nil, nil, fmt.Errorf("decode %s details: %w", env.Kind, err)
	}
	return d, env.RollbackOf, nil
}

// --- Level change (promote, demote) ---

// LevelChangeDetails records a promote or demote. Rollback restores
// FromLevel if the contract is still at ToLevel.
type LevelChangeDetails struct {
	ContractID int64 `json:"contract_id"`
	FromLevel  int   `json:"from_level"`
	ToLevel    int   `json:"to_level"`
}

func (*LevelChangeDetails) kind() string { return kindLevelChange }

func (d *LevelChangeDetails) reverse(ctx context.Context, q store.Querier) error {
	c, err := q.LockContract(ctx, d.ContractID)
	if err != nil {
		return err
	}
	if c.CurrentLevel != d.ToLevel {
		return model.Invalidf("contract %d moved to level %d since this transaction", c.ID, c.CurrentLevel)
	}
	c.CurrentLevel = d.FromLevel
	return q.UpdateContract(ctx, c)
}

// --- Injured list ---

// InjuredListDetails records a move onto or off the injured list.
type InjuredListDetails struct {
	ContractID int64 `json:"contract_id"`
	WasOnIR    bool  `json:"was_on_ir"`
	NowOnIR    bool  `json:"now_on_ir"`
}

func (*InjuredListDetails) kind() string { return kindInjuredList }

func (d *InjuredListDetails) reverse(ctx context.Context, q store.Querier) error {
	c, err := q.LockContract(ctx, d.ContractID)
	if err != nil {
		return err
	}
	if c.OnIR != d.NowOnIR {
		return model.Invalidf("contract %d injured-list status changed since this transaction", c.ID)
	}
	c.OnIR = d.WasOnIR
	return q.UpdateContract(ctx, c)
}

// --- Release ---

// ShareRef names one team share row and the detail it belongs to.
type ShareRef struct {
	ShareID  int64 `json:"share_id"`
	DetailID int64 `json:"detail_id"`
}

// ReleaseDetails records the holder shares a release cleared. The salary
// obligation stays with the releasing org.
type ReleaseDetails struct {
	ContractID int64      `json:"contract_id"`
	OrgID      int64      `json:"org_id"`
	Shares     []ShareRef `json:"shares"`
}

func (*ReleaseDetails) kind() string { return kindRelease }

func (d *ReleaseDetails) reverse(ctx context.Context, q store.Querier) error {
	c, err := q.LockContract(ctx, d.ContractID)
	if err != nil {
		return err
	}
	if c.IsFinished {
		return model.Invalidf("contract %d finished since it was released", c.ID)
	}
	for _, ref := range d.Shares {
		shares, err := q.ListTeamShares(ctx, ref.DetailID)
		if err != nil {
			return fmt.Errorf("list shares for detail %d: %w", ref.DetailID, err)
		}
		for _, sh := range shares {
			if sh.IsHolder && sh.ID != ref.ShareID {
				return model.Invalidf("detail %d has a new holder (org %d)", ref.DetailID, sh.OrgID)
			}
		}
		sh, err := q.GetTeamShare(ctx, ref.ShareID)
		if err != nil {
			return err
		}
		sh.IsHolder = true
		if err := q.UpdateTeamShare(ctx, sh); err != nil {
			return fmt.Errorf("restore share %d: %w", sh.ID, err)
		}
	}
	return nil
}

// --- Buyout ---

// BuyoutDetails links the finished contract to the one-year buyout contract
// and the ledger entry that paid it.
type BuyoutDetails struct {
	OriginalContractID int64           `json:"original_contract_id"`
	BuyoutContractID   int64           `json:"buyout_contract_id"`
	LedgerEntryID      int64           `json:"ledger_entry_id"`
	Amount             decimal.Decimal `json:"amount"`
}

func (*BuyoutDetails) kind() string { return kindBuyout }

func (d *BuyoutDetails) reverse(ctx context.Context, q store.Querier) error {
	orig, err := q.LockContract(ctx, d.OriginalContractID)
	if err != nil {
		return err
	}
	if _, err := q.LockContract(ctx, d.BuyoutContractID); err != nil {
		return err
	}
	others, err := q.ListContracts(ctx, store.ContractFilter{PlayerID: &orig.PlayerID, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("list player contracts: %w", err)
	}
	for i := range others {
		o := &others[i]
		if o.ID == orig.ID || o.ID == d.BuyoutContractID {
			continue
		}
		holder, held, err := holderOf(ctx, q, o)
		if err != nil {
			return err
		}
		if held {
			return model.Invalidf("player %d has since signed contract %d with org %d", orig.PlayerID, o.ID, holder)
		}
	}
	if err := q.DeleteLedgerEntry(ctx, d.LedgerEntryID); err != nil {
		return fmt.Errorf("delete buyout entry: %w", err)
	}
	if err := q.DeleteContractChain(ctx, d.BuyoutContractID); err != nil {
		return fmt.Errorf("delete buyout contract: %w", err)
	}
	orig.IsFinished = false
	return q.UpdateContract(ctx, orig)
}

// --- Signing and extension ---

// SigningDetails records a free-agent signing or an extension. For an
// extension OriginalContractID names the contract it replaced.
type SigningDetails struct {
	ContractID         int64  `json:"contract_id"`
	OrgID              int64  `json:"org_id"`
	LedgerEntryID      *int64 `json:"ledger_entry_id,omitempty"`
	Extension          bool   `json:"extension"`
	OriginalContractID *int64 `json:"original_contract_id,omitempty"`
}

func (*SigningDetails) kind() string { return kindSigning }

func (d *SigningDetails) reverse(ctx context.Context, q store.Querier) error {
	c, err := q.LockContract(ctx, d.ContractID)
	if err != nil {
		return err
	}
	if c.IsFinished {
		return model.Invalidf("contract %d finished since it was signed", c.ID)
	}
	// The chain may only be removed while it is still wholly the signer's.
	details, err := q.ListContractDetails(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list contract details: %w", err)
	}
	for _, det := range details {
		shares, err := q.ListTeamShares(ctx, det.ID)
		if err != nil {
			return fmt.Errorf("list shares for detail %d: %w", det.ID, err)
		}
		if len(shares) != 1 || shares[0].OrgID != d.OrgID || !shares[0].IsHolder {
			return model.Invalidf("contract %d changed hands since it was signed", c.ID)
		}
	}
	if d.LedgerEntryID != nil {
		if err := q.DeleteLedgerEntry(ctx, *d.LedgerEntryID); err != nil {
			return fmt.Errorf("delete bonus entry: %w", err)
		}
	}
	if err := q.DeleteContractChain(ctx, c.ID); err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	return nil
}

// --- Trade ---

// ShareMutation records one contract-year share moved by a trade.
type ShareMutation struct {
	ContractID  int64           `json:"contract_id"`
	DetailID    int64           `json:"detail_id"`
	OldShareID  int64           `json:"old_share_id"`
	OldOrgID    int64           `json:"old_org_id"`
	OldShare    decimal.Decimal `json:"old_share"`
	OldIsHolder bool            `json:"old_is_holder"`
	NewShareID  int64           `json:"new_share_id"`
	NewOrgID    int64           `json:"new_org_id"`
}

// TradeDetails records every share mutation and cash entry of a trade.
type TradeDetails struct {
	OrgA           int64           `json:"org_a"`
	OrgB           int64           `json:"org_b"`
	PlayersToB     []int64         `json:"players_to_b"`
	PlayersToA     []int64         `json:"players_to_a"`
	CashAToB       decimal.Decimal `json:"cash_a_to_b"`
	ShareMutations []ShareMutation `json:"share_mutations"`
	LedgerEntryIDs []int64         `json:"ledger_entry_ids"`
}

func (*TradeDetails) kind() string { return kindTrade }

func (d *TradeDetails) reverse(ctx context.Context, q store.Querier) error {
	locked := make(map[int64]bool)
	for _, m := range d.ShareMutations {
		if locked[m.ContractID] {
			continue
		}
		if _, err := q.LockContract(ctx, m.ContractID); err != nil {
			return err
		}
		locked[m.ContractID] = true
	}

	// Undo in reverse order so repeated mutations of one detail unwind
	// cleanly.
	for i := len(d.ShareMutations) - 1; i >= 0; i-- {
		m := d.ShareMutations[i]
		added, err := q.GetTeamShare(ctx, m.NewShareID)
		if err != nil {
			return model.Invalidf("trade superseded: share %d for contract %d no longer exists", m.NewShareID, m.ContractID)
		}
		if !added.IsHolder || added.OrgID != m.NewOrgID {
			return model.Invalidf("trade superseded: contract %d moved on from org %d", m.ContractID, m.NewOrgID)
		}
		if err := q.DeleteTeamShare(ctx, added.ID); err != nil {
			return fmt.Errorf("delete share %d: %w", added.ID, err)
		}
		old, err := q.GetTeamShare(ctx, m.OldShareID)
		if err != nil {
			return err
		}
		old.IsHolder = m.OldIsHolder
		old.SalaryShare = m.OldShare
		if err := q.UpdateTeamShare(ctx, old); err != nil {
			return fmt.Errorf("restore share %d: %w", old.ID, err)
		}
	}

	for _, id := range d.LedgerEntryIDs {
		if err := q.DeleteLedgerEntry(ctx, id); err != nil {
			return fmt.Errorf("delete trade cash entry: %w", err)
		}
	}
	return nil
}

// --- Renewal ---

// RenewalDetails is written by the end-of-season engine. Renewals are not
// reversible.
type RenewalDetails struct {
	OldContractID int64           `json:"old_contract_id"`
	NewContractID int64           `json:"new_contract_id"`
	OrgID         int64           `json:"org_id"`
	Salary        decimal.Decimal `json:"salary"`
	Reason        string          `json:"reason"`
}

func (*RenewalDetails) kind() string { return kindRenewal }

func (d *RenewalDetails) reverse(context.Context, store.Querier) error {
	return fmt.Errorf("%w: renewal of contract %d", model.ErrUnsupportedRollback, d.OldContractID)
}
