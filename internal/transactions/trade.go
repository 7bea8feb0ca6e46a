package transactions

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

func validateTradeTerms(terms model.TradeTerms) error {
	if terms.OrgA == 0 || terms.OrgB == 0 {
		return model.Invalidf("trade needs two organizations")
	}
	if terms.OrgA == terms.OrgB {
		return model.Invalidf("an organization cannot trade with itself")
	}
	if len(terms.PlayersToA) == 0 && len(terms.PlayersToB) == 0 && terms.CashAToB.IsZero() {
		return model.Invalidf("trade moves no players and no cash")
	}

	if err := checkPlaces("trade cash", terms.CashAToB, MoneyPlaces); err != nil {
		return err
	}

	seen := make(map[int64]bool)
	for _, p := range append(slices.Clone(terms.PlayersToB), terms.PlayersToA...) {
		if seen[p] {
			return model.Invalidf("player %d appears more than once in the trade", p)
		}
		seen[p] = true
	}
	one := decimal.NewFromInt(1)
	for p, r := range terms.SalaryRetention {
		if !seen[p] {
			return model.Invalidf("salary retention given for player %d who is not traded", p)
		}
		if r.IsNegative() || r.GreaterThan(one) {
			return model.Invalidf("salary retention for player %d must be between 0 and 1", p)
		}
		if err := checkPlaces("salary retention", r, SharePlaces); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteTrade moves players and cash between two organizations.
func (e *Engine) ExecuteTrade(ctx context.Context, terms model.TradeTerms, executedBy, note string) (*Result, error) {
	if err := validateTradeTerms(terms); err != nil {
		return nil, err
	}

	var t *model.TransactionLog
	var d *TradeDetails
	err := e.store.InTx(ctx, func(q store.Querier) error {
		var err error
		t, d, err = executeTrade(ctx, q, terms, executedBy, note)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.committed(t)
	return newResult(t, d), nil
}

// executeTrade is the in-transaction body shared with proposal approval.
// Every moved contract is locked and its holder re-validated, so a stale
// payload fails rather than double-assigning a player.
func executeTrade(ctx context.Context, q store.Querier, terms model.TradeTerms, executedBy, note string) (*model.TransactionLog, *TradeDetails, error) {
	if err := checkPeriod(ctx, q, terms.LeagueYear, terms.Week); err != nil {
		return nil, nil, err
	}
	for _, org := range []int64{terms.OrgA, terms.OrgB} {
		if _, err := q.GetOrganization(ctx, org); err != nil {
			return nil, nil, err
		}
	}

	d := &TradeDetails{
		OrgA:           terms.OrgA,
		OrgB:           terms.OrgB,
		PlayersToB:     terms.PlayersToB,
		PlayersToA:     terms.PlayersToA,
		CashAToB:       terms.CashAToB,
		ShareMutations: []ShareMutation{},
		LedgerEntryIDs: []int64{},
	}

	moves := []struct {
		players  []int64
		from, to int64
	}{
		{terms.PlayersToB, terms.OrgA, terms.OrgB},
		{terms.PlayersToA, terms.OrgB, terms.OrgA},
	}
	for _, mv := range moves {
		for _, player := range mv.players {
			retain := terms.SalaryRetention[player]
			muts, err := movePlayer(ctx, q, player, mv.from, mv.to, retain)
			if err != nil {
				return nil, nil, err
			}
			d.ShareMutations = append(d.ShareMutations, muts...)
		}
	}

	if !terms.CashAToB.IsZero() {
		for _, leg := range []struct {
			org    int64
			amount decimal.Decimal
		}{
			{terms.OrgA, terms.CashAToB.Neg()},
			{terms.OrgB, terms.CashAToB},
		} {
			entry := &model.LedgerEntry{
				OrgID:      leg.org,
				LeagueYear: terms.LeagueYear,
				GameWeek:   model.Week(terms.Week),
				EntryType:  model.EntryTradeCash,
				Amount:     leg.amount,
				Note:       fmt.Sprintf("trade cash between org %d and org %d", terms.OrgA, terms.OrgB),
			}
			if err := q.InsertLedgerEntry(ctx, entry); err != nil {
				return nil, nil, fmt.Errorf("insert trade cash entry: %w", err)
			}
			d.LedgerEntryIDs = append(d.LedgerEntryIDs, entry.ID)
		}
	}

	t := &model.TransactionLog{
		Type:           model.TxTrade,
		LeagueYear:     terms.LeagueYear,
		PrimaryOrgID:   terms.OrgA,
		SecondaryOrgID: model.Int64(terms.OrgB),
		Note:           note,
		ExecutedBy:     executedBy,
	}
	if err := record(ctx, q, t, d); err != nil {
		return nil, nil, err
	}
	return t, d, nil
}

// movePlayer transfers every active contract of player held by from. For
// each remaining contract year the sender's row keeps share×retain as dead
// money and the receiver gets a new holder row for the rest.
func movePlayer(ctx context.Context, q store.Querier, player, from, to int64, retain decimal.Decimal) ([]ShareMutation, error) {
	contracts, err := q.ListContracts(ctx, store.ContractFilter{PlayerID: &player, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list contracts for player %d: %w", player, err)
	}

	var muts []ShareMutation
	moved := 0
	for i := range contracts {
		c, err := q.LockContract(ctx, contracts[i].ID)
		if err != nil {
			return nil, err
		}
		if c.IsFinished {
			continue
		}
		holder, held, err := holderOf(ctx, q, c)
		if err != nil {
			return nil, err
		}
		if !held || holder != from {
			continue
		}
		moved++

		details, err := q.ListContractDetails(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list contract details: %w", err)
		}
		for _, det := range details {
			if det.Year < c.CurrentYear {
				continue
			}
			shares, err := q.ListTeamShares(ctx, det.ID)
			if err != nil {
				return nil, fmt.Errorf("list shares for detail %d: %w", det.ID, err)
			}
			for j := range shares {
				old := shares[j]
				if old.OrgID != from || !old.IsHolder {
					continue
				}
				mut := ShareMutation{
					ContractID:  c.ID,
					DetailID:    det.ID,
					OldShareID:  old.ID,
					OldOrgID:    old.OrgID,
					OldShare:    old.SalaryShare,
					OldIsHolder: old.IsHolder,
					NewOrgID:    to,
				}

				// The kept part is rounded to share precision; the receiver
				// gets the exact remainder so the year still sums to the
				// original share.
				kept := old.SalaryShare.Mul(retain).Round(SharePlaces)
				received := &model.TeamShare{
					DetailID:    det.ID,
					OrgID:       to,
					IsHolder:    true,
					SalaryShare: old.SalaryShare.Sub(kept),
				}
				old.IsHolder = false
				old.SalaryShare = kept
				if err := q.UpdateTeamShare(ctx, &old); err != nil {
					return nil, fmt.Errorf("update share %d: %w", old.ID, err)
				}
				if err := q.InsertTeamShare(ctx, received); err != nil {
					return nil, fmt.Errorf("insert share for org %d: %w", to, err)
				}
				mut.NewShareID = received.ID
				muts = append(muts, mut)
			}
		}
	}

	if moved == 0 {
		return nil, model.Invalidf("player %d is not held by org %d", player, from)
	}
	return muts, nil
}
