package transactions

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// Promote raises a contract's competitive level.
func (e *Engine) Promote(ctx context.Context, contractID int64, level int, meta Meta) (*Result, error) {
	return e.changeLevel(ctx, model.TxPromote, contractID, level, meta)
}

// Demote lowers a contract's competitive level.
func (e *Engine) Demote(ctx context.Context, contractID int64, level int, meta Meta) (*Result, error) {
	return e.changeLevel(ctx, model.TxDemote, contractID, level, meta)
}

func (e *Engine) changeLevel(ctx context.Context, txType model.TransactionType, contractID int64, level int, meta Meta) (*Result, error) {
	if !model.ValidLevel(level) {
		return nil, model.Invalidf("level %d is outside %d..%d", level, model.LevelMin, model.LevelMLB)
	}

	var t *model.TransactionLog
	var d *LevelChangeDetails
	err := e.store.InTx(ctx, func(q store.Querier) error {
		if err := checkPeriod(ctx, q, meta.LeagueYear, meta.Week); err != nil {
			return err
		}
		c, err := lockActive(ctx, q, contractID)
		if err != nil {
			return err
		}
		if txType == model.TxPromote && level <= c.CurrentLevel {
			return model.Invalidf("cannot promote contract %d from level %d to %d", c.ID, c.CurrentLevel, level)
		}
		if txType == model.TxDemote && level >= c.CurrentLevel {
			return model.Invalidf("cannot demote contract %d from level %d to %d", c.ID, c.CurrentLevel, level)
		}

		org := c.OrgID
		holder, held, err := holderOf(ctx, q, c)
		if err != nil {
			return err
		}
		if held {
			org = holder
			if !c.OnIR {
				if err := e.checkRoster(ctx, q, holder, level); err != nil {
					return err
				}
			}
		}

		d = &LevelChangeDetails{ContractID: c.ID, FromLevel: c.CurrentLevel, ToLevel: level}
		c.CurrentLevel = level
		if err := q.UpdateContract(ctx, c); err != nil {
			return fmt.Errorf("update contract level: %w", err)
		}

		t = &model.TransactionLog{
			Type:         txType,
			LeagueYear:   meta.LeagueYear,
			PrimaryOrgID: org,
			ContractID:   model.Int64(c.ID),
			PlayerID:     model.Int64(c.PlayerID),
			Note:         meta.Note,
			ExecutedBy:   meta.ExecutedBy,
		}
		return record(ctx, q, t, d)
	})
	if err != nil {
		return nil, err
	}

	e.committed(t)
	return newResult(t, d), nil
}

// PlaceOnIR moves a contract to the injured list.
func (e *Engine) PlaceOnIR(ctx context.Context, contractID int64, meta Meta) (*Result, error) {
	return e.setIR(ctx, model.TxPlaceIR, contractID, true, meta)
}

// ActivateFromIR returns a contract from the injured list.
func (e *Engine) ActivateFromIR(ctx context.Context, contractID int64, meta Meta) (*Result, error) {
	return e.setIR(ctx, model.TxActivateIR, contractID, false, meta)
}

func (e *Engine) setIR(ctx context.Context, txType model.TransactionType, contractID int64, onIR bool, meta Meta) (*Result, error) {
	var t *model.TransactionLog
	var d *InjuredListDetails
	err := e.store.InTx(ctx, func(q store.Querier) error {
		if err := checkPeriod(ctx, q, meta.LeagueYear, meta.Week); err != nil {
			return err
		}
		c, err := lockActive(ctx, q, contractID)
		if err != nil {
			return err
		}
		if c.OnIR == onIR {
			if onIR {
				return model.Invalidf("contract %d is already on the injured list", c.ID)
			}
			return model.Invalidf("contract %d is not on the injured list", c.ID)
		}

		org := c.OrgID
		holder, held, err := holderOf(ctx, q, c)
		if err != nil {
			return err
		}
		if held {
			org = holder
			if !onIR {
				if err := e.checkRoster(ctx, q, holder, c.CurrentLevel); err != nil {
					return err
				}
			}
		}

		d = &InjuredListDetails{ContractID: c.ID, WasOnIR: c.OnIR, NowOnIR: onIR}
		c.OnIR = onIR
		if err := q.UpdateContract(ctx, c); err != nil {
			return fmt.Errorf("update injured list: %w", err)
		}

		t = &model.TransactionLog{
			Type:         txType,
			LeagueYear:   meta.LeagueYear,
			PrimaryOrgID: org,
			ContractID:   model.Int64(c.ID),
			PlayerID:     model.Int64(c.PlayerID),
			Note:         meta.Note,
			ExecutedBy:   meta.ExecutedBy,
		}
		return record(ctx, q, t, d)
	})
	if err != nil {
		return nil, err
	}

	e.committed(t)
	return newResult(t, d), nil
}

// Release drops org's holder flag on every remaining contract year. The
// salary obligation stays with org as dead money and the contract stays
// active.
func (e *Engine) Release(ctx context.Context, contractID, orgID int64, meta Meta) (*Result, error) {
	var t *model.TransactionLog
	var d *ReleaseDetails
	err := e.store.InTx(ctx, func(q store.Querier) error {
		if err := checkPeriod(ctx, q, meta.LeagueYear, meta.Week); err != nil {
			return err
		}
		c, err := lockActive(ctx, q, contractID)
		if err != nil {
			return err
		}
		if err := requireHolder(ctx, q, c, orgID); err != nil {
			return err
		}

		d = &ReleaseDetails{ContractID: c.ID, OrgID: orgID}
		details, err := q.ListContractDetails(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("list contract details: %w", err)
		}
		for _, det := range details {
			if det.Year < c.CurrentYear {
				continue
			}
			shares, err := q.ListTeamShares(ctx, det.ID)
			if err != nil {
				return fmt.Errorf("list shares for detail %d: %w", det.ID, err)
			}
			for i := range shares {
				sh := shares[i]
				if sh.OrgID != orgID || !sh.IsHolder {
					continue
				}
				sh.IsHolder = false
				if err := q.UpdateTeamShare(ctx, &sh); err != nil {
					return fmt.Errorf("release share %d: %w", sh.ID, err)
				}
				d.Shares = append(d.Shares, ShareRef{ShareID: sh.ID, DetailID: det.ID})
			}
		}

		t = &model.TransactionLog{
			Type:         model.TxRelease,
			LeagueYear:   meta.LeagueYear,
			PrimaryOrgID: orgID,
			ContractID:   model.Int64(c.ID),
			PlayerID:     model.Int64(c.PlayerID),
			Note:         meta.Note,
			ExecutedBy:   meta.ExecutedBy,
		}
		return record(ctx, q, t, d)
	})
	if err != nil {
		return nil, err
	}

	e.committed(t)
	return newResult(t, d), nil
}

// Buyout finishes a contract and books a lump-sum payment. The payment is
// tracked by a new one-year, zero-salary buyout contract whose share does
// not hold the player.
func (e *Engine) Buyout(ctx context.Context, contractID, orgID int64, amount decimal.Decimal, meta Meta) (*Result, error) {
	if !amount.IsPositive() {
		return nil, model.Invalidf("buyout amount must be positive, got %s", amount)
	}
	if err := checkPlaces("buyout amount", amount, MoneyPlaces); err != nil {
		return nil, err
	}

	var t *model.TransactionLog
	var d *BuyoutDetails
	err := e.store.InTx(ctx, func(q store.Querier) error {
		if err := checkPeriod(ctx, q, meta.LeagueYear, meta.Week); err != nil {
			return err
		}
		c, err := lockActive(ctx, q, contractID)
		if err != nil {
			return err
		}
		if err := requireHolder(ctx, q, c, orgID); err != nil {
			return err
		}

		c.IsFinished = true
		if err := q.UpdateContract(ctx, c); err != nil {
			return fmt.Errorf("finish contract: %w", err)
		}

		bc := &model.Contract{
			PlayerID:     c.PlayerID,
			OrgID:        orgID,
			Years:        1,
			CurrentYear:  1,
			IsBuyout:     true,
			SigningYear:  meta.LeagueYear,
			Bonus:        amount,
			CurrentLevel: c.CurrentLevel,
		}
		if err := q.InsertContract(ctx, bc); err != nil {
			return fmt.Errorf("insert buyout contract: %w", err)
		}
		det := &model.ContractDetail{ContractID: bc.ID, Year: 1, Salary: decimal.Zero}
		if err := q.InsertContractDetail(ctx, det); err != nil {
			return fmt.Errorf("insert buyout detail: %w", err)
		}
		if err := q.InsertTeamShare(ctx, &model.TeamShare{
			DetailID:    det.ID,
			OrgID:       orgID,
			IsHolder:    false,
			SalaryShare: decimal.NewFromInt(1),
		}); err != nil {
			return fmt.Errorf("insert buyout share: %w", err)
		}

		entry := &model.LedgerEntry{
			OrgID:      orgID,
			LeagueYear: meta.LeagueYear,
			GameWeek:   model.Week(meta.Week),
			EntryType:  model.EntryBuyout,
			Amount:     amount.Neg(),
			ContractID: model.Int64(bc.ID),
			PlayerID:   model.Int64(c.PlayerID),
			Note:       fmt.Sprintf("buyout of contract %d", c.ID),
		}
		if err := q.InsertLedgerEntry(ctx, entry); err != nil {
			return fmt.Errorf("insert buyout entry: %w", err)
		}

		d = &BuyoutDetails{
			OriginalContractID: c.ID,
			BuyoutContractID:   bc.ID,
			LedgerEntryID:      entry.ID,
			Amount:             amount,
		}
		t = &model.TransactionLog{
			Type:         model.TxBuyout,
			LeagueYear:   meta.LeagueYear,
			PrimaryOrgID: orgID,
			ContractID:   model.Int64(c.ID),
			PlayerID:     model.Int64(c.PlayerID),
			Note:         meta.Note,
			ExecutedBy:   meta.ExecutedBy,
		}
		return record(ctx, q, t, d)
	})
	if err != nil {
		return nil, err
	}

	e.committed(t)
	return newResult(t, d), nil
}
