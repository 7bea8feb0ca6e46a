package transactions

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// SigningRequest signs a free agent.
type SigningRequest struct {
	PlayerID int64             `json:"player_id"`
	OrgID    int64             `json:"org_id"`
	Years    int               `json:"years"`
	Salaries []decimal.Decimal `json:"salaries"`
	Bonus    decimal.Decimal   `json:"bonus"`
	Level    int               `json:"level"`
	Meta
}

// ExtensionRequest adds a contract that starts the year after an existing
// one ends.
type ExtensionRequest struct {
	OrgID    int64             `json:"org_id"`
	Years    int               `json:"years"`
	Salaries []decimal.Decimal `json:"salaries"`
	Bonus    decimal.Decimal   `json:"bonus"`
	Meta
}

func validateTerms(years int, salaries []decimal.Decimal, bonus decimal.Decimal) error {
	if years < 1 || years > MaxContractYears {
		return model.Invalidf("years must be between 1 and %d, got %d", MaxContractYears, years)
	}
	if len(salaries) != years {
		return model.Invalidf("expected %d salaries, got %d", years, len(salaries))
	}
	for i, s := range salaries {
		if s.IsNegative() {
			return model.Invalidf("salary for year %d is negative", i+1)
		}
		if err := checkPlaces(fmt.Sprintf("salary for year %d", i+1), s, MoneyPlaces); err != nil {
			return err
		}
	}
	if bonus.IsNegative() {
		return model.Invalidf("bonus is negative")
	}
	if err := checkPlaces("bonus", bonus, MoneyPlaces); err != nil {
		return err
	}
	return nil
}

// SigningBudget is seed cash plus the ledger balance through year, less
// bonuses the org has committed to but not yet posted.
func SigningBudget(ctx context.Context, q store.Querier, orgID int64, year int) (decimal.Decimal, error) {
	org, err := q.GetOrganization(ctx, orgID)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := q.LedgerBalance(ctx, orgID, year)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger balance: %w", err)
	}

	contracts, err := q.ListContracts(ctx, store.ContractFilter{OrgID: &orgID, ActiveOnly: true})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list contracts: %w", err)
	}
	committed := decimal.Zero
	for _, c := range contracts {
		if !c.Bonus.IsPositive() {
			continue
		}
		posted, err := q.LedgerEntryExists(ctx, store.LedgerFilter{
			ContractID: &c.ID,
			Types:      []model.EntryType{model.EntryBonus, model.EntryBuyout},
		})
		if err != nil {
			return decimal.Zero, fmt.Errorf("check bonus entry: %w", err)
		}
		if !posted {
			committed = committed.Add(c.Bonus)
		}
	}
	return org.SeedCash.Add(balance).Sub(committed), nil
}

func checkBudget(ctx context.Context, q store.Querier, orgID int64, year int, bonus decimal.Decimal) error {
	if !bonus.IsPositive() {
		return nil
	}
	budget, err := SigningBudget(ctx, q, orgID, year)
	if err != nil {
		return err
	}
	if bonus.GreaterThan(budget) {
		return model.Invalidf("bonus %s exceeds signing budget %s for org %d", bonus, budget, orgID)
	}
	return nil
}

// createContract inserts c with one detail and one full holder share per
// year, plus the bonus entry when the bonus is positive.
func createContract(ctx context.Context, q store.Querier, c *model.Contract, salaries []decimal.Decimal, meta Meta) (*int64, error) {
	if err := q.InsertContract(ctx, c); err != nil {
		return nil, fmt.Errorf("insert contract: %w", err)
	}
	for i, salary := range salaries {
		det := &model.ContractDetail{ContractID: c.ID, Year: i + 1, Salary: salary}
		if err := q.InsertContractDetail(ctx, det); err != nil {
			return nil, fmt.Errorf("insert contract detail: %w", err)
		}
		if err := q.InsertTeamShare(ctx, &model.TeamShare{
			DetailID:    det.ID,
			OrgID:       c.OrgID,
			IsHolder:    true,
			SalaryShare: decimal.NewFromInt(1),
		}); err != nil {
			return nil, fmt.Errorf("insert team share: %w", err)
		}
	}

	if !c.Bonus.IsPositive() {
		return nil, nil
	}
	entry := &model.LedgerEntry{
		OrgID:      c.OrgID,
		LeagueYear: meta.LeagueYear,
		GameWeek:   model.Week(meta.Week),
		EntryType:  model.EntryBonus,
		Amount:     c.Bonus.Neg(),
		ContractID: model.Int64(c.ID),
		PlayerID:   model.Int64(c.PlayerID),
		Note:       fmt.Sprintf("signing bonus for contract %d", c.ID),
	}
	if err := q.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert bonus entry: %w", err)
	}
	return model.Int64(entry.ID), nil
}

// SignFreeAgent signs a player who has no held active contract.
func (e *Engine) SignFreeAgent(ctx context.Context, req SigningRequest) (*Result, error) {
	if err := validateTerms(req.Years, req.Salaries, req.Bonus); err != nil {
		return nil, err
	}
	if !model.ValidLevel(req.Level) {
		return nil, model.Invalidf("level %d is outside %d..%d", req.Level, model.LevelMin, model.LevelMLB)
	}

	var t *model.TransactionLog
	var d *SigningDetails
	err := e.store.InTx(ctx, func(q store.Querier) error {
		if err := checkPeriod(ctx, q, req.LeagueYear, req.Week); err != nil {
			return err
		}
		existing, err := q.ListContracts(ctx, store.ContractFilter{PlayerID: &req.PlayerID, ActiveOnly: true})
		if err != nil {
			return fmt.Errorf("list player contracts: %w", err)
		}
		for i := range existing {
			c, err := q.LockContract(ctx, existing[i].ID)
			if err != nil {
				return err
			}
			if holder, held, err := holderOf(ctx, q, c); err != nil {
				return err
			} else if held {
				return model.Invalidf("player %d is under contract %d with org %d", req.PlayerID, c.ID, holder)
			}
		}

		if err := checkBudget(ctx, q, req.OrgID, req.LeagueYear, req.Bonus); err != nil {
			return err
		}
		if err := e.checkRoster(ctx, q, req.OrgID, req.Level); err != nil {
			return err
		}

		c := &model.Contract{
			PlayerID:     req.PlayerID,
			OrgID:        req.OrgID,
			Years:        req.Years,
			CurrentYear:  1,
			SigningYear:  req.LeagueYear,
			Bonus:        req.Bonus,
			CurrentLevel: req.Level,
		}
		entryID, err := createContract(ctx, q, c, req.Salaries, req.Meta)
		if err != nil {
			return err
		}

		d = &SigningDetails{ContractID: c.ID, OrgID: req.OrgID, LedgerEntryID: entryID}
		t = &model.TransactionLog{
			Type:         model.TxSigning,
			LeagueYear:   req.LeagueYear,
			PrimaryOrgID: req.OrgID,
			ContractID:   model.Int64(c.ID),
			PlayerID:     model.Int64(c.PlayerID),
			Note:         req.Note,
			ExecutedBy:   req.ExecutedBy,
		}
		return record(ctx, q, t, d)
	})
	if err != nil {
		return nil, err
	}

	e.committed(t)
	return newResult(t, d), nil
}

// ExtendContract signs an extension for the holder of an active contract.
// The extension starts the league year after the original ends.
func (e *Engine) ExtendContract(ctx context.Context, contractID int64, req ExtensionRequest) (*Result, error) {
	if err := validateTerms(req.Years, req.Salaries, req.Bonus); err != nil {
		return nil, err
	}

	var t *model.TransactionLog
	var d *SigningDetails
	err := e.store.InTx(ctx, func(q store.Querier) error {
		if err := checkPeriod(ctx, q, req.LeagueYear, req.Week); err != nil {
			return err
		}
		orig, err := lockActive(ctx, q, contractID)
		if err != nil {
			return err
		}
		if orig.IsBuyout {
			return model.Invalidf("contract %d is a buyout", orig.ID)
		}
		if err := requireHolder(ctx, q, orig, req.OrgID); err != nil {
			return err
		}

		start := orig.SigningYear + orig.Years
		others, err := q.ListContracts(ctx, store.ContractFilter{PlayerID: &orig.PlayerID, ActiveOnly: true})
		if err != nil {
			return fmt.Errorf("list player contracts: %w", err)
		}
		for _, o := range others {
			if o.IsExtension && o.SigningYear == start {
				return model.Invalidf("contract %d already has extension %d", orig.ID, o.ID)
			}
		}

		if err := checkBudget(ctx, q, req.OrgID, req.LeagueYear, req.Bonus); err != nil {
			return err
		}

		c := &model.Contract{
			PlayerID:     orig.PlayerID,
			OrgID:        req.OrgID,
			Years:        req.Years,
			CurrentYear:  1,
			IsExtension:  true,
			SigningYear:  start,
			Bonus:        req.Bonus,
			CurrentLevel: orig.CurrentLevel,
		}
		entryID, err := createContract(ctx, q, c, req.Salaries, req.Meta)
		if err != nil {
			return err
		}

		d = &SigningDetails{
			ContractID:         c.ID,
			OrgID:              req.OrgID,
			LedgerEntryID:      entryID,
			Extension:          true,
			OriginalContractID: model.Int64(orig.ID),
		}
		t = &model.TransactionLog{
			Type:         model.TxExtension,
			LeagueYear:   req.LeagueYear,
			PrimaryOrgID: req.OrgID,
			ContractID:   model.Int64(c.ID),
			PlayerID:     model.Int64(c.PlayerID),
			Note:         req.Note,
			ExecutedBy:   req.ExecutedBy,
		}
		return record(ctx, q, t, d)
	})
	if err != nil {
		return nil, err
	}

	e.committed(t)
	return newResult(t, d), nil
}
