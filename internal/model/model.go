// Package model defines the core domain types shared across the league
// finance and contract engines.
// Money is shopspring/decimal throughout; float64 never holds an amount.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Competitive levels. LevelMLB is the top level; everything below it is a
// minor-league tier.
const (
	LevelMin = 1
	LevelMLB = 9
)

// ValidLevel reports whether level is a known competitive level.
func ValidLevel(level int) bool {
	return level >= LevelMin && level <= LevelMLB
}

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryMedia           EntryType = "media"
	EntryBonus           EntryType = "bonus"
	EntryBuyout          EntryType = "buyout"
	EntrySalary          EntryType = "salary"
	EntryPerformance     EntryType = "performance"
	EntryInterestIncome  EntryType = "interest_income"
	EntryInterestExpense EntryType = "interest_expense"
	EntryTradeCash       EntryType = "trade_cash"
)

// TransactionType tags a transaction log row and selects its rollback.
type TransactionType string

const (
	TxPromote    TransactionType = "promote"
	TxDemote     TransactionType = "demote"
	TxPlaceIR    TransactionType = "place_on_ir"
	TxActivateIR TransactionType = "activate_from_ir"
	TxRelease    TransactionType = "release"
	TxBuyout     TransactionType = "buyout"
	TxSigning    TransactionType = "signing"
	TxExtension  TransactionType = "extension"
	TxTrade      TransactionType = "trade"
	TxRenewal    TransactionType = "renewal"
)

// ProposalStatus is the state of a trade proposal.
type ProposalStatus string

const (
	ProposalProposed             ProposalStatus = "proposed"
	ProposalCounterpartyAccepted ProposalStatus = "counterparty_accepted"
	ProposalCounterpartyRejected ProposalStatus = "counterparty_rejected"
	ProposalCancelled            ProposalStatus = "cancelled"
	ProposalAdminRejected        ProposalStatus = "admin_rejected"
	ProposalExecuted             ProposalStatus = "executed"
)

// LeagueYear is calendar reference data for one season.
type LeagueYear struct {
	LeagueYear        int             `json:"league_year" db:"league_year"`
	WeeksInSeason     int             `json:"weeks_in_season" db:"weeks_in_season"`
	MediaTotal        decimal.Decimal `json:"media_total" db:"media_total"`
	PerformanceBudget decimal.Decimal `json:"performance_budget" db:"performance_budget"`
}

// Organization is a franchise. SeedCash is the base of its balance.
type Organization struct {
	ID       int64           `json:"id" db:"id"`
	Abbrev   string          `json:"abbrev" db:"abbrev"`
	Name     string          `json:"name" db:"name"`
	SeedCash decimal.Decimal `json:"seed_cash" db:"seed_cash"`
}

// MediaShare is an organization's fraction of a year's media pool.
type MediaShare struct {
	OrgID      int64           `json:"org_id" db:"org_id"`
	LeagueYear int             `json:"league_year" db:"league_year"`
	Share      decimal.Decimal `json:"share" db:"share"`
}

// GameResult is one simulated game outcome, the input to performance revenue.
type GameResult struct {
	ID          int64 `json:"id" db:"id"`
	LeagueYear  int   `json:"league_year" db:"league_year"`
	WeekIndex   int   `json:"week_index" db:"week_index"`
	HomeOrgID   int64 `json:"home_org_id" db:"home_org_id"`
	AwayOrgID   int64 `json:"away_org_id" db:"away_org_id"`
	WinnerOrgID int64 `json:"winner_org_id" db:"winner_org_id"`
}

// Contract is a player's agreement with the organization that signed it.
// Per-year salary lives in ContractDetail; who pays it lives in TeamShare.
type Contract struct {
	ID           int64           `json:"id" db:"id"`
	PlayerID     int64           `json:"player_id" db:"player_id"`
	OrgID        int64           `json:"org_id" db:"org_id"` // signing organization
	Years        int             `json:"years" db:"years"`
	CurrentYear  int             `json:"current_year" db:"current_year"` // 1-based
	IsExtension  bool            `json:"is_extension" db:"is_extension"`
	IsBuyout     bool            `json:"is_buyout" db:"is_buyout"`
	IsFinished   bool            `json:"is_finished" db:"is_finished"`
	OnIR         bool            `json:"on_ir" db:"on_ir"`
	SigningYear  int             `json:"signing_year" db:"signing_year"`
	Bonus        decimal.Decimal `json:"bonus" db:"bonus"`
	CurrentLevel int             `json:"current_level" db:"current_level"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// EndYear is the last league year the contract covers.
func (c *Contract) EndYear() int {
	return c.SigningYear + c.Years - 1
}

// AbsoluteYear maps a 1-based contract year to its league year.
func (c *Contract) AbsoluteYear(detailYear int) int {
	return c.SigningYear + detailYear - 1
}

// ContractDetail is one year's salary line within a contract.
type ContractDetail struct {
	ID         int64           `json:"id" db:"id"`
	ContractID int64           `json:"contract_id" db:"contract_id"`
	Year       int             `json:"year" db:"year"`
	Salary     decimal.Decimal `json:"salary" db:"salary"`
}

// TeamShare is one organization's stake in a contract year. Exactly one
// share per detail is the holder; others are retained salary.
type TeamShare struct {
	ID          int64           `json:"id" db:"id"`
	DetailID    int64           `json:"detail_id" db:"detail_id"`
	OrgID       int64           `json:"org_id" db:"org_id"`
	IsHolder    bool            `json:"is_holder" db:"is_holder"`
	SalaryShare decimal.Decimal `json:"salary_share" db:"salary_share"`
}

// SalaryObligation is one payable (detail, share) pair for a league year.
type SalaryObligation struct {
	OrgID       int64
	ContractID  int64
	PlayerID    int64
	DetailID    int64
	Salary      decimal.Decimal
	SalaryShare decimal.Decimal
}

// LedgerEntry is an immutable financial record. A nil GameWeek means the
// entry is year-level (posted outside the weekly cycle).
type LedgerEntry struct {
	ID         int64           `json:"id" db:"id"`
	OrgID      int64           `json:"org_id" db:"org_id"`
	LeagueYear int             `json:"league_year" db:"league_year"`
	GameWeek   *int            `json:"game_week,omitempty" db:"game_week"`
	EntryType  EntryType       `json:"entry_type" db:"entry_type"`
	Amount     decimal.Decimal `json:"amount" db:"amount"` // signed: +in, -out
	ContractID *int64          `json:"contract_id,omitempty" db:"contract_id"`
	PlayerID   *int64          `json:"player_id,omitempty" db:"player_id"`
	Note       string          `json:"note,omitempty" db:"note"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// ServiceTime tracks a player's accrued top-level seasons.
type ServiceTime struct {
	PlayerID        int64 `json:"player_id" db:"player_id"`
	MLBServiceYears int   `json:"mlb_service_years" db:"mlb_service_years"`
	LastAccrualYear int   `json:"last_accrual_year" db:"last_accrual_year"`
}

// TransactionLog is the audit row written by every roster or contract
// mutation. Details holds the encoded reversal data.
type TransactionLog struct {
	ID             int64           `json:"id" db:"id"`
	Type           TransactionType `json:"transaction_type" db:"transaction_type"`
	LeagueYear     int             `json:"league_year" db:"league_year"`
	PrimaryOrgID   int64           `json:"primary_org_id" db:"primary_org_id"`
	SecondaryOrgID *int64          `json:"secondary_org_id,omitempty" db:"secondary_org_id"`
	ContractID     *int64          `json:"contract_id,omitempty" db:"contract_id"`
	PlayerID       *int64          `json:"player_id,omitempty" db:"player_id"`
	Details        json.RawMessage `json:"details" db:"details"`
	RollbackOf     *int64          `json:"rollback_of,omitempty" db:"rollback_of"`
	Note           string          `json:"note,omitempty" db:"note"`
	ExecutedAt     time.Time       `json:"executed_at" db:"executed_at"`
	ExecutedBy     string          `json:"executed_by,omitempty" db:"executed_by"`
}

// TradeTerms is the payload of a trade, direct or proposed.
type TradeTerms struct {
	OrgA            int64                     `json:"org_a"`
	OrgB            int64                     `json:"org_b"`
	PlayersToB      []int64                   `json:"players_to_b"`
	PlayersToA      []int64                   `json:"players_to_a"`
	SalaryRetention map[int64]decimal.Decimal `json:"salary_retention,omitempty"` // player → retained fraction
	CashAToB        decimal.Decimal           `json:"cash_a_to_b"`
	LeagueYear      int                       `json:"league_year"`
	Week            int                       `json:"week"` // 0 = year-level
}

// TradeProposal is a multi-stage offer between two organizations.
type TradeProposal struct {
	ID                  int64          `json:"id" db:"id"`
	ProposingOrgID      int64          `json:"proposing_org_id" db:"proposing_org_id"`
	ReceivingOrgID      int64          `json:"receiving_org_id" db:"receiving_org_id"`
	LeagueYear          int            `json:"league_year" db:"league_year"`
	Status              ProposalStatus `json:"status" db:"status"`
	Proposal            TradeTerms     `json:"proposal" db:"proposal"`
	ProposalNote        string         `json:"proposal_note,omitempty" db:"proposal_note"`
	CounterpartyNote    string         `json:"counterparty_note,omitempty" db:"counterparty_note"`
	AdminNote           string         `json:"admin_note,omitempty" db:"admin_note"`
	ProposedAt          time.Time      `json:"proposed_at" db:"proposed_at"`
	CounterpartyActedAt *time.Time     `json:"counterparty_acted_at,omitempty" db:"counterparty_acted_at"`
	AdminActedAt        *time.Time     `json:"admin_acted_at,omitempty" db:"admin_acted_at"`
	ExecutedAt          *time.Time     `json:"executed_at,omitempty" db:"executed_at"`
	TransactionID       *int64         `json:"transaction_id,omitempty" db:"transaction_id"`
}

// Week converts a 1-based week index to a ledger week pointer; 0 or less
// means year-level.
func Week(index int) *int {
	if index <= 0 {
		return nil
	}
	w := index
	return &w
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
