// Package store defines the persistence interface for the league engines.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// summary cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
)

// Store hands out transaction-scoped Queriers. Every engine call runs inside
// exactly one InTx (writes) or View (reads); an error returned from fn rolls
// back everything fn did.
type Store interface {
	// InTx runs fn in a read-write transaction and commits if fn returns nil.
	InTx(ctx context.Context, fn func(q Querier) error) error

	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(q Querier) error) error
}

// LedgerFilter narrows ledger queries. Nil fields are unconstrained.
type LedgerFilter struct {
	OrgID         *int64
	LeagueYear    *int
	GameWeek      *int
	YearLevelOnly bool // only entries with no game week
	Types         []model.EntryType
	ContractID    *int64
}

// ContractFilter narrows contract queries.
type ContractFilter struct {
	PlayerID    *int64
	OrgID       *int64
	SigningYear *int
	ActiveOnly  bool
}

// TransactionFilter narrows transaction log queries.
type TransactionFilter struct {
	OrgID      *int64
	Type       *model.TransactionType
	LeagueYear *int
	Limit      int
}

// ProposalFilter narrows trade proposal queries.
type ProposalFilter struct {
	OrgID  *int64 // proposing or receiving
	Status *model.ProposalStatus
}

// WinWindow selects game results for a rolling win total: every week of
// league years FromYear..ToYear-1 plus weeks 1..ThroughWeek of ToYear.
type WinWindow struct {
	FromYear    int
	ToYear      int
	ThroughWeek int
}

// Querier is the full set of typed reads and writes available inside a
// transaction.
type Querier interface {
	// --- Reference data ---

	GetLeagueYear(ctx context.Context, year int) (*model.LeagueYear, error)
	UpsertLeagueYear(ctx context.Context, ly *model.LeagueYear) error
	GetOrganization(ctx context.Context, id int64) (*model.Organization, error)
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	InsertOrganization(ctx context.Context, org *model.Organization) error
	ListMediaShares(ctx context.Context, year int) ([]model.MediaShare, error)
	UpsertMediaShare(ctx context.Context, ms *model.MediaShare) error
	InsertGameResult(ctx context.Context, gr *model.GameResult) error

	// WinTotals returns wins per organization inside the window. Orgs
	// without a win are absent.
	WinTotals(ctx context.Context, w WinWindow) (map[int64]int, error)

	// --- Immutable ledger ---

	// InsertLedgerEntry appends an entry and assigns its ID.
	InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error

	// DeleteLedgerEntry removes an entry. Only rollback calls this.
	DeleteLedgerEntry(ctx context.Context, id int64) error

	LedgerEntryExists(ctx context.Context, f LedgerFilter) (bool, error)
	ListLedgerEntries(ctx context.Context, f LedgerFilter) ([]model.LedgerEntry, error)

	// LedgerBalance is the signed sum of an org's entries with
	// league_year <= throughYear.
	LedgerBalance(ctx context.Context, orgID int64, throughYear int) (decimal.Decimal, error)

	// --- Contracts, details, shares ---

	InsertContract(ctx context.Context, c *model.Contract) error
	GetContract(ctx context.Context, id int64) (*model.Contract, error)

	// LockContract reads a contract and holds a row lock until commit.
	LockContract(ctx context.Context, id int64) (*model.Contract, error)

	UpdateContract(ctx context.Context, c *model.Contract) error
	ListContracts(ctx context.Context, f ContractFilter) ([]model.Contract, error)

	// DeleteContractChain removes a contract with its details and shares.
	DeleteContractChain(ctx context.Context, id int64) error

	InsertContractDetail(ctx context.Context, d *model.ContractDetail) error
	ListContractDetails(ctx context.Context, contractID int64) ([]model.ContractDetail, error)

	InsertTeamShare(ctx context.Context, s *model.TeamShare) error
	GetTeamShare(ctx context.Context, id int64) (*model.TeamShare, error)
	UpdateTeamShare(ctx context.Context, s *model.TeamShare) error
	DeleteTeamShare(ctx context.Context, id int64) error
	ListTeamShares(ctx context.Context, detailID int64) ([]model.TeamShare, error)

	// SalaryObligations returns every positive share of a non-finished
	// contract's detail whose absolute league year equals year.
	SalaryObligations(ctx context.Context, year int) ([]model.SalaryObligation, error)

	// HeldPlayersAtLevel returns distinct players on active contracts at
	// level, started by year, whose current year has a holder share.
	HeldPlayersAtLevel(ctx context.Context, level, year int) ([]int64, error)

	// CountHeldAtLevel counts an org's active, held, non-IR contracts at level.
	CountHeldAtLevel(ctx context.Context, orgID int64, level int) (int, error)

	// AdvanceContracts bumps current_year on every active contract that has
	// started by year and has years remaining.
	AdvanceContracts(ctx context.Context, year int) (int, error)

	// --- Service time ---

	// CreditServiceTime adds one top-level season unless the player was
	// already credited for year. Reports whether a credit happened.
	CreditServiceTime(ctx context.Context, playerID int64, year int) (bool, error)
	GetServiceTime(ctx context.Context, playerID int64) (*model.ServiceTime, error)

	// MarkSeasonProcessed records the end-of-season run for year. It reports
	// false when the year was already processed.
	MarkSeasonProcessed(ctx context.Context, year int, runID string) (bool, error)

	// --- Transaction log ---

	InsertTransaction(ctx context.Context, t *model.TransactionLog) error
	GetTransaction(ctx context.Context, id int64) (*model.TransactionLog, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]model.TransactionLog, error)

	// HasRollback reports whether a rollback row references id.
	HasRollback(ctx context.Context, id int64) (bool, error)

	// --- Trade proposals ---

	InsertTradeProposal(ctx context.Context, p *model.TradeProposal) error
	LockTradeProposal(ctx context.Context, id int64) (*model.TradeProposal, error)
	GetTradeProposal(ctx context.Context, id int64) (*model.TradeProposal, error)
	UpdateTradeProposal(ctx context.Context, p *model.TradeProposal) error
	ListTradeProposals(ctx context.Context, f ProposalFilter) ([]model.TradeProposal, error)
}
