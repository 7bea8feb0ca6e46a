package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// Transactions are serialized by a single mutex. InTx snapshots the whole
// state first and restores it if fn fails, which gives callers the same
// all-or-nothing behaviour as PostgreSQL.
type MemoryStore struct {
	mu sync.Mutex
	st *memState
}

type memState struct {
	seq map[string]int64

	leagueYears  map[int]model.LeagueYear
	orgs         map[int64]model.Organization
	mediaShares  map[[2]int64]model.MediaShare // (org, year)
	gameResults  map[int64]model.GameResult
	ledger       map[int64]model.LedgerEntry
	contracts    map[int64]model.Contract
	details      map[int64]model.ContractDetail
	shares       map[int64]model.TeamShare
	serviceTime  map[int64]model.ServiceTime
	seasonRuns   map[int]string // league year -> run id
	transactions map[int64]model.TransactionLog
	proposals    map[int64]model.TradeProposal
}

var _ Querier = (*memState)(nil)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newMemState()}
}

func newMemState() *memState {
	return &memState{
		seq:          make(map[string]int64),
		leagueYears:  make(map[int]model.LeagueYear),
		orgs:         make(map[int64]model.Organization),
		mediaShares:  make(map[[2]int64]model.MediaShare),
		gameResults:  make(map[int64]model.GameResult),
		ledger:       make(map[int64]model.LedgerEntry),
		contracts:    make(map[int64]model.Contract),
		details:      make(map[int64]model.ContractDetail),
		shares:       make(map[int64]model.TeamShare),
		serviceTime:  make(map[int64]model.ServiceTime),
		seasonRuns:   make(map[int]string),
		transactions: make(map[int64]model.TransactionLog),
		proposals:    make(map[int64]model.TradeProposal),
	}
}

// clone copies every table. Rows are values so a shallow map copy is enough;
// nested slices and pointers inside rows are never mutated in place.
func (m *memState) clone() *memState {
	return &memState{
		seq:          cloneMap(m.seq),
		leagueYears:  cloneMap(m.leagueYears),
		orgs:         cloneMap(m.orgs),
		mediaShares:  cloneMap(m.mediaShares),
		gameResults:  cloneMap(m.gameResults),
		ledger:       cloneMap(m.ledger),
		contracts:    cloneMap(m.contracts),
		details:      cloneMap(m.details),
		shares:       cloneMap(m.shares),
		serviceTime:  cloneMap(m.serviceTime),
		seasonRuns:   cloneMap(m.seasonRuns),
		transactions: cloneMap(m.transactions),
		proposals:    cloneMap(m.proposals),
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *memState) next(table string) int64 {
	m.seq[table]++
	return m.seq[table]
}

func (s *MemoryStore) InTx(_ context.Context, fn func(q Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.st); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) View(_ context.Context, fn func(q Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Hand out a copy so a misbehaving reader cannot write.
	return fn(s.st.clone())
}

// sortedValues returns map values ordered by key.
func sortedValues[V any](src map[int64]V) []V {
	keys := make([]int64, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, src[k])
	}
	return out
}

// --- Reference data ---

func (m *memState) GetLeagueYear(_ context.Context, year int) (*model.LeagueYear, error) {
	ly, ok := m.leagueYears[year]
	if !ok {
		return nil, model.NotFoundf("league year %d", year)
	}
	return &ly, nil
}

func (m *memState) UpsertLeagueYear(_ context.Context, ly *model.LeagueYear) error {
	m.leagueYears[ly.LeagueYear] = *ly
	return nil
}

func (m *memState) GetOrganization(_ context.Context, id int64) (*model.Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, model.NotFoundf("organization %d", id)
	}
	return &org, nil
}

func (m *memState) ListOrganizations(_ context.Context) ([]model.Organization, error) {
	return sortedValues(m.orgs), nil
}

func (m *memState) InsertOrganization(_ context.Context, org *model.Organization) error {
	if org.ID == 0 {
		org.ID = m.next("organizations")
	} else if org.ID > m.seq["organizations"] {
		m.seq["organizations"] = org.ID
	}
	m.orgs[org.ID] = *org
	return nil
}

func (m *memState) ListMediaShares(_ context.Context, year int) ([]model.MediaShare, error) {
	var out []model.MediaShare
	for _, ms := range m.mediaShares {
		if ms.LeagueYear == year {
			out = append(out, ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out, nil
}

func (m *memState) UpsertMediaShare(_ context.Context, ms *model.MediaShare) error {
	m.mediaShares[[2]int64{ms.OrgID, int64(ms.LeagueYear)}] = *ms
	return nil
}

func (m *memState) InsertGameResult(_ context.Context, gr *model.GameResult) error {
	gr.ID = m.next("game_results")
	m.gameResults[gr.ID] = *gr
	return nil
}

func (m *memState) WinTotals(_ context.Context, w WinWindow) (map[int64]int, error) {
	wins := make(map[int64]int)
	for _, gr := range m.gameResults {
		if gr.LeagueYear < w.FromYear || gr.LeagueYear > w.ToYear {
			continue
		}
		if gr.LeagueYear == w.ToYear && gr.WeekIndex > w.ThroughWeek {
			continue
		}
		if gr.WinnerOrgID != 0 {
			wins[gr.WinnerOrgID]++
		}
	}
	return wins, nil
}

// --- Immutable ledger ---

func (m *memState) InsertLedgerEntry(_ context.Context, e *model.LedgerEntry) error {
	e.ID = m.next("ledger_entries")
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.ledger[e.ID] = *e
	return nil
}

func (m *memState) DeleteLedgerEntry(_ context.Context, id int64) error {
	if _, ok := m.ledger[id]; !ok {
		return model.NotFoundf("ledger entry %d", id)
	}
	delete(m.ledger, id)
	return nil
}

func matchLedger(e model.LedgerEntry, f LedgerFilter) bool {
	if f.OrgID != nil && e.OrgID != *f.OrgID {
		return false
	}
	if f.LeagueYear != nil && e.LeagueYear != *f.LeagueYear {
		return false
	}
	if f.YearLevelOnly && e.GameWeek != nil {
		return false
	}
	if f.GameWeek != nil && (e.GameWeek == nil || *e.GameWeek != *f.GameWeek) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, e.EntryType) {
		return false
	}
	if f.ContractID != nil && (e.ContractID == nil || *e.ContractID != *f.ContractID) {
		return false
	}
	return true
}

func (m *memState) LedgerEntryExists(_ context.Context, f LedgerFilter) (bool, error) {
	for _, e := range m.ledger {
		if matchLedger(e, f) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memState) ListLedgerEntries(_ context.Context, f LedgerFilter) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	for _, e := range sortedValues(m.ledger) {
		if matchLedger(e, f) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memState) LedgerBalance(_ context.Context, orgID int64, throughYear int) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range m.ledger {
		if e.OrgID == orgID && e.LeagueYear <= throughYear {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

// --- Contracts, details, shares ---

func (m *memState) InsertContract(_ context.Context, c *model.Contract) error {
	c.ID = m.next("contracts")
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.contracts[c.ID] = *c
	return nil
}

func (m *memState) GetContract(_ context.Context, id int64) (*model.Contract, error) {
	c, ok := m.contracts[id]
	if !ok {
		return nil, model.NotFoundf("contract %d", id)
	}
	return &c, nil
}

// LockContract is GetContract; the store mutex already serializes writers.
func (m *memState) LockContract(ctx context.Context, id int64) (*model.Contract, error) {
	return m.GetContract(ctx, id)
}

func (m *memState) UpdateContract(_ context.Context, c *model.Contract) error {
	if _, ok := m.contracts[c.ID]; !ok {
		return model.NotFoundf("contract %d", c.ID)
	}
	m.contracts[c.ID] = *c
	return nil
}

func (m *memState) ListContracts(_ context.Context, f ContractFilter) ([]model.Contract, error) {
	var out []model.Contract
	for _, c := range sortedValues(m.contracts) {
		if f.PlayerID != nil && c.PlayerID != *f.PlayerID {
			continue
		}
		if f.OrgID != nil && c.OrgID != *f.OrgID {
			continue
		}
		if f.SigningYear != nil && c.SigningYear != *f.SigningYear {
			continue
		}
		if f.ActiveOnly && c.IsFinished {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memState) DeleteContractChain(_ context.Context, id int64) error {
	if _, ok := m.contracts[id]; !ok {
		return model.NotFoundf("contract %d", id)
	}
	for did, d := range m.details {
		if d.ContractID != id {
			continue
		}
		for sid, sh := range m.shares {
			if sh.DetailID == did {
				delete(m.shares, sid)
			}
		}
		delete(m.details, did)
	}
	delete(m.contracts, id)
	return nil
}

func (m *memState) InsertContractDetail(_ context.Context, d *model.ContractDetail) error {
	d.ID = m.next("contract_details")
	m.details[d.ID] = *d
	return nil
}

func (m *memState) ListContractDetails(_ context.Context, contractID int64) ([]model.ContractDetail, error) {
	var out []model.ContractDetail
	for _, d := range m.details {
		if d.ContractID == contractID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func (m *memState) InsertTeamShare(_ context.Context, sh *model.TeamShare) error {
	sh.ID = m.next("contract_team_shares")
	m.shares[sh.ID] = *sh
	return nil
}

func (m *memState) GetTeamShare(_ context.Context, id int64) (*model.TeamShare, error) {
	sh, ok := m.shares[id]
	if !ok {
		return nil, model.NotFoundf("team share %d", id)
	}
	return &sh, nil
}

func (m *memState) UpdateTeamShare(_ context.Context, sh *model.TeamShare) error {
	if _, ok := m.shares[sh.ID]; !ok {
		return model.NotFoundf("team share %d", sh.ID)
	}
	m.shares[sh.ID] = *sh
	return nil
}

func (m *memState) DeleteTeamShare(_ context.Context, id int64) error {
	if _, ok := m.shares[id]; !ok {
		return model.NotFoundf("team share %d", id)
	}
	delete(m.shares, id)
	return nil
}

func (m *memState) ListTeamShares(_ context.Context, detailID int64) ([]model.TeamShare, error) {
	var out []model.TeamShare
	for _, sh := range sortedValues(m.shares) {
		if sh.DetailID == detailID {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (m *memState) SalaryObligations(_ context.Context, year int) ([]model.SalaryObligation, error) {
	var out []model.SalaryObligation
	for _, sh := range sortedValues(m.shares) {
		if !sh.SalaryShare.IsPositive() {
			continue
		}
		d, ok := m.details[sh.DetailID]
		if !ok {
			continue
		}
		c, ok := m.contracts[d.ContractID]
		if !ok || c.IsFinished || c.AbsoluteYear(d.Year) != year {
			continue
		}
		out = append(out, model.SalaryObligation{
			OrgID:       sh.OrgID,
			ContractID:  c.ID,
			PlayerID:    c.PlayerID,
			DetailID:    d.ID,
			Salary:      d.Salary,
			SalaryShare: sh.SalaryShare,
		})
	}
	return out, nil
}

// currentHolder returns the org holding a contract's current year, if any.
func (m *memState) currentHolder(c model.Contract) (int64, bool) {
	for _, d := range m.details {
		if d.ContractID != c.ID || d.Year != c.CurrentYear {
			continue
		}
		for _, sh := range m.shares {
			if sh.DetailID == d.ID && sh.IsHolder {
				return sh.OrgID, true
			}
		}
	}
	return 0, false
}

func (m *memState) HeldPlayersAtLevel(_ context.Context, level, year int) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, c := range sortedValues(m.contracts) {
		if c.IsFinished || c.CurrentLevel != level || c.SigningYear > year || seen[c.PlayerID] {
			continue
		}
		if _, ok := m.currentHolder(c); ok {
			seen[c.PlayerID] = true
			out = append(out, c.PlayerID)
		}
	}
	return out, nil
}

func (m *memState) CountHeldAtLevel(_ context.Context, orgID int64, level int) (int, error) {
	players := make(map[int64]bool)
	for _, c := range m.contracts {
		if c.IsFinished || c.OnIR || c.CurrentLevel != level {
			continue
		}
		if holder, ok := m.currentHolder(c); ok && holder == orgID {
			players[c.PlayerID] = true
		}
	}
	return len(players), nil
}

func (m *memState) AdvanceContracts(_ context.Context, year int) (int, error) {
	n := 0
	for id, c := range m.contracts {
		if c.IsFinished || c.SigningYear > year || c.CurrentYear >= c.Years {
			continue
		}
		c.CurrentYear++
		m.contracts[id] = c
		n++
	}
	return n, nil
}

// --- Service time ---

func (m *memState) CreditServiceTime(_ context.Context, playerID int64, year int) (bool, error) {
	st, ok := m.serviceTime[playerID]
	if ok && st.LastAccrualYear >= year {
		return false, nil
	}
	st.PlayerID = playerID
	st.MLBServiceYears++
	st.LastAccrualYear = year
	m.serviceTime[playerID] = st
	return true, nil
}

func (m *memState) GetServiceTime(_ context.Context, playerID int64) (*model.ServiceTime, error) {
	st, ok := m.serviceTime[playerID]
	if !ok {
		return &model.ServiceTime{PlayerID: playerID}, nil
	}
	return &st, nil
}

func (m *memState) MarkSeasonProcessed(_ context.Context, year int, runID string) (bool, error) {
	if _, ok := m.seasonRuns[year]; ok {
		return false, nil
	}
	m.seasonRuns[year] = runID
	return true, nil
}

// --- Transaction log ---

func (m *memState) InsertTransaction(_ context.Context, t *model.TransactionLog) error {
	t.ID = m.next("transaction_log")
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}
	m.transactions[t.ID] = *t
	return nil
}

func (m *memState) GetTransaction(_ context.Context, id int64) (*model.TransactionLog, error) {
	t, ok := m.transactions[id]
	if !ok {
		return nil, model.NotFoundf("transaction %d", id)
	}
	return &t, nil
}

func (m *memState) ListTransactions(_ context.Context, f TransactionFilter) ([]model.TransactionLog, error) {
	all := sortedValues(m.transactions)
	slices.Reverse(all) // newest first
	var out []model.TransactionLog
	for _, t := range all {
		if f.OrgID != nil && t.PrimaryOrgID != *f.OrgID && (t.SecondaryOrgID == nil || *t.SecondaryOrgID != *f.OrgID) {
			continue
		}
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.LeagueYear != nil && t.LeagueYear != *f.LeagueYear {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memState) HasRollback(_ context.Context, id int64) (bool, error) {
	for _, t := range m.transactions {
		if t.RollbackOf != nil && *t.RollbackOf == id {
			return true, nil
		}
	}
	return false, nil
}

// --- Trade proposals ---

func (m *memState) InsertTradeProposal(_ context.Context, p *model.TradeProposal) error {
	p.ID = m.next("trade_proposals")
	m.proposals[p.ID] = *p
	return nil
}

func (m *memState) GetTradeProposal(_ context.Context, id int64) (*model.TradeProposal, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, model.NotFoundf("trade proposal %d", id)
	}
	return &p, nil
}

func (m *memState) LockTradeProposal(ctx context.Context, id int64) (*model.TradeProposal, error) {
	return m.GetTradeProposal(ctx, id)
}

func (m *memState) UpdateTradeProposal(_ context.Context, p *model.TradeProposal) error {
	if _, ok := m.proposals[p.ID]; !ok {
		return model.NotFoundf("trade proposal %d", p.ID)
	}
	m.proposals[p.ID] = *p
	return nil
}

func (m *memState) ListTradeProposals(_ context.Context, f ProposalFilter) ([]model.TradeProposal, error) {
	var out []model.TradeProposal
	for _, p := range sortedValues(m.proposals) {
		if f.OrgID != nil && p.ProposingOrgID != *f.OrgID && p.ReceivingOrgID != *f.OrgID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
