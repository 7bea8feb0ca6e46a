package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgQuerier{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) View(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback(ctx)

	return fn(&pgQuerier{db: tx})
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgQuerier runs every Querier method on one pgx transaction.
type pgQuerier struct {
	db dbtx
}

var _ Querier = (*pgQuerier)(nil)

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NotFoundf(format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// --- Reference data ---

func (q *pgQuerier) GetLeagueYear(ctx context.Context, year int) (*model.LeagueYear, error) {
	var ly model.LeagueYear
	var media, perf string
	err := q.db.QueryRow(ctx,
		`SELECT league_year, weeks_in_season, media_total::TEXT, performance_budget::TEXT
		 FROM league_years WHERE league_year = $1`, year).
		Scan(&ly.LeagueYear, &ly.WeeksInSeason, &media, &perf)
	if err != nil {
		return nil, notFound(err, "league year %d", year)
	}
	ly.MediaTotal = dec(media)
	ly.PerformanceBudget = dec(perf)
	return &ly, nil
}

func (q *pgQuerier) UpsertLeagueYear(ctx context.Context, ly *model.LeagueYear) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO league_years (league_year, weeks_in_season, media_total, performance_budget)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC)
		 ON CONFLICT (league_year) DO UPDATE
		 SET weeks_in_season = EXCLUDED.weeks_in_season,
		     media_total = EXCLUDED.media_total,
		     performance_budget = EXCLUDED.performance_budget`,
		ly.LeagueYear, ly.WeeksInSeason, ly.MediaTotal.String(), ly.PerformanceBudget.String())
	return err
}

func (q *pgQuerier) GetOrganization(ctx context.Context, id int64) (*model.Organization, error) {
	var o model.Organization
	var seed string
	err := q.db.QueryRow(ctx,
		`SELECT id, abbrev, name, seed_cash::TEXT FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Abbrev, &o.Name, &seed)
	if err != nil {
		return nil, notFound(err, "organization %d", id)
	}
	o.SeedCash = dec(seed)
	return &o, nil
}

func (q *pgQuerier) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, abbrev, name, seed_cash::TEXT FROM organizations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		var seed string
		if err := rows.Scan(&o.ID, &o.Abbrev, &o.Name, &seed); err != nil {
			return nil, err
		}
		o.SeedCash = dec(seed)
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (q *pgQuerier) InsertOrganization(ctx context.Context, o *model.Organization) error {
	if o.ID != 0 {
		_, err := q.db.Exec(ctx,
			`INSERT INTO organizations (id, abbrev, name, seed_cash) VALUES ($1, $2, $3, $4::NUMERIC)`,
			o.ID, o.Abbrev, o.Name, o.SeedCash.String())
		return err
	}
	return q.db.QueryRow(ctx,
		`INSERT INTO organizations (abbrev, name, seed_cash) VALUES ($1, $2, $3::NUMERIC) RETURNING id`,
		o.Abbrev, o.Name, o.SeedCash.String()).Scan(&o.ID)
}

func (q *pgQuerier) ListMediaShares(ctx context.Context, year int) ([]model.MediaShare, error) {
	rows, err := q.db.Query(ctx,
		`SELECT org_id, league_year, share::TEXT FROM media_shares
		 WHERE league_year = $1 ORDER BY org_id`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MediaShare
	for rows.Next() {
		var ms model.MediaShare
		var share string
		if err := rows.Scan(&ms.OrgID, &ms.LeagueYear, &share); err != nil {
			return nil, err
		}
		ms.Share = dec(share)
		out = append(out, ms)
	}
	return out, rows.Err()
}

func (q *pgQuerier) UpsertMediaShare(ctx context.Context, ms *model.MediaShare) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO media_shares (org_id, league_year, share) VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (org_id, league_year) DO UPDATE SET share = EXCLUDED.share`,
		ms.OrgID, ms.LeagueYear, ms.Share.String())
	return err
}

func (q *pgQuerier) InsertGameResult(ctx context.Context, gr *model.GameResult) error {
	var winner *int64
	if gr.WinnerOrgID != 0 {
		winner = &gr.WinnerOrgID
	}
	return q.db.QueryRow(ctx,
		`INSERT INTO game_results (league_year, week_index, home_org_id, away_org_id, winner_org_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		gr.LeagueYear, gr.WeekIndex, gr.HomeOrgID, gr.AwayOrgID, winner).Scan(&gr.ID)
}

func (q *pgQuerier) WinTotals(ctx context.Context, w WinWindow) (map[int64]int, error) {
	rows, err := q.db.Query(ctx,
		`SELECT winner_org_id, COUNT(*)
		 FROM game_results
		 WHERE winner_org_id IS NOT NULL
		   AND league_year BETWEEN $1 AND $2
		   AND (league_year < $2 OR week_index <= $3)
		 GROUP BY winner_org_id`, w.FromYear, w.ToYear, w.ThroughWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wins := make(map[int64]int)
	for rows.Next() {
		var org int64
		var n int
		if err := rows.Scan(&org, &n); err != nil {
			return nil, err
		}
		wins[org] = n
	}
	return wins, rows.Err()
}

// --- Immutable ledger ---

const ledgerColumns = `id, org_id, league_year, game_week, entry_type, amount::TEXT,
	contract_id, player_id, note, created_at`

func (q *pgQuerier) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	return q.db.QueryRow(ctx,
		`INSERT INTO ledger_entries (org_id, league_year, game_week, entry_type, amount, contract_id, player_id, note)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8)
		 RETURNING id, created_at`,
		e.OrgID, e.LeagueYear, e.GameWeek, string(e.EntryType), e.Amount.String(),
		e.ContractID, e.PlayerID, e.Note,
	).Scan(&e.ID, &e.CreatedAt)
}

func (q *pgQuerier) DeleteLedgerEntry(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("ledger entry %d", id)
	}
	return nil
}

// ledgerWhere renders a LedgerFilter as a WHERE clause and its arguments.
func ledgerWhere(f LedgerFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.OrgID != nil {
		add("org_id = $%d", *f.OrgID)
	}
	if f.LeagueYear != nil {
		add("league_year = $%d", *f.LeagueYear)
	}
	if f.YearLevelOnly {
		conds = append(conds, "game_week IS NULL")
	}
	if f.GameWeek != nil {
		add("game_week = $%d", *f.GameWeek)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		add("entry_type = ANY($%d)", types)
	}
	if f.ContractID != nil {
		add("contract_id = $%d", *f.ContractID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q *pgQuerier) LedgerEntryExists(ctx context.Context, f LedgerFilter) (bool, error) {
	where, args := ledgerWhere(f)
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries`+where+`)`, args...).Scan(&exists)
	return exists, err
}

func (q *pgQuerier) ListLedgerEntries(ctx context.Context, f LedgerFilter) ([]model.LedgerEntry, error) {
	where, args := ledgerWhere(f)
	rows, err := q.db.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries`+where+
			` ORDER BY league_year, game_week NULLS FIRST, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var entryType, amount string
		if err := rows.Scan(&e.ID, &e.OrgID, &e.LeagueYear, &e.GameWeek, &entryType, &amount,
			&e.ContractID, &e.PlayerID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EntryType = model.EntryType(entryType)
		e.Amount = dec(amount)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *pgQuerier) LedgerBalance(ctx context.Context, orgID int64, throughYear int) (decimal.Decimal, error) {
	var total string
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::TEXT FROM ledger_entries
		 WHERE org_id = $1 AND league_year <= $2`, orgID, throughYear).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return dec(total), nil
}

// --- Contracts, details, shares ---

const contractColumns = `id, player_id, org_id, years, current_year, is_extension, is_buyout,
	is_finished, on_ir, signing_year, bonus::TEXT, current_level, created_at`

func scanContract(row pgx.Row) (*model.Contract, error) {
	var c model.Contract
	var bonus string
	if err := row.Scan(&c.ID, &c.PlayerID, &c.OrgID, &c.Years, &c.CurrentYear, &c.IsExtension,
		&c.IsBuyout, &c.IsFinished, &c.OnIR, &c.SigningYear, &bonus, &c.CurrentLevel, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Bonus = dec(bonus)
	return &c, nil
}

func (q *pgQuerier) InsertContract(ctx context.Context, c *model.Contract) error {
	return q.db.QueryRow(ctx,
		`INSERT INTO contracts (player_id, org_id, years, current_year, is_extension, is_buyout,
		                        is_finished, on_ir, signing_year, bonus, current_level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::NUMERIC, $11)
		 RETURNING id, created_at`,
		c.PlayerID, c.OrgID, c.Years, c.CurrentYear, c.IsExtension, c.IsBuyout,
		c.IsFinished, c.OnIR, c.SigningYear, c.Bonus.String(), c.CurrentLevel,
	).Scan(&c.ID, &c.CreatedAt)
}

func (q *pgQuerier) GetContract(ctx context.Context, id int64) (*model.Contract, error) {
	c, err := scanContract(q.db.QueryRow(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "contract %d", id)
	}
	return c, nil
}

func (q *pgQuerier) LockContract(ctx context.Context, id int64) (*model.Contract, error) {
	c, err := scanContract(q.db.QueryRow(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "contract %d", id)
	}
	return c, nil
}

func (q *pgQuerier) UpdateContract(ctx context.Context, c *model.Contract) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE contracts
		 SET current_year = $2, is_finished = $3, on_ir = $4, current_level = $5
		 WHERE id = $1`,
		c.ID, c.CurrentYear, c.IsFinished, c.OnIR, c.CurrentLevel)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("contract %d", c.ID)
	}
	return nil
}

func (q *pgQuerier) ListContracts(ctx context.Context, f ContractFilter) ([]model.Contract, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PlayerID != nil {
		add("player_id = $%d", *f.PlayerID)
	}
	if f.OrgID != nil {
		add("org_id = $%d", *f.OrgID)
	}
	if f.SigningYear != nil {
		add("signing_year = $%d", *f.SigningYear)
	}
	if f.ActiveOnly {
		conds = append(conds, "NOT is_finished")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := q.db.Query(ctx, `SELECT `+contractColumns+` FROM contracts`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (q *pgQuerier) DeleteContractChain(ctx context.Context, id int64) error {
	// details and shares cascade
	tag, err := q.db.Exec(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("contract %d", id)
	}
	return nil
}

func (q *pgQuerier) InsertContractDetail(ctx context.Context, d *model.ContractDetail) error {
	return q.db.QueryRow(ctx,
		`INSERT INTO contract_details (contract_id, year, salary) VALUES ($1, $2, $3::NUMERIC) RETURNING id`,
		d.ContractID, d.Year, d.Salary.String()).Scan(&d.ID)
}

func (q *pgQuerier) ListContractDetails(ctx context.Context, contractID int64) ([]model.ContractDetail, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, contract_id, year, salary::TEXT FROM contract_details
		 WHERE contract_id = $1 ORDER BY year`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContractDetail
	for rows.Next() {
		var d model.ContractDetail
		var salary string
		if err := rows.Scan(&d.ID, &d.ContractID, &d.Year, &salary); err != nil {
			return nil, err
		}
		d.Salary = dec(salary)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *pgQuerier) InsertTeamShare(ctx context.Context, s *model.TeamShare) error {
	return q.db.QueryRow(ctx,
		`INSERT INTO contract_team_shares (detail_id, org_id, is_holder, salary_share)
		 VALUES ($1, $2, $3, $4::NUMERIC) RETURNING id`,
		s.DetailID, s.OrgID, s.IsHolder, s.SalaryShare.String()).Scan(&s.ID)
}

func (q *pgQuerier) GetTeamShare(ctx context.Context, id int64) (*model.TeamShare, error) {
	var s model.TeamShare
	var share string
	err := q.db.QueryRow(ctx,
		`SELECT id, detail_id, org_id, is_holder, salary_share::TEXT
		 FROM contract_team_shares WHERE id = $1`, id).
		Scan(&s.ID, &s.DetailID, &s.OrgID, &s.IsHolder, &share)
	if err != nil {
		return nil, notFound(err, "team share %d", id)
	}
	s.SalaryShare = dec(share)
	return &s, nil
}

func (q *pgQuerier) UpdateTeamShare(ctx context.Context, s *model.TeamShare) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE contract_team_shares SET is_holder = $2, salary_share = $3::NUMERIC WHERE id = $1`,
		s.ID, s.IsHolder, s.SalaryShare.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("team share %d", s.ID)
	}
	return nil
}

func (q *pgQuerier) DeleteTeamShare(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM contract_team_shares WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("team share %d", id)
	}
	return nil
}

func (q *pgQuerier) ListTeamShares(ctx context.Context, detailID int64) ([]model.TeamShare, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, detail_id, org_id, is_holder, salary_share::TEXT
		 FROM contract_team_shares WHERE detail_id = $1 ORDER BY id`, detailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TeamShare
	for rows.Next() {
		var s model.TeamShare
		var share string
		if err := rows.Scan(&s.ID, &s.DetailID, &s.OrgID, &s.IsHolder, &share); err != nil {
			return nil, err
		}
		s.SalaryShare = dec(share)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *pgQuerier) SalaryObligations(ctx context.Context, year int) ([]model.SalaryObligation, error) {
	rows, err := q.db.Query(ctx,
		`SELECT s.org_id, c.id, c.player_id, d.id, d.salary::TEXT, s.salary_share::TEXT
		 FROM contract_team_shares s
		 JOIN contract_details d ON d.id = s.detail_id
		 JOIN contracts c ON c.id = d.contract_id
		 WHERE NOT c.is_finished
		   AND c.signing_year + d.year - 1 = $1
		   AND s.salary_share > 0
		 ORDER BY s.id`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SalaryObligation
	for rows.Next() {
		var o model.SalaryObligation
		var salary, share string
		if err := rows.Scan(&o.OrgID, &o.ContractID, &o.PlayerID, &o.DetailID, &salary, &share); err != nil {
			return nil, err
		}
		o.Salary = dec(salary)
		o.SalaryShare = dec(share)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (q *pgQuerier) HeldPlayersAtLevel(ctx context.Context, level, year int) ([]int64, error) {
	rows, err := q.db.Query(ctx,
		`SELECT DISTINCT c.player_id
		 FROM contracts c
		 JOIN contract_details d ON d.contract_id = c.id AND d.year = c.current_year
		 JOIN contract_team_shares s ON s.detail_id = d.id AND s.is_holder
		 WHERE NOT c.is_finished AND c.current_level = $1 AND c.signing_year <= $2
		 ORDER BY c.player_id`, level, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (q *pgQuerier) CountHeldAtLevel(ctx context.Context, orgID int64, level int) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT c.player_id)
		 FROM contracts c
		 JOIN contract_details d ON d.contract_id = c.id AND d.year = c.current_year
		 JOIN contract_team_shares s ON s.detail_id = d.id AND s.is_holder
		 WHERE NOT c.is_finished AND NOT c.on_ir AND c.current_level = $2 AND s.org_id = $1`,
		orgID, level).Scan(&n)
	return n, err
}

func (q *pgQuerier) AdvanceContracts(ctx context.Context, year int) (int, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE contracts SET current_year = current_year + 1
		 WHERE NOT is_finished AND current_year < years AND signing_year <= $1`, year)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// --- Service time ---

func (q *pgQuerier) CreditServiceTime(ctx context.Context, playerID int64, year int) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`INSERT INTO player_service_time (player_id, mlb_service_years, last_accrual_year)
		 VALUES ($1, 1, $2)
		 ON CONFLICT (player_id) DO UPDATE
		 SET mlb_service_years = player_service_time.mlb_service_years + 1,
		     last_accrual_year = EXCLUDED.last_accrual_year
		 WHERE player_service_time.last_accrual_year < EXCLUDED.last_accrual_year`,
		playerID, year)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (q *pgQuerier) GetServiceTime(ctx context.Context, playerID int64) (*model.ServiceTime, error) {
	st := model.ServiceTime{PlayerID: playerID}
	err := q.db.QueryRow(ctx,
		`SELECT mlb_service_years, last_accrual_year FROM player_service_time WHERE player_id = $1`,
		playerID).Scan(&st.MLBServiceYears, &st.LastAccrualYear)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return &st, nil
}

func (q *pgQuerier) MarkSeasonProcessed(ctx context.Context, year int, runID string) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`INSERT INTO season_runs (league_year, run_id) VALUES ($1, $2)
		 ON CONFLICT (league_year) DO NOTHING`,
		year, runID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// --- Transaction log ---

const transactionColumns = `id, transaction_type, league_year, primary_org_id, secondary_org_id,
	contract_id, player_id, details::TEXT, rollback_of, note, executed_at, executed_by`

func scanTransaction(row pgx.Row) (*model.TransactionLog, error) {
	var t model.TransactionLog
	var txType, details string
	if err := row.Scan(&t.ID, &txType, &t.LeagueYear, &t.PrimaryOrgID, &t.SecondaryOrgID,
		&t.ContractID, &t.PlayerID, &details, &t.RollbackOf, &t.Note, &t.ExecutedAt, &t.ExecutedBy); err != nil {
		return nil, err
	}
	t.Type = model.TransactionType(txType)
	t.Details = json.RawMessage(details)
	return &t, nil
}

func (q *pgQuerier) InsertTransaction(ctx context.Context, t *model.TransactionLog) error {
	return q.db.QueryRow(ctx,
		`INSERT INTO transaction_log (transaction_type, league_year, primary_org_id, secondary_org_id,
		                              contract_id, player_id, details, rollback_of, note, executed_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::JSONB, $8, $9, $10)
		 RETURNING id, executed_at`,
		string(t.Type), t.LeagueYear, t.PrimaryOrgID, t.SecondaryOrgID,
		t.ContractID, t.PlayerID, string(t.Details), t.RollbackOf, t.Note, t.ExecutedBy,
	).Scan(&t.ID, &t.ExecutedAt)
}

func (q *pgQuerier) GetTransaction(ctx context.Context, id int64) (*model.TransactionLog, error) {
	t, err := scanTransaction(q.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transaction_log WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "transaction %d", id)
	}
	return t, nil
}

func (q *pgQuerier) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.TransactionLog, error) {
	var conds []string
	var args []any
	if f.OrgID != nil {
		args = append(args, *f.OrgID)
		conds = append(conds, fmt.Sprintf("(primary_org_id = $%d OR secondary_org_id = $%d)", len(args), len(args)))
	}
	if f.Type != nil {
		args = append(args, string(*f.Type))
		conds = append(conds, fmt.Sprintf("transaction_type = $%d", len(args)))
	}
	if f.LeagueYear != nil {
		args = append(args, *f.LeagueYear)
		conds = append(conds, fmt.Sprintf("league_year = $%d", len(args)))
	}
	sql := `SELECT ` + transactionColumns + ` FROM transaction_log`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TransactionLog
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (q *pgQuerier) HasRollback(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transaction_log WHERE rollback_of = $1)`, id).Scan(&exists)
	return exists, err
}

// --- Trade proposals ---

const proposalColumns = `id, proposing_org_id, receiving_org_id, league_year, status, proposal::TEXT,
	proposal_note, counterparty_note, admin_note, proposed_at, counterparty_acted_at,
	admin_acted_at, executed_at, transaction_id`

func scanProposal(row pgx.Row) (*model.TradeProposal, error) {
	var p model.TradeProposal
	var status, terms string
	if err := row.Scan(&p.ID, &p.ProposingOrgID, &p.ReceivingOrgID, &p.LeagueYear, &status, &terms,
		&p.ProposalNote, &p.CounterpartyNote, &p.AdminNote, &p.ProposedAt, &p.CounterpartyActedAt,
		&p.AdminActedAt, &p.ExecutedAt, &p.TransactionID); err != nil {
		return nil, err
	}
	p.Status = model.ProposalStatus(status)
	if err := json.Unmarshal([]byte(terms), &p.Proposal); err != nil {
		return nil, fmt.Errorf("decode proposal %d: %w", p.ID, err)
	}
	return &p, nil
}

func (q *pgQuerier) InsertTradeProposal(ctx context.Context, p *model.TradeProposal) error {
	terms, err := json.Marshal(p.Proposal)
	if err != nil {
		return fmt.Errorf("encode proposal: %w", err)
	}
	return q.db.QueryRow(ctx,
		`INSERT INTO trade_proposals (proposing_org_id, receiving_org_id, league_year, status, proposal,
		                              proposal_note, proposed_at)
		 VALUES ($1, $2, $3, $4, $5::JSONB, $6, $7)
		 RETURNING id`,
		p.ProposingOrgID, p.ReceivingOrgID, p.LeagueYear, string(p.Status), string(terms),
		p.ProposalNote, p.ProposedAt,
	).Scan(&p.ID)
}

func (q *pgQuerier) GetTradeProposal(ctx context.Context, id int64) (*model.TradeProposal, error) {
	p, err := scanProposal(q.db.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM trade_proposals WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "trade proposal %d", id)
	}
	return p, nil
}

func (q *pgQuerier) LockTradeProposal(ctx context.Context, id int64) (*model.TradeProposal, error) {
	p, err := scanProposal(q.db.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM trade_proposals WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "trade proposal %d", id)
	}
	return p, nil
}

func (q *pgQuerier) UpdateTradeProposal(ctx context.Context, p *model.TradeProposal) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE trade_proposals
		 SET status = $2, counterparty_note = $3, admin_note = $4, counterparty_acted_at = $5,
		     admin_acted_at = $6, executed_at = $7, transaction_id = $8
		 WHERE id = $1`,
		p.ID, string(p.Status), p.CounterpartyNote, p.AdminNote, p.CounterpartyActedAt,
		p.AdminActedAt, p.ExecutedAt, p.TransactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("trade proposal %d", p.ID)
	}
	return nil
}

func (q *pgQuerier) ListTradeProposals(ctx context.Context, f ProposalFilter) ([]model.TradeProposal, error) {
	var conds []string
	var args []any
	if f.OrgID != nil {
		args = append(args, *f.OrgID)
		conds = append(conds, fmt.Sprintf("(proposing_org_id = $%d OR receiving_org_id = $%d)", len(args), len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	sql := `SELECT ` + proposalColumns + ` FROM trade_proposals`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY id"

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TradeProposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
