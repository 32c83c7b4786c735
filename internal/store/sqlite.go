package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	ticker     TEXT,
	aliases    TEXT NOT NULL DEFAULT '[]',
	active     INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS articles (
	id           TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	title        TEXT NOT NULL,
	url          TEXT NOT NULL UNIQUE,
	source       TEXT,
	published_at DATETIME,
	fetched_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS signals (
	id              TEXT PRIMARY KEY,
	article_id      TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	company_id      TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	summary         TEXT NOT NULL,
	signal_type     TEXT NOT NULL,
	relevance_score REAL NOT NULL,
	pain_score      REAL NOT NULL,
	talking_point   TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS financials (
	company_id       TEXT PRIMARY KEY REFERENCES companies(id) ON DELETE CASCADE,
	price_change_7d  REAL,
	price_change_30d REAL,
	market_cap       REAL,
	market_cap_tier  TEXT NOT NULL DEFAULT 'unknown',
	last_earnings    DATETIME,
	next_earnings    DATETIME,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS outreach_actions (
	id          TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	action_type TEXT NOT NULL,
	note        TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	company_name   TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_failed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_ticker ON companies(ticker) WHERE ticker IS NOT NULL AND ticker != '';
CREATE INDEX IF NOT EXISTS idx_articles_company ON articles(company_id);
CREATE INDEX IF NOT EXISTS idx_signals_company ON signals(company_id);
CREATE INDEX IF NOT EXISTS idx_signals_created ON signals(created_at);
CREATE INDEX IF NOT EXISTS idx_outreach_company ON outreach_actions(company_id, created_at);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Watchlist ---

func (s *SQLiteStore) AddCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if len(c.Aliases) == 0 {
		c.Aliases = []string{c.Name}
	}
	c.Active = true

	aliasJSON, err := json.Marshal(c.Aliases)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal aliases")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, ticker, aliases, active, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
		c.ID, c.Name, c.Ticker, string(aliasJSON), c.CreatedAt,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, eris.Errorf("sqlite: company with ticker %q already exists", c.Ticker)
		}
		return nil, eris.Wrap(err, "sqlite: insert company")
	}
	return &c, nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, ticker, aliases, active, created_at FROM companies WHERE id = ?`, id)
	return scanCompany(row)
}

func (s *SQLiteStore) GetCompanyByTicker(ctx context.Context, ticker string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, ticker, aliases, active, created_at FROM companies WHERE ticker = ?`, ticker)
	return scanCompany(row)
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, activeOnly bool) ([]model.Company, error) {
	query := `SELECT id, name, ticker, aliases, active, created_at FROM companies`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) SetCompanyActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE companies SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set company active %s", id)
	}
	return checkRowsAffected(res, "company", id)
}

func (s *SQLiteStore) DeleteCompany(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete company %s", id)
	}
	return checkRowsAffected(res, "company", id)
}

// --- Articles ---

func (s *SQLiteStore) ExistingURLs(ctx context.Context, companyID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM articles WHERE company_id = ?`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: existing urls")
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan url")
		}
		urls[u] = struct{}{}
	}
	return urls, eris.Wrap(rows.Err(), "sqlite: existing urls iterate")
}

func (s *SQLiteStore) InsertArticle(ctx context.Context, a *model.Article) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.FetchedAt.IsZero() {
		a.FetchedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (id, company_id, title, url, source, published_at, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CompanyID, a.Title, a.URL, a.Source, nullTime(a.PublishedAt), a.FetchedAt,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return false, nil
		}
		return false, eris.Wrap(err, "sqlite: insert article")
	}
	return true, nil
}

// --- Signals ---

func (s *SQLiteStore) PersistSignalsBatch(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin signal batch")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO signals (id, article_id, company_id, summary, signal_type, relevance_score, pain_score, talking_point, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare signal insert")
	}
	defer stmt.Close()

	for _, sig := range signals {
		row := signalRow(sig)
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert signal for article %s", sig.ArticleID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit signal batch")
}

func (s *SQLiteStore) PersistSignal(ctx context.Context, sig model.Signal) error {
	row := signalRow(sig)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, article_id, company_id, summary, signal_type, relevance_score, pain_score, talking_point, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, row...)
	return eris.Wrap(err, "sqlite: insert signal")
}

func (s *SQLiteStore) AttachTalkingPoint(ctx context.Context, signalID, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET talking_point = ? WHERE id = ?`, text, signalID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: attach talking point %s", signalID)
	}
	return checkRowsAffected(res, "signal", signalID)
}

func (s *SQLiteStore) ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error) {
	query := `SELECT id, article_id, company_id, summary, signal_type, relevance_score, pain_score, talking_point, created_at
	          FROM signals WHERE 1=1`
	var args []any

	if len(filter.CompanyIDs) > 0 {
		query += ` AND company_id IN (?` + strings.Repeat(",?", len(filter.CompanyIDs)-1) + `)`
		for _, id := range filter.CompanyIDs {
			args = append(args, id)
		}
	}
	if filter.SignalType != "" {
		query += ` AND signal_type = ?`
		args = append(args, string(filter.SignalType))
	}
	if filter.MinRelevance > 0 {
		query += ` AND relevance_score >= ?`
		args = append(args, filter.MinRelevance)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list signals")
	}
	defer rows.Close()

	return scanSignals(rows)
}

func (s *SQLiteStore) HotSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, article_id, company_id, summary, signal_type, relevance_score, pain_score, talking_point, created_at
		 FROM signals WHERE signal_type != 'neutral' ORDER BY pain_score DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: hot signals")
	}
	defer rows.Close()

	return scanSignals(rows)
}

func (s *SQLiteStore) ClearSignalsAndArticles(ctx context.Context) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: begin clear")
	}
	defer tx.Rollback()

	sigRes, err := tx.ExecContext(ctx, `DELETE FROM signals`)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: clear signals")
	}
	artRes, err := tx.ExecContext(ctx, `DELETE FROM articles`)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: clear articles")
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: commit clear")
	}

	sigs, _ := sigRes.RowsAffected()
	arts, _ := artRes.RowsAffected()
	return sigs, arts, nil
}

// --- Financials ---

func (s *SQLiteStore) GetFinancials(ctx context.Context, companyID string) (*model.FinancialSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT company_id, price_change_7d, price_change_30d, market_cap, market_cap_tier, last_earnings, next_earnings, updated_at
		 FROM financials WHERE company_id = ?`, companyID)

	var snap model.FinancialSnapshot
	var p7, p30, cap sql.NullFloat64
	var last, next sql.NullTime
	var tier string
	err := row.Scan(&snap.CompanyID, &p7, &p30, &cap, &tier, &last, &next, &snap.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get financials")
	}
	snap.MarketCapTier = model.MarketCapTier(tier)
	if p7.Valid {
		snap.PriceChange7D = &p7.Float64
	}
	if p30.Valid {
		snap.PriceChange30D = &p30.Float64
	}
	if cap.Valid {
		snap.MarketCap = cap.Float64
	}
	if last.Valid {
		t := last.Time
		snap.LastEarnings = &t
	}
	if next.Valid {
		t := next.Time
		snap.NextEarnings = &t
	}
	return &snap, nil
}

func (s *SQLiteStore) UpsertFinancials(ctx context.Context, snap model.FinancialSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO financials (company_id, price_change_7d, price_change_30d, market_cap, market_cap_tier, last_earnings, next_earnings, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(company_id) DO UPDATE SET
		   price_change_7d = excluded.price_change_7d,
		   price_change_30d = excluded.price_change_30d,
		   market_cap = excluded.market_cap,
		   market_cap_tier = excluded.market_cap_tier,
		   last_earnings = excluded.last_earnings,
		   next_earnings = excluded.next_earnings,
		   updated_at = excluded.updated_at`,
		snap.CompanyID, nullFloat(snap.PriceChange7D), nullFloat(snap.PriceChange30D),
		snap.MarketCap, string(snap.MarketCapTier), nullTime(snap.LastEarnings), nullTime(snap.NextEarnings), snap.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert financials")
}

func (s *SQLiteStore) StaleFinancialCompanies(ctx context.Context, cutoff time.Time) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.ticker, c.aliases, c.active, c.created_at
		 FROM companies c
		 LEFT JOIN financials f ON f.company_id = c.id
		 WHERE c.active = 1 AND c.ticker IS NOT NULL AND c.ticker != ''
		   AND (f.company_id IS NULL OR f.updated_at < ?)
		 ORDER BY c.name`, cutoff.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stale financials")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: stale financials iterate")
}

// --- Outreach ---

func (s *SQLiteStore) AddOutreach(ctx context.Context, action model.OutreachAction) (*model.OutreachAction, error) {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outreach_actions (id, company_id, action_type, note, created_at) VALUES (?, ?, ?, ?, ?)`,
		action.ID, action.CompanyID, string(action.ActionType), action.Note, action.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert outreach")
	}
	return &action, nil
}

func (s *SQLiteStore) ListOutreach(ctx context.Context, companyID string, limit int) ([]model.OutreachAction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, action_type, note, created_at FROM outreach_actions
		 WHERE company_id = ? ORDER BY created_at DESC LIMIT ?`, companyID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list outreach")
	}
	defer rows.Close()

	var out []model.OutreachAction
	for rows.Next() {
		a, err := scanOutreach(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list outreach iterate")
}

func (s *SQLiteStore) LastContact(ctx context.Context, companyID string) (*model.OutreachAction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, action_type, note, created_at FROM outreach_actions
		 WHERE company_id = ? AND action_type = 'contacted' ORDER BY created_at DESC LIMIT 1`, companyID)
	a, err := scanOutreach(row)
	if err != nil && eris.Is(err, errNotFound) {
		return nil, nil
	}
	return a, err
}

func (s *SQLiteStore) HiddenCompanyIDs(ctx context.Context, contactedSince, snoozedSince time.Time) (map[string]struct{}, error) {
	hidden := make(map[string]struct{})

	collect := func(action string, since time.Time) error {
		if since.IsZero() {
			return nil
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT DISTINCT company_id FROM outreach_actions WHERE action_type = ? AND created_at >= ?`,
			action, since.UTC())
		if err != nil {
			return eris.Wrapf(err, "sqlite: hidden companies %s", action)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return eris.Wrap(err, "sqlite: scan hidden company")
			}
			hidden[id] = struct{}{}
		}
		return eris.Wrapf(rows.Err(), "sqlite: hidden companies %s iterate", action)
	}

	if err := collect("contacted", contactedSince); err != nil {
		return nil, err
	}
	if err := collect("snoozed", snoozedSince); err != nil {
		return nil, err
	}
	return hidden, nil
}

// --- Dead letter queue ---

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry *resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.LastFailedAt.IsZero() {
		entry.LastFailedAt = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue (id, company_id, company_name, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CompanyID, entry.CompanyName, entry.Error, entry.ErrorType, entry.FailedStage,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt.UTC(), entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, company_id, company_name, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue WHERE 1=1`
	var args []any
	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY next_retry_at`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dlq")
	}
	defer rows.Close()

	return scanDLQ(rows)
}

func (s *SQLiteStore) DueDLQ(ctx context.Context, now time.Time, limit int) ([]resilience.DLQEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, company_name, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		 FROM dead_letter_queue WHERE next_retry_at <= ? AND retry_count < max_retries
		 ORDER BY next_retry_at LIMIT ?`, now.UTC(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: due dlq")
	}
	defer rows.Close()

	return scanDLQ(rows)
}

func (s *SQLiteStore) DeleteDLQ(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete dlq %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

func (s *SQLiteStore) BumpDLQRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue SET retry_count = retry_count + 1, next_retry_at = ?, last_failed_at = ? WHERE id = ?`,
		nextRetryAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: bump dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

// --- helpers ---

var errNotFound = eris.New("store: not found")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*model.Company, error) {
	var c model.Company
	var ticker sql.NullString
	var aliasJSON string
	var active int
	err := row.Scan(&c.ID, &c.Name, &ticker, &aliasJSON, &active, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan company")
	}
	c.Ticker = ticker.String
	c.Active = active != 0
	if err := json.Unmarshal([]byte(aliasJSON), &c.Aliases); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal aliases")
	}
	return &c, nil
}

func scanSignals(rows *sql.Rows) ([]model.Signal, error) {
	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var talking sql.NullString
		var sigType string
		if err := rows.Scan(&sig.ID, &sig.ArticleID, &sig.CompanyID, &sig.Summary, &sigType,
			&sig.RelevanceScore, &sig.PainScore, &talking, &sig.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		sig.SignalType = model.SignalType(sigType)
		if talking.Valid {
			sig.TalkingPoint = &talking.String
		}
		out = append(out, sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: signals iterate")
}

func scanOutreach(row rowScanner) (*model.OutreachAction, error) {
	var a model.OutreachAction
	var note sql.NullString
	var actionType string
	err := row.Scan(&a.ID, &a.CompanyID, &actionType, &note, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan outreach")
	}
	a.ActionType = model.OutreachType(actionType)
	a.Note = note.String
	return &a, nil
}

func scanDLQ(rows *sql.Rows) ([]resilience.DLQEntry, error) {
	var out []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var stage sql.NullString
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.CompanyName, &e.Error, &e.ErrorType, &stage,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		e.FailedStage = stage.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: dlq iterate")
}

func signalRow(sig model.Signal) []any {
	id := sig.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := sig.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return []any{
		id, sig.ArticleID, sig.CompanyID, sig.Summary, string(sig.SignalType),
		sig.RelevanceScore, sig.PainScore, nullString(sig.TalkingPoint), createdAt,
	}
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
