package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ir-radar/internal/db"
	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path pipeline operations.
var preparedStatements = map[string]string{
	"existing_urls":  `SELECT url FROM articles WHERE company_id = $1`,
	"insert_article": `INSERT INTO articles (id, company_id, title, url, source, published_at, fetched_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"insert_signal":  `INSERT INTO signals (id, article_id, company_id, summary, signal_type, relevance_score, pain_score, talking_point, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"attach_talking": `UPDATE signals SET talking_point = $1 WHERE id = $2`,
	"get_company":    `SELECT id, name, ticker, aliases, active, created_at FROM companies WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, primarily for tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	ticker     TEXT,
	aliases    TEXT[] NOT NULL DEFAULT '{}',
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS articles (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id   TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	title        TEXT NOT NULL,
	url          TEXT NOT NULL UNIQUE,
	source       TEXT,
	published_at TIMESTAMPTZ,
	fetched_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signals (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	article_id      TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	company_id      TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	summary         TEXT NOT NULL,
	signal_type     TEXT NOT NULL,
	relevance_score DOUBLE PRECISION NOT NULL,
	pain_score      DOUBLE PRECISION NOT NULL,
	talking_point   TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS financials (
	company_id       TEXT PRIMARY KEY REFERENCES companies(id) ON DELETE CASCADE,
	price_change_7d  DOUBLE PRECISION,
	price_change_30d DOUBLE PRECISION,
	market_cap       DOUBLE PRECISION,
	market_cap_tier  TEXT NOT NULL DEFAULT 'unknown',
	last_earnings    TIMESTAMPTZ,
	next_earnings    TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outreach_actions (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id  TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	action_type TEXT NOT NULL,
	note        TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id     TEXT NOT NULL,
	company_name   TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT,
	retry_count    INT NOT NULL DEFAULT 0,
	max_retries    INT NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_ticker ON companies(ticker) WHERE ticker IS NOT NULL AND ticker != '';
CREATE INDEX IF NOT EXISTS idx_articles_company ON articles(company_id);
CREATE INDEX IF NOT EXISTS idx_signals_company ON signals(company_id);
CREATE INDEX IF NOT EXISTS idx_signals_created ON signals(created_at);
CREATE INDEX IF NOT EXISTS idx_outreach_company ON outreach_actions(company_id, created_at);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

// --- Watchlist ---

func (s *PostgresStore) AddCompany(ctx context.Context, c model.Company) (*model.Company, error) {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, name, ticker, aliases, active, created_at) VALUES ($1, $2, $3, $4, true, $5)`,
		c.ID, c.Name, c.Ticker, c.Aliases, c.CreatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, eris.Errorf("postgres: company with ticker %q already exists", c.Ticker)
		}
		return nil, eris.Wrap(err, "postgres: insert company")
	}
	return &c, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, ticker, aliases, active, created_at FROM companies WHERE id = $1`, id)
	return scanPgCompany(row)
}

func (s *PostgresStore) GetCompanyByTicker(ctx context.Context, ticker string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, ticker, aliases, active, created_at FROM companies WHERE ticker = $1`, ticker)
	return scanPgCompany(row)
}

func (s *PostgresStore) ListCompanies(ctx context.Context, activeOnly bool) ([]model.Company, error) {
	query := `SELECT id, name, ticker, aliases, active, created_at FROM companies`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanPgCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) SetCompanyActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE companies SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set company active %s", id)
	}
	return checkTagRows(tag, "company", id)
}

func (s *PostgresStore) DeleteCompany(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete company %s", id)
	}
	return checkTagRows(tag, "company", id)
}

// --- Articles ---

func (s *PostgresStore) ExistingURLs(ctx context.Context, companyID string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT url FROM articles WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: existing urls")
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "postgres: scan url")
		}
		urls[u] = struct{}{}
	}
	return urls, eris.Wrap(rows.Err(), "postgres: existing urls iterate")
}

func (s *PostgresStore) InsertArticle(ctx context.Context, a *model.Article) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.FetchedAt.IsZero() {
		a.FetchedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO articles (id, company_id, title, url, source, published_at, fetched_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.CompanyID, a.Title, a.URL, a.Source, a.PublishedAt, a.FetchedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return false, nil
		}
		return false, eris.Wrap(err, "postgres: insert article")
	}
	return true, nil
}

// --- Signals ---

var signalColumns = []string{
	"id", "article_id", "company_id", "summary", "signal_type",
	"relevance_score", "pain_score", "talking_point", "created_at",
}

func (s *PostgresStore) PersistSignalsBatch(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(signals))
	for _, sig := range signals {
		rows = append(rows, signalRow(sig))
	}
	n, err := db.CopyFrom(ctx, s.pool, "signals", signalColumns, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: copy signals")
	}
	if n != int64(len(signals)) {
		return eris.Errorf("postgres: copied %d of %d signals", n, len(signals))
	}
	return nil
}

func (s *PostgresStore) PersistSignal(ctx context.Context, sig model.Signal) error {
	row := signalRow(sig)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO signals (id, article_id, company_id, summary, signal_type, relevance_score, pain_score, talking_point, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, row...)
	return eris.Wrap(err, "postgres: insert signal")
}

func (s *PostgresStore) AttachTalkingPoint(ctx context.Context, signalID, text string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE signals SET talking_point = $1 WHERE id = $2`, text, signalID)
	if err != nil {
		return eris.Wrapf(err, "postgres: attach talking point %s", signalID)
	}
	return checkTagRows(tag, "signal", signalID)
}

func (s *PostgresStore) ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error) {
	query := `SELECT id, article_id, company_id, summary, signal_type, relevance_score, pain_score, talking_point, created_at
	          FROM signals WHERE true`
	var args []any

	if len(filter.CompanyIDs) > 0 {
		args = append(args, filter.CompanyIDs)
		query += ` AND company_id = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if filter.SignalType != "" {
		args = append(args, string(filter.SignalType))
		query += ` AND signal_type = $` + strconv.Itoa(len(args))
	}
	if filter.MinRelevance > 0 {
		args = append(args, filter.MinRelevance)
		query += ` AND relevance_score >= $` + strconv.Itoa(len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list signals")
	}
	defer rows.Close()

	return scanPgSignals(rows)
}

func (s *PostgresStore) HotSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, article_id, company_id, summary, signal_type, relevance_score, pain_score, talking_point, created_at
		 FROM signals WHERE signal_type != 'neutral' ORDER BY pain_score DESC, created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: hot signals")
	}
	defer rows.Close()

	return scanPgSignals(rows)
}

func (s *PostgresStore) ClearSignalsAndArticles(ctx context.Context) (int64, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: begin clear")
	}
	defer tx.Rollback(ctx)

	sigTag, err := tx.Exec(ctx, `DELETE FROM signals`)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: clear signals")
	}
	artTag, err := tx.Exec(ctx, `DELETE FROM articles`)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: clear articles")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, eris.Wrap(err, "postgres: commit clear")
	}
	return sigTag.RowsAffected(), artTag.RowsAffected(), nil
}

// --- Financials ---

func (s *PostgresStore) GetFinancials(ctx context.Context, companyID string) (*model.FinancialSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT company_id, price_change_7d, price_change_30d, market_cap, market_cap_tier, last_earnings, next_earnings, updated_at
		 FROM financials WHERE company_id = $1`, companyID)

	var snap model.FinancialSnapshot
	var cap *float64
	var tier string
	err := row.Scan(&snap.CompanyID, &snap.PriceChange7D, &snap.PriceChange30D, &cap, &tier,
		&snap.LastEarnings, &snap.NextEarnings, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get financials")
	}
	snap.MarketCapTier = model.MarketCapTier(tier)
	if cap != nil {
		snap.MarketCap = *cap
	}
	return &snap, nil
}

func (s *PostgresStore) UpsertFinancials(ctx context.Context, snap model.FinancialSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO financials (company_id, price_change_7d, price_change_30d, market_cap, market_cap_tier, last_earnings, next_earnings, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (company_id) DO UPDATE SET
		   price_change_7d = EXCLUDED.price_change_7d,
		   price_change_30d = EXCLUDED.price_change_30d,
		   market_cap = EXCLUDED.market_cap,
		   market_cap_tier = EXCLUDED.market_cap_tier,
		   last_earnings = EXCLUDED.last_earnings,
		   next_earnings = EXCLUDED.next_earnings,
		   updated_at = EXCLUDED.updated_at`,
		snap.CompanyID, snap.PriceChange7D, snap.PriceChange30D, snap.MarketCap,
		string(snap.MarketCapTier), snap.LastEarnings, snap.NextEarnings, snap.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert financials")
}

func (s *PostgresStore) StaleFinancialCompanies(ctx context.Context, cutoff time.Time) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.name, c.ticker, c.aliases, c.active, c.created_at
		 FROM companies c
		 LEFT JOIN financials f ON f.company_id = c.id
		 WHERE c.active AND c.ticker IS NOT NULL AND c.ticker != ''
		   AND (f.company_id IS NULL OR f.updated_at < $1)
		 ORDER BY c.name`, cutoff.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stale financials")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanPgCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: stale financials iterate")
}

// --- Outreach ---

func (s *PostgresStore) AddOutreach(ctx context.Context, action model.OutreachAction) (*model.OutreachAction, error) {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outreach_actions (id, company_id, action_type, note, created_at) VALUES ($1, $2, $3, $4, $5)`,
		action.ID, action.CompanyID, string(action.ActionType), action.Note, action.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert outreach")
	}
	return &action, nil
}

func (s *PostgresStore) ListOutreach(ctx context.Context, companyID string, limit int) ([]model.OutreachAction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, action_type, note, created_at FROM outreach_actions
		 WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list outreach")
	}
	defer rows.Close()

	var out []model.OutreachAction
	for rows.Next() {
		var a model.OutreachAction
		var note *string
		var actionType string
		if err := rows.Scan(&a.ID, &a.CompanyID, &actionType, &note, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outreach")
		}
		a.ActionType = model.OutreachType(actionType)
		if note != nil {
			a.Note = *note
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list outreach iterate")
}

func (s *PostgresStore) LastContact(ctx context.Context, companyID string) (*model.OutreachAction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, company_id, action_type, note, created_at FROM outreach_actions
		 WHERE company_id = $1 AND action_type = 'contacted' ORDER BY created_at DESC LIMIT 1`, companyID)

	var a model.OutreachAction
	var note *string
	var actionType string
	err := row.Scan(&a.ID, &a.CompanyID, &actionType, &note, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last contact")
	}
	a.ActionType = model.OutreachType(actionType)
	if note != nil {
		a.Note = *note
	}
	return &a, nil
}

func (s *PostgresStore) HiddenCompanyIDs(ctx context.Context, contactedSince, snoozedSince time.Time) (map[string]struct{}, error) {
	hidden := make(map[string]struct{})

	collect := func(action string, since time.Time) error {
		if since.IsZero() {
			return nil
		}
		rows, err := s.pool.Query(ctx,
			`SELECT DISTINCT company_id FROM outreach_actions WHERE action_type = $1 AND created_at >= $2`,
			action, since.UTC())
		if err != nil {
			return eris.Wrapf(err, "postgres: hidden companies %s", action)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return eris.Wrap(err, "postgres: scan hidden company")
			}
			hidden[id] = struct{}{}
		}
		return eris.Wrapf(rows.Err(), "postgres: hidden companies %s iterate", action)
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

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry *resilience.DLQEntry) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue (id, company_id, company_name, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.CompanyID, entry.CompanyName, entry.Error, entry.ErrorType, entry.FailedStage,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt.UTC(), entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, company_id, company_name, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue WHERE true`
	var args []any
	if filter.ErrorType != "" {
		args = append(args, filter.ErrorType)
		query += ` AND error_type = $` + strconv.Itoa(len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` ORDER BY next_retry_at LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dlq")
	}
	defer rows.Close()

	return scanPgDLQ(rows)
}

func (s *PostgresStore) DueDLQ(ctx context.Context, now time.Time, limit int) ([]resilience.DLQEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, company_name, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		 FROM dead_letter_queue WHERE next_retry_at <= $1 AND retry_count < max_retries
		 ORDER BY next_retry_at LIMIT $2`, now.UTC(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: due dlq")
	}
	defer rows.Close()

	return scanPgDLQ(rows)
}

func (s *PostgresStore) DeleteDLQ(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete dlq %s", id)
	}
	return checkTagRows(tag, "dlq entry", id)
}

func (s *PostgresStore) BumpDLQRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue SET retry_count = retry_count + 1, next_retry_at = $1, last_failed_at = $2 WHERE id = $3`,
		nextRetryAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: bump dlq retry %s", id)
	}
	return checkTagRows(tag, "dlq entry", id)
}

// --- helpers ---

func scanPgCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	var ticker *string
	err := row.Scan(&c.ID, &c.Name, &ticker, &c.Aliases, &c.Active, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan company")
	}
	if ticker != nil {
		c.Ticker = *ticker
	}
	return &c, nil
}

func scanPgSignals(rows pgx.Rows) ([]model.Signal, error) {
	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var sigType string
		if err := rows.Scan(&sig.ID, &sig.ArticleID, &sig.CompanyID, &sig.Summary, &sigType,
			&sig.RelevanceScore, &sig.PainScore, &sig.TalkingPoint, &sig.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		sig.SignalType = model.SignalType(sigType)
		out = append(out, sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: signals iterate")
}

func scanPgDLQ(rows pgx.Rows) ([]resilience.DLQEntry, error) {
	var out []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var stage *string
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.CompanyName, &e.Error, &e.ErrorType, &stage,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if stage != nil {
			e.FailedStage = *stage
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: dlq iterate")
}

func checkTagRows(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: %s %s not found", kind, id)
	}
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
