/*
Package provider supplies raw pending-order rows to the dashboard.

PURPOSE:
  The SQL provider reads the cancellation/backorder view of the ERP
  database. The Mock provider generates demo rows for offline mode and for
  the no-cache fallback.

DIALECTS:
  sqlserver  FORMAT(...)   @p1 placeholders  (production, go-mssqldb)
  postgres   to_char(...)  $1 placeholders   (lib/pq)
  sqlite3    strftime(...) ? placeholders    (local runs and tests)

RETRY POLICY:
  connect:  up to Retries attempts, RetryDelay apart, each pinged
  query:    on failure disconnect, reconnect, retry exactly once
  Every call is bounded by Timeout. Every failure is a
  *completion.ProviderError.

SEE ALSO:
  - orders/types.go: Source and RawRow
  - dashboard/controller.go: decides what to serve when a fetch fails
*/
package provider

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/backorder-board/completion"
	"github.com/warp/backorder-board/orders"
)

// Supported driver names.
const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite3"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLConfig describes the upstream database.
type SQLConfig struct {
	Driver   string
	DSN      string // used verbatim when set
	Server   string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	View     string

	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration

	OrderStatus    string
	OccurrenceType string
}

// Validate checks the driver and the identifiers spliced into the query.
func (c SQLConfig) Validate() error {
	switch c.Driver {
	case DriverSQLServer, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
	if !identifier.MatchString(c.View) {
		return fmt.Errorf("invalid view name %q", c.View)
	}
	if c.Schema != "" && !identifier.MatchString(c.Schema) {
		return fmt.Errorf("invalid schema name %q", c.Schema)
	}
	return nil
}

// SQL fetches pending rows from a relational view.
type SQL struct {
	cfg SQLConfig
	log *zap.Logger

	mu     sync.Mutex
	db     *sql.DB
	owned  bool
	open   func() (*sql.DB, error)
	sleep  func(ctx context.Context, d time.Duration) error
	stmt   string
	closed bool
}

// NewSQL creates a provider that opens its own connection pool lazily.
func NewSQL(cfg SQLConfig, log *zap.Logger) (*SQL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}
	p := newSQL(cfg, log)
	p.owned = true
	p.open = func() (*sql.DB, error) { return sql.Open(cfg.Driver, dsn) }
	return p, nil
}

// NewSQLWithDB wraps an existing pool. The pool is never closed by the
// provider; reconnecting re-pings it.
func NewSQLWithDB(db *sql.DB, cfg SQLConfig, log *zap.Logger) (*SQL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := newSQL(cfg, log)
	p.open = func() (*sql.DB, error) { return db, nil }
	return p, nil
}

func newSQL(cfg SQLConfig, log *zap.Logger) *SQL {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	return &SQL{
		cfg:   cfg,
		log:   log.Named("provider"),
		sleep: sleepCtx,
		stmt:  Statement(cfg),
	}
}

// FetchPendingRows runs the pending-orders query.
func (p *SQL) FetchPendingRows(ctx context.Context) ([]orders.RawRow, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, &completion.ProviderError{Op: "query", Err: sql.ErrConnDone}
	}

	db, err := p.connectLocked(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := p.query(ctx, db)
	if err == nil {
		return rows, nil
	}

	p.log.Warn("query failed, reconnecting", zap.Error(err))
	p.disconnectLocked()
	db, err = p.connectLocked(ctx)
	if err != nil {
		return nil, err
	}
	rows, err = p.query(ctx, db)
	if err != nil {
		return nil, &completion.ProviderError{Op: "query", Err: err}
	}
	return rows, nil
}

// Ping verifies connectivity without running the query.
func (p *SQL) Ping(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	db, err := p.connectLocked(ctx)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		p.disconnectLocked()
		return &completion.ProviderError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases an owned connection pool.
func (p *SQL) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.db != nil && p.owned {
		err := p.db.Close()
		p.db = nil
		return err
	}
	p.db = nil
	return nil
}

// =============================================================================
// CONNECTION
// =============================================================================

func (p *SQL) connectLocked(ctx context.Context) (*sql.DB, error) {
	if p.db != nil {
		return p.db, nil
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		db, err := p.open()
		if err == nil {
			err = db.PingContext(ctx)
			if err == nil {
				p.db = db
				p.log.Info("database connected",
					zap.String("driver", p.cfg.Driver),
					zap.Int("attempt", attempt))
				return db, nil
			}
			if p.owned {
				db.Close()
			}
		}
		lastErr = err
		p.log.Warn("database connection failed",
			zap.Int("attempt", attempt),
			zap.Int("retries", p.cfg.Retries),
			zap.Error(err))

		if attempt < p.cfg.Retries {
			if err := p.sleep(ctx, p.cfg.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}
	}
	return nil, &completion.ProviderError{Op: "connect", Err: lastErr}
}

func (p *SQL) disconnectLocked() {
	if p.db == nil {
		return
	}
	if p.owned {
		if err := p.db.Close(); err != nil {
			p.log.Debug("close failed", zap.Error(err))
		}
	}
	p.db = nil
}

func (p *SQL) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, p.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// =============================================================================
// QUERY
// =============================================================================

func (p *SQL) query(ctx context.Context, db *sql.DB) ([]orders.RawRow, error) {
	rs, err := db.QueryContext(ctx, p.stmt, p.cfg.OrderStatus, p.cfg.OccurrenceType)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []orders.RawRow
	for rs.Next() {
		cells := make([]any, 8)
		ptrs := make([]any, len(cells))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, orders.RawRow{
			OccurrenceTimestamp: cell(cells[0]),
			HandlerName:         cell(cells[1]),
			ClientName:          cell(cells[2]),
			ProductName:         cell(cells[3]),
			OrderStatus:         cell(cells[4]),
			OccurrenceType:      cell(cells[5]),
			OccurrenceText:      cell(cells[6]),
			ProductCode:         cell(cells[7]),
		})
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// cell coerces a scanned value. NULL becomes "".
func cell(v any) string {
	s, _ := completion.Coerce(v)
	return s
}

// Statement renders the pending-orders query for cfg's dialect.
func Statement(cfg SQLConfig) string {
	var ts, p1, p2 string
	switch cfg.Driver {
	case DriverPostgres:
		ts = "to_char(Ocorrencia_Data, 'DD/MM/YYYY, HH24:MI:SS')"
		p1, p2 = "$1", "$2"
	case DriverSQLite:
		ts = "strftime('%d/%m/%Y, %H:%M:%S', Ocorrencia_Data)"
		p1, p2 = "?", "?"
	default:
		ts = "FORMAT(Ocorrencia_Data, 'dd/MM/yyyy, HH:mm:ss')"
		p1, p2 = "@p1", "@p2"
	}

	table := cfg.View
	if cfg.Schema != "" && cfg.Driver != DriverSQLite {
		table = cfg.Schema + "." + cfg.View
	}

	return "SELECT " + ts + " AS occurrence_timestamp," +
		" Separador AS handler_name," +
		" Cli_Nome AS client_name," +
		" Prod_Desc AS product_name," +
		" Pedido_Status AS order_status," +
		" Ocorrencia_Tipo AS occurrence_type," +
		" Ocorrencia_Texto AS occurrence_text," +
		" Produto_Codigo AS product_code" +
		" FROM " + table +
		" WHERE Pedido_Status = " + p1 + " AND Ocorrencia_Tipo = " + p2 +
		" ORDER BY Ocorrencia_Data DESC"
}

// BuildDSN assembles a driver-specific connection string from cfg.
func BuildDSN(cfg SQLConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	host := cfg.Server
	if cfg.Port > 0 {
		host = net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port))
	}

	switch cfg.Driver {
	case DriverSQLServer:
		q := url.Values{}
		if cfg.Database != "" {
			q.Set("database", cfg.Database)
		}
		if cfg.Timeout > 0 {
			q.Set("connection timeout", strconv.Itoa(int(cfg.Timeout.Seconds())))
		}
		u := url.URL{Scheme: "sqlserver", User: url.UserPassword(cfg.Username, cfg.Password), Host: host, RawQuery: q.Encode()}
		return u.String(), nil
	case DriverPostgres:
		q := url.Values{}
		q.Set("sslmode", "disable")
		if cfg.Timeout > 0 {
			q.Set("connect_timeout", strconv.Itoa(int(cfg.Timeout.Seconds())))
		}
		u := url.URL{Scheme: "postgres", User: url.UserPassword(cfg.Username, cfg.Password), Host: host, Path: "/" + cfg.Database, RawQuery: q.Encode()}
		return u.String(), nil
	case DriverSQLite:
		if cfg.Database == "" {
			return "", fmt.Errorf("sqlite3 requires database.name or database.dsn")
		}
		return cfg.Database, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
}
