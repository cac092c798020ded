package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ledgerdesk/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetUser implements store.Users
func (r *SQLiteRepository) GetUser(ctx context.Context) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, profile_picture_url, company_logo_url
		FROM users ORDER BY id LIMIT 1`).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.ProfilePictureURL, &u.CompanyLogoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SaveUser implements store.Users
func (r *SQLiteRepository) SaveUser(ctx context.Context, u core.User) (core.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, profile_picture_url, company_logo_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			profile_picture_url = excluded.profile_picture_url,
			company_logo_url = excluded.company_logo_url`,
		u.ID, u.Name, u.Email, string(u.Role), u.ProfilePictureURL, u.CompanyLogoURL)
	if err != nil {
		return core.User{}, fmt.Errorf("save user: %w", err)
	}
	slog.InfoContext(ctx, "User saved to SQLite", "id", u.ID)
	return u, nil
}

// ListAgents implements store.Agents
func (r *SQLiteRepository) ListAgents(ctx context.Context) ([]core.Agent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM agents ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	out := []core.Agent{}
	for rows.Next() {
		var a core.Agent
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const retailerColumns = `id, name, partner_id, pending_balance, last_collection_date`

// ListRetailers implements store.Retailers
func (r *SQLiteRepository) ListRetailers(ctx context.Context) ([]core.Retailer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+retailerColumns+` FROM retailers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list retailers: %w", err)
	}
	defer rows.Close()

	out := []core.Retailer{}
	for rows.Next() {
		ret, err := scanRetailer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ret)
	}
	return out, rows.Err()
}

// GetRetailer implements store.Retailers
func (r *SQLiteRepository) GetRetailer(ctx context.Context, id string) (core.Retailer, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+retailerColumns+` FROM retailers WHERE id = ?`, id)
	ret, err := scanRetailer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Retailer{}, false, nil
	}
	if err != nil {
		return core.Retailer{}, false, err
	}
	return ret, true, nil
}

// CreateRetailer implements store.Retailers
func (r *SQLiteRepository) CreateRetailer(ctx context.Context, ret core.Retailer) (core.Retailer, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Retailer{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSequence(ctx, tx, "retailer")
	if err != nil {
		return core.Retailer{}, err
	}
	ret.ID = fmt.Sprintf("R%03d", seq)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO retailers (id, position, name, partner_id, pending_balance, last_collection_date)
		VALUES (?, (SELECT COALESCE(MIN(position), 1) - 1 FROM retailers), ?, ?, ?, ?)`,
		ret.ID, ret.Name, ret.PartnerID, ret.PendingBalance, nullDate(ret.LastCollectionDate))
	if err != nil {
		return core.Retailer{}, fmt.Errorf("insert retailer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Retailer{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Retailer saved to SQLite", "id", ret.ID, "name", ret.Name)
	return ret, nil
}

// ReplaceRetailer implements store.Retailers
func (r *SQLiteRepository) ReplaceRetailer(ctx context.Context, ret core.Retailer) (core.Retailer, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE retailers
		SET name = ?, partner_id = ?, pending_balance = ?, last_collection_date = ?
		WHERE id = ?`,
		ret.Name, ret.PartnerID, ret.PendingBalance, nullDate(ret.LastCollectionDate), ret.ID)
	if err != nil {
		return core.Retailer{}, fmt.Errorf("update retailer: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.Retailer{}, err
	}
	return ret, nil
}

// DeleteRetailer implements store.Retailers
func (r *SQLiteRepository) DeleteRetailer(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM retailers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete retailer: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Retailer deleted from SQLite", "id", id)
	return nil
}

// ListTransactions implements store.Transactions
func (r *SQLiteRepository) ListTransactions(ctx context.Context, retailerID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, retailer_id, type, occurred_at, amount, commission_rate
		FROM transactions
		WHERE ? = '' OR retailer_id = ?
		ORDER BY occurred_at DESC, seq DESC`, retailerID, retailerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		var (
			t  core.Transaction
			at string
		)
		if err := rows.Scan(&t.ID, &t.RetailerID, &t.Type, &at, &t.Amount, &t.CommissionRate); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Time, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse transaction %s time: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTransaction implements store.Transactions
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSequence(ctx, tx, "transaction")
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = fmt.Sprintf("T%03d", seq)
	t.Time = t.Time.UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, seq, retailer_id, type, occurred_at, amount, commission_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, seq, t.RetailerID, string(t.Type), t.Time.Format(timeLayout), t.Amount, t.CommissionRate)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"retailer_id", t.RetailerID,
		"amount", t.Amount.String())
	return t, nil
}

// ReplaceTransaction implements store.Transactions
func (r *SQLiteRepository) ReplaceTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Time = t.Time.UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET retailer_id = ?, type = ?, occurred_at = ?, amount = ?, commission_rate = ?
		WHERE id = ?`,
		t.RetailerID, string(t.Type), t.Time.Format(timeLayout), t.Amount, t.CommissionRate, t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// ListCollections implements store.Collections
func (r *SQLiteRepository) ListCollections(ctx context.Context, retailerID string) ([]core.Collection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, retailer_id, agent_id, amount, method, status, date, proof_url
		FROM collections
		WHERE ? = '' OR retailer_id = ?
		ORDER BY position`, retailerID, retailerID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	out := []core.Collection{}
	for rows.Next() {
		var (
			c   core.Collection
			day string
		)
		if err := rows.Scan(&c.ID, &c.RetailerID, &c.AgentID, &c.Amount, &c.Method, &c.Status, &day, &c.ProofURL); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		if c.Date, err = core.ParseDate(day); err != nil {
			return nil, fmt.Errorf("parse collection %s date: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRetailer(s rowScanner) (core.Retailer, error) {
	var (
		ret core.Retailer
		lc  sql.NullString
	)
	if err := s.Scan(&ret.ID, &ret.Name, &ret.PartnerID, &ret.PendingBalance, &lc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Retailer{}, err
		}
		return core.Retailer{}, fmt.Errorf("scan retailer: %w", err)
	}
	if lc.Valid && lc.String != "" {
		d, err := core.ParseDate(lc.String)
		if err != nil {
			return core.Retailer{}, fmt.Errorf("parse retailer %s last collection date: %w", ret.ID, err)
		}
		ret.LastCollectionDate = &d
	}
	return ret, nil
}

func nextSequence(ctx context.Context, tx *sql.Tx, name string) (int, error) {
	var seq int
	err := tx.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`, name).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", name, err)
	}
	return seq, nil
}

func nullDate(d *core.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
