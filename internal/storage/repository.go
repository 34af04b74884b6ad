package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finplan/internal/core"
	"finplan/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a journal entry does not exist.
var ErrNotFound = errors.New("journal entry not found")

// Kind of a journalled record.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Entry is one successfully submitted income or expense.
type Entry struct {
	ID            string
	Kind          Kind
	Amount        decimal.Decimal
	Ref           string
	PaymentMethod string
	Date          core.Date
	Description   string
	SubmittedAt   time.Time
	ExportedAt    *time.Time
	SheetsRef     string
}

// Exported reports whether the entry has reached the spreadsheet.
func (e Entry) Exported() bool {
	return e.ExportedAt != nil
}

// IncomeEntry journals an income.
func IncomeEntry(in core.Income) Entry {
	return Entry{
		Kind:        KindIncome,
		Amount:      in.Amount,
		Ref:         in.SourceName(),
		Date:        in.Date,
		Description: in.Description,
	}
}

// ExpenseEntry journals an expense.
func ExpenseEntry(ex core.Expense) Entry {
	return Entry{
		Kind:          KindExpense,
		Amount:        ex.Amount,
		Ref:           ex.CategoryName(),
		PaymentMethod: ex.PaymentMethod,
		Date:          ex.Date,
		Description:   ex.Description,
	}
}

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Record stores e, assigning an ID and submission time when missing.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO journal_entries
			(id, kind, amount, ref, payment_method, entry_date, description, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Amount.String(), e.Ref, e.PaymentMethod,
		e.Date.String(), e.Description, formatTime(e.SubmittedAt),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert journal entry: %w", err)
	}

	r.logger.InfoContext(ctx, "Record journalled",
		log.FieldRecordID, e.ID,
		log.FieldRecordKind, string(e.Kind),
		log.FieldAmount, e.Amount.StringFixed(2),
		log.FieldCategorical, e.Ref,
	)
	return e, nil
}

const selectEntry = `
	SELECT id, kind, amount, ref, payment_method, entry_date, description,
	       submitted_at, exported_at, sheets_ref
	FROM journal_entries`

func (r *SQLiteRepository) Get(ctx context.Context, id string) (Entry, error) {
	row := r.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get journal entry: %w", err)
	}
	return e, nil
}

// ListRecent returns the newest entries first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectEntry+` ORDER BY submitted_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	return collect(rows)
}

// ListUnexported returns entries not yet exported, oldest first.
func (r *SQLiteRepository) ListUnexported(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		selectEntry+` WHERE exported_at IS NULL ORDER BY submitted_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported entries: %w", err)
	}
	return collect(rows)
}

// MarkExported records where the entry landed in the spreadsheet.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id, sheetsRef string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE journal_entries SET exported_at = ?, sheets_ref = ? WHERE id = ?`,
		formatTime(r.now().UTC()), sheetsRef, id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                       Entry
		kind, amount, date, sub string
		exported                sql.NullString
	)
	if err := s.Scan(&e.ID, &kind, &amount, &e.Ref, &e.PaymentMethod, &date,
		&e.Description, &sub, &exported, &e.SheetsRef); err != nil {
		return Entry{}, err
	}

	e.Kind = Kind(kind)
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Entry{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	e.Amount = d
	if e.Date, err = core.ParseDate(date); err != nil {
		return Entry{}, fmt.Errorf("parse entry date %q: %w", date, err)
	}
	if e.SubmittedAt, err = parseTime(sub); err != nil {
		return Entry{}, err
	}
	if exported.Valid {
		t, err := parseTime(exported.String)
		if err != nil {
			return Entry{}, err
		}
		e.ExportedAt = &t
	}
	return e, nil
}

func collect(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return out, nil
}

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
