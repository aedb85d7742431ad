package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore/account"
)

var _ account.Repository = (*Accounts)(nil)

const uniqueViolation = "23505"

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Accounts implements account.Repository backed by PostgreSQL.
type Accounts struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccounts constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccounts(exec pgExecutor) *Accounts {
	repo := &Accounts{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Open connects a pool to dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*Accounts, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewAccounts(pool), nil
}

// WithTx returns a repository instance that executes statements within tx.
func (r *Accounts) WithTx(tx pgx.Tx) *Accounts {
	if tx == nil {
		return r
	}
	return &Accounts{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Close releases the pool when the repository owns one.
func (r *Accounts) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Migrate applies Schema.
func (r *Accounts) Migrate(ctx context.Context) error {
	if _, err := r.exec.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Create inserts a new account with the same defaults as the in-memory store and
// returns the stored form.
func (r *Accounts) Create(ctx context.Context, acct *account.Account) (*account.Account, error) {
	stored := acct.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == nil {
		stored.Status = account.Active{}
	}
	if stored.TwoFactor == nil {
		stored.TwoFactor = account.TwoFactorDisabled{}
	}
	if stored.Role == "" {
		stored.Role = account.RoleCustomer
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	stored.Version = 1

	row, err := toRow(stored)
	if err != nil {
		return nil, err
	}

	sql, args, err := r.builder.Insert(Table).
		Columns(accountColumns...).
		Values(row.values()...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, account.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	stored.Email = row.Email
	return stored, nil
}

func (r *Accounts) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"email": account.NormalizeEmail(email)})
}

func (r *Accounts) FindByID(ctx context.Context, id string) (*account.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

func (r *Accounts) findOne(ctx context.Context, where squirrel.Eq) (*account.Account, error) {
	sql, args, err := r.builder.Select(accountColumns...).
		From(Table).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	var row accountRow
	if err := r.exec.QueryRow(ctx, sql, args...).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return row.toAccount()
}

// Update writes every mutable column when the stored version still equals
// acct.Version, then advances acct.Version.
func (r *Accounts) Update(ctx context.Context, acct *account.Account) error {
	row, err := toRow(acct)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Update(Table).
		SetMap(row.mutable()).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": acct.ID, "version": row.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return account.ErrDuplicateEmail
		}
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, acct.ID)
		if err != nil {
			return err
		}
		if !exists {
			return account.ErrNotFound
		}
		return account.ErrConflict
	}

	acct.Version++
	return nil
}

func (r *Accounts) RecordLogin(ctx context.Context, id string, at time.Time, ip string) error {
	sql, args, err := r.builder.Update(Table).
		Set("last_login_at", at.UTC()).
		Set("last_login_ip", ip).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

const consumeBackupCodeSQL = `UPDATE authcore_accounts
SET backup_codes = array_remove(backup_codes, $2), version = version + 1
WHERE id = $1 AND two_factor = 'enabled' AND $2 = ANY(backup_codes)
RETURNING cardinality(backup_codes)`

// ConsumeBackupCode removes digest in one conditional statement. Of any number of
// concurrent callers presenting the same digest, the row lock lets exactly one match.
func (r *Accounts) ConsumeBackupCode(ctx context.Context, id, digest string) (int, error) {
	var remaining int32
	err := r.exec.QueryRow(ctx, consumeBackupCodeSQL, id, digest).Scan(&remaining)
	if err == nil {
		return int(remaining), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("consume backup code: %w", err)
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, account.ErrNotFound
	}
	return 0, account.ErrBackupCodeNotFound
}

func (r *Accounts) exists(ctx context.Context, id string) (bool, error) {
	sql, args, err := r.builder.Select("1").
		From(Table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build account exists sql: %w", err)
	}

	var one int32
	if err := r.exec.QueryRow(ctx, sql, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select account exists: %w", err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
