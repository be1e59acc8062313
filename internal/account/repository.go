package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/accounts/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, acc Account) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, id string, input UpdateInput) (*Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, since time.Time) (Stats, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db dbtx
}

// NewRepository constructs a PostgreSQL repository over a pool or transaction.
func NewRepository(db dbtx) *PGRepository {
	return &PGRepository{db: db}
}

const accountColumns = `id, name, email, password_hash, role, postal_code, region, locality, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		acc  Account
		role string
	)
	if err := row.Scan(
		&acc.ID,
		&acc.Name,
		&acc.Email,
		&acc.PasswordHash,
		&role,
		&acc.PostalCode,
		&acc.Region,
		&acc.Locality,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := shared.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", acc.ID, err)
	}
	acc.Role = parsed
	return &acc, nil
}

// FindByEmail fetches an account by its normalized email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil {
		return nil, translate(err)
	}
	return acc, nil
}

// FindByID fetches an account by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return acc, nil
}

// Create inserts a new account. A duplicate email yields shared.ErrEmailInUse.
func (r *PGRepository) Create(ctx context.Context, acc Account) (*Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (id, name, email, password_hash, role, postal_code, region, locality)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+accountColumns,
		acc.ID, acc.Name, acc.Email, acc.PasswordHash, string(acc.Role), acc.PostalCode, acc.Region, acc.Locality)
	created, err := scanAccount(row)
	if err != nil {
		return nil, translate(err)
	}
	return created, nil
}

// List returns every account, newest first.
func (r *PGRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Update changes name and email. The role is never touched.
func (r *PGRepository) Update(ctx context.Context, id string, input UpdateInput) (*Account, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts SET name = $2, email = $3, updated_at = now()
WHERE id = $1
RETURNING `+accountColumns, id, input.Name, input.Email)
	updated, err := scanAccount(row)
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

// UpdatePasswordHash replaces the stored hash.
func (r *PGRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an account. Returns shared.ErrNotFound if nothing was deleted.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Stats counts accounts by role and those created since the given instant.
func (r *PGRepository) Stats(ctx context.Context, since time.Time) (Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `SELECT
	count(*),
	count(*) FILTER (WHERE role = 'ADMIN'),
	count(*) FILTER (WHERE created_at >= $1)
FROM accounts`, since).Scan(&s.Total, &s.Admins, &s.Recent)
	if err != nil {
		return Stats{}, err
	}
	s.Members = s.Total - s.Admins
	return s, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return shared.ErrEmailInUse
		case pgerrcode.InvalidTextRepresentation:
			// Malformed UUIDs cannot name an existing row.
			return shared.ErrNotFound
		}
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
