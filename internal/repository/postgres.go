package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallbiznis/orgauth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository = (*PostgresUserRepo)(nil)
	_ OrgRepository  = (*PostgresOrgRepo)(nil)
	_ KeyRepository  = (*PostgresKeyRepo)(nil)
)

const uniqueViolation = "23505"

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const insertUserSQL = `
INSERT INTO users (id, email, first_name, last_name, password_hash, phone, is_active, is_staff)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, email, first_name, last_name, password_hash, phone, is_active, is_staff, created_at, updated_at`

// Create inserts the user. The unique index on email is the authoritative
// duplicate guard; a violation maps to domain.ErrDuplicateEmail so concurrent
// registrations resolve in the store, not the application layer.
func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Phone,
		user.IsActive,
		user.IsStaff,
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.User{}, domain.ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

const selectUserSQL = `
SELECT id, email, first_name, last_name, password_hash, phone, is_active, is_staff, created_at, updated_at
FROM users`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+" WHERE email = $1", email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+" WHERE id = $1", userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.Phone,
		&u.IsActive,
		&u.IsStaff,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// PostgresOrgRepo implements OrgRepository on pgx.
type PostgresOrgRepo struct {
	db *pgxpool.Pool
}

func NewPostgresOrgRepo(pool *pgxpool.Pool) *PostgresOrgRepo {
	return &PostgresOrgRepo{db: pool}
}

const insertOrgSQL = `
INSERT INTO organisations (id, name, description)
VALUES ($1, $2, $3)
RETURNING id, name, description, created_at, updated_at`

const insertMemberSQL = `
INSERT INTO organisation_members (id, organisation_id, user_id)
VALUES ($1, $2, $3)
ON CONFLICT (organisation_id, user_id) DO NOTHING`

func (r *PostgresOrgRepo) Create(ctx context.Context, org domain.Organisation, founder domain.Membership) (domain.Organisation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Organisation{}, fmt.Errorf("begin org create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, insertOrgSQL, org.ID, org.Name, org.Description)
	created, err := scanOrg(row)
	if err != nil {
		return domain.Organisation{}, fmt.Errorf("insert organisation: %w", err)
	}

	if _, err := tx.Exec(ctx, insertMemberSQL, founder.ID, created.ID, founder.UserID); err != nil {
		return domain.Organisation{}, fmt.Errorf("insert founder membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Organisation{}, fmt.Errorf("commit org create: %w", err)
	}
	return created, nil
}

const selectOrgSQL = `
SELECT id, name, description, created_at, updated_at
FROM organisations`

func (r *PostgresOrgRepo) GetByID(ctx context.Context, orgID string) (domain.Organisation, error) {
	row := r.db.QueryRow(ctx, selectOrgSQL+" WHERE id = $1", orgID)
	org, err := scanOrg(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Organisation{}, domain.ErrNotFound
		}
		return domain.Organisation{}, fmt.Errorf("get organisation: %w", err)
	}
	return org, nil
}

func (r *PostgresOrgRepo) ListForUser(ctx context.Context, userID string) ([]domain.Organisation, error) {
	const query = `
SELECT o.id, o.name, o.description, o.created_at, o.updated_at
FROM organisations o
JOIN organisation_members m ON m.organisation_id = o.id
WHERE m.user_id = $1
ORDER BY o.created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list organisations: %w", err)
	}
	defer rows.Close()

	orgs := make([]domain.Organisation, 0)
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organisation: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list organisations: %w", err)
	}
	return orgs, nil
}

func (r *PostgresOrgRepo) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM organisation_members
	WHERE organisation_id = $1 AND user_id = $2
)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, orgID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (r *PostgresOrgRepo) AddMember(ctx context.Context, member domain.Membership) error {
	if _, err := r.db.Exec(ctx, insertMemberSQL, member.ID, member.OrgID, member.UserID); err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (r *PostgresOrgRepo) CountMembers(ctx context.Context, orgID string) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM organisation_members WHERE organisation_id = $1`, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func scanOrg(row pgx.Row) (domain.Organisation, error) {
	var o domain.Organisation
	err := row.Scan(&o.ID, &o.Name, &o.Description, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// PostgresKeyRepo implements KeyRepository on pgx.
type PostgresKeyRepo struct {
	db *pgxpool.Pool
}

func NewPostgresKeyRepo(pool *pgxpool.Pool) *PostgresKeyRepo {
	return &PostgresKeyRepo{db: pool}
}

func (r *PostgresKeyRepo) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	const query = `
SELECT id, kid, secret, algorithm, is_active, created_at, rotated_at
FROM signing_keys
WHERE is_active
ORDER BY created_at DESC
LIMIT 1`

	var key domain.SigningKey
	err := r.db.QueryRow(ctx, query).Scan(
		&key.ID,
		&key.KID,
		&key.Secret,
		&key.Algorithm,
		&key.IsActive,
		&key.CreatedAt,
		&key.RotatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SigningKey{}, domain.ErrNotFound
		}
		return domain.SigningKey{}, fmt.Errorf("get signing key: %w", err)
	}
	return key, nil
}

func (r *PostgresKeyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	const query = `
INSERT INTO signing_keys (id, kid, secret, algorithm, is_active)
VALUES ($1, $2, $3, $4, true)
RETURNING created_at`

	created := key
	created.IsActive = true
	if err := r.db.QueryRow(ctx, query, key.ID, key.KID, key.Secret, key.Algorithm).Scan(&created.CreatedAt); err != nil {
		return domain.SigningKey{}, fmt.Errorf("insert signing key: %w", err)
	}
	return created, nil
}
