package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresStore persists users with pgx.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectUser = `SELECT id,name,email,phone,password_hash,profile_picture,created_at FROM users`

// GetUserByEmail implements Store.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, selectUser+` WHERE email=$1`, email))
}

// GetUserByID implements Store.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, selectUser+` WHERE id=$1`, id))
}

// RegisterUser implements Store.
func (s *PostgresStore) RegisterUser(ctx context.Context, u *User) (RegisterResult, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (id,name,email,phone,password_hash,profile_picture)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.ProfilePicture).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateResult(), nil
		}
		return RegisterResult{}, fmt.Errorf("insert user: %w", err)
	}
	return registeredResult(u), nil
}

// UpdateProfile implements Store.
func (s *PostgresStore) UpdateProfile(ctx context.Context, u *User) error {
	err := s.db.QueryRow(ctx,
		`UPDATE users SET name=$1, email=$2, phone=$3, profile_picture=$4
		 WHERE id=$5 RETURNING password_hash, created_at`,
		u.Name, u.Email, u.Phone, u.ProfilePicture, u.ID).Scan(&u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdatePassword implements Store.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id, hash string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAllUsers implements Store.
func (s *PostgresStore) GetAllUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx, selectUser+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.ProfilePicture, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
