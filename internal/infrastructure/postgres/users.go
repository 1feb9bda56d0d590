package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zabira-api/internal/domain"
)

const uniqueViolation = "23505"

const userColumns = `user_id, email, password_hash, referral_code, email_verified, email_otp,
	email_otp_expiry, phone_number, phone_verified, phone_otp, phone_otp_expiry,
	username, first_name, last_name, dob, created_at, updated_at`

// Columns a partial update may touch, and whether they accept NULL.
var updatable = map[string]bool{
	domain.FieldEmail:          false,
	domain.FieldPasswordHash:   false,
	domain.FieldReferralCode:   false,
	domain.FieldEmailVerified:  false,
	domain.FieldEmailOTP:       false,
	domain.FieldEmailOTPExpiry: true,
	domain.FieldPhoneNumber:    true,
	domain.FieldPhoneVerified:  false,
	domain.FieldPhoneOTP:       false,
	domain.FieldPhoneOTPExpiry: true,
	domain.FieldUsername:       false,
	domain.FieldFirstName:      false,
	domain.FieldLastName:       false,
	domain.FieldDOB:            false,
}

// UserRepo stores users in a Postgres table.
type UserRepo struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewUserRepo(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	const q = `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.db.Exec(ctx, q,
		u.UserID, u.Email, u.PasswordHash, u.ReferralCode, u.EmailVerified, u.EmailOTP,
		u.EmailOTPExpiry, u.PhoneNumber, u.PhoneVerified, u.PhoneOTP, u.PhoneOTPExpiry,
		u.Username, u.FirstName, u.LastName, u.DOB, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("email %s: %w", u.Email, domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) LIMIT 1`, email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, domain.ErrNotFound
	}
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1) LIMIT 1`, username)
}

func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	q, args, err := buildUpdate(userID, updates, r.now())
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("update user %s: %w", userID, domain.ErrConflict)
		}
		return fmt.Errorf("update user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// buildUpdate renders an UPDATE with columns in sorted order so the
// statement text is stable for the statement cache.
func buildUpdate(userID string, updates map[string]interface{}, now time.Time) (string, []interface{}, error) {
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}
	cols := make([]string, 0, len(updates))
	for k := range updates {
		nullable, ok := updatable[k]
		if !ok {
			return "", nil, fmt.Errorf("column %q is not updatable", k)
		}
		if updates[k] == nil && !nullable {
			return "", nil, fmt.Errorf("column %q cannot be null", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+2)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
		args = append(args, updates[c])
	}
	sets = append(sets, fmt.Sprintf("%s = $%d", domain.FieldUpdatedAt, len(args)+1))
	args = append(args, now)
	args = append(args, userID)

	q := fmt.Sprintf("UPDATE users SET %s WHERE user_id = $%d", strings.Join(sets, ", "), len(args))
	return q, args, nil
}

func (r *UserRepo) queryOne(ctx context.Context, q string, arg string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, q, arg).Scan(
		&u.UserID, &u.Email, &u.PasswordHash, &u.ReferralCode, &u.EmailVerified, &u.EmailOTP,
		&u.EmailOTPExpiry, &u.PhoneNumber, &u.PhoneVerified, &u.PhoneOTP, &u.PhoneOTPExpiry,
		&u.Username, &u.FirstName, &u.LastName, &u.DOB, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
