// Package postgres is the PostgreSQL user.Repository, built on pgx. Uniqueness
// of identifiers and of (user, role type) pairs is enforced by the schema.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/multiauth/user"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements user.Repository.
type Repository struct {
	db  DB
	now func() time.Time
}

var _ user.Repository = (*Repository)(nil)

// New returns a Repository over db.
func New(db DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

const selectUser = `
		SELECT u.id, u.created_at, u.updated_at, u.last_login_at,
		       c.username, c.email, c.phone, c.facebook_id, c.google_id, c.password_hash,
		       c.verified, c.last_used_at, c.additional_data
		FROM users u
		JOIN credentials c ON c.user_id = u.id`

const selectRoles = `
		SELECT user_id, type, status, expires_at, profile_id, created_at, updated_at
		FROM roles`

// CreateUserWithCredentialAndRole inserts the user, credential and role rows
// in one transaction.
func (r *Repository) CreateUserWithCredentialAndRole(ctx context.Context, p user.CreateParams) (*user.User, error) {
	if err := p.Credential.Validate(); err != nil {
		return nil, err
	}

	verified, err := encodeJSON(p.Credential.Verified)
	if err != nil {
		return nil, err
	}
	lastUsed, err := encodeJSON(lastUsedStrings(p.Credential.LastUsedAt))
	if err != nil {
		return nil, err
	}
	additional, err := encodeJSON(p.Credential.AdditionalData)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := r.now().UTC()
	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO users (created_at, updated_at) VALUES ($1, $1) RETURNING id`, now,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	c := p.Credential
	_, err = tx.Exec(ctx, `
		INSERT INTO credentials (user_id, username, email, phone, facebook_id, google_id, password_hash, verified, last_used_at, additional_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id,
		nullString(c.Username),
		nullString(c.Email),
		nullString(c.Phone),
		nullString(c.FacebookID),
		nullString(c.GoogleID),
		nullString(c.PasswordHash),
		verified,
		lastUsed,
		additional,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, user.ErrConflict
		}
		return nil, fmt.Errorf("insert credential: %w", err)
	}

	u := (&user.User{Credential: c}).Clone()
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now

	if p.Role != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO roles (user_id, type, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)`,
			id, string(p.Role), string(p.RoleStatus), now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert role: %w", err)
		}
		u.Roles = []user.Role{{UserID: id, Type: p.Role, Status: p.RoleStatus, CreatedAt: now, UpdatedAt: now}}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, user.ErrConflict
		}
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return u, nil
}

// FindByIdentifier matches value against username, then email, then phone.
func (r *Repository) FindByIdentifier(ctx context.Context, value string) (*user.User, error) {
	return r.findOne(ctx, selectUser+`
		WHERE c.username = $1 OR c.email = $1 OR c.phone = $1
		ORDER BY (c.username = $1) DESC NULLS LAST, (c.email = $1) DESC NULLS LAST
		LIMIT 1`, value)
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.findOne(ctx, selectUser+` WHERE c.username = $1`, username)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, selectUser+` WHERE c.email = $1`, email)
}

func (r *Repository) FindByPhone(ctx context.Context, phone string) (*user.User, error) {
	return r.findOne(ctx, selectUser+` WHERE c.phone = $1`, phone)
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*user.User, error) {
	return r.findOne(ctx, selectUser+` WHERE u.id = $1`, id)
}

// ExistsByIdentifier reports whether value is bound on channel ch.
func (r *Repository) ExistsByIdentifier(ctx context.Context, value string, ch user.Channel) (bool, error) {
	col, ok := channelColumn(ch)
	if !ok {
		return false, fmt.Errorf("unknown channel %q", ch)
	}
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM credentials WHERE `+col+` = $1)`, value).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check identifier: %w", err)
	}
	return exists, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.execOne(ctx, "update last login",
		`UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`, at.UTC(), id)
}

func (r *Repository) TouchChannel(ctx context.Context, id int64, ch user.Channel, at time.Time) error {
	return r.execOne(ctx, "touch channel", `
		UPDATE credentials SET last_used_at = last_used_at || jsonb_build_object($1::text, $2::text)
		WHERE user_id = $3`, string(ch), at.UTC().Format(time.RFC3339Nano), id)
}

func (r *Repository) MarkChannelVerified(ctx context.Context, id int64, ch user.Channel) error {
	return r.execOne(ctx, "mark channel verified", `
		UPDATE credentials SET verified = verified || jsonb_build_object($1::text, true)
		WHERE user_id = $2`, string(ch), id)
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.execOne(ctx, "update password hash",
		`UPDATE credentials SET password_hash = $1 WHERE user_id = $2`, hash, id)
}

// AddRole grants t to the user. A second grant of the same type returns
// user.ErrConflict; an unknown user returns user.ErrNotFound.
func (r *Repository) AddRole(ctx context.Context, id int64, t user.RoleType, s user.RoleStatus, expiresAt *time.Time) (*user.Role, error) {
	now := r.now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO roles (user_id, type, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		id, string(t), string(s), expiresAt, now,
	)
	switch {
	case isUniqueViolation(err):
		return nil, user.ErrConflict
	case isForeignKeyViolation(err):
		return nil, user.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("insert role: %w", err)
	}
	return &user.Role{UserID: id, Type: t, Status: s, ExpiresAt: expiresAt, CreatedAt: now, UpdatedAt: now}, nil
}

func (r *Repository) FindRole(ctx context.Context, id int64, t user.RoleType) (*user.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, selectRoles+` WHERE user_id = $1 AND type = $2`, id, string(t)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return role, nil
}

func (r *Repository) UpdateRoleStatus(ctx context.Context, id int64, t user.RoleType, s user.RoleStatus) (*user.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, `
		UPDATE roles SET status = $1, updated_at = $2
		WHERE user_id = $3 AND type = $4
		RETURNING user_id, type, status, expires_at, profile_id, created_at, updated_at`,
		string(s), r.now().UTC(), id, string(t),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("update role status: %w", err)
	}
	return role, nil
}

func (r *Repository) execOne(ctx context.Context, op, query string, args ...any) error {
	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// findOne loads the user row and then its roles.
func (r *Repository) findOne(ctx context.Context, query string, arg any) (*user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	rows, err := r.db.Query(ctx, selectRoles+` WHERE user_id = $1 ORDER BY created_at`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		u.Roles = append(u.Roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u                                        user.User
		username, email, phone, facebook, google *string
		hash                                     *string
		verifiedRaw, lastUsedRaw, additionalRaw  []byte
	)
	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
		&username, &email, &phone, &facebook, &google, &hash,
		&verifiedRaw, &lastUsedRaw, &additionalRaw,
	)
	if err != nil {
		return nil, err
	}

	c := &u.Credential
	c.Username = deref(username)
	c.Email = deref(email)
	c.Phone = deref(phone)
	c.FacebookID = deref(facebook)
	c.GoogleID = deref(google)
	c.PasswordHash = deref(hash)
	c.LastLoginAt = u.LastLoginAt

	c.Verified = map[user.Channel]bool{}
	if err := decodeJSON(verifiedRaw, &c.Verified); err != nil {
		return nil, fmt.Errorf("decode verified: %w", err)
	}
	lastUsed := map[user.Channel]string{}
	if err := decodeJSON(lastUsedRaw, &lastUsed); err != nil {
		return nil, fmt.Errorf("decode last_used_at: %w", err)
	}
	c.LastUsedAt = make(map[user.Channel]time.Time, len(lastUsed))
	for ch, s := range lastUsed {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("decode last_used_at[%s]: %w", ch, err)
		}
		c.LastUsedAt[ch] = ts
	}
	if err := decodeJSON(additionalRaw, &c.AdditionalData); err != nil {
		return nil, fmt.Errorf("decode additional_data: %w", err)
	}
	return &u, nil
}

func scanRole(row pgx.Row) (*user.Role, error) {
	var (
		role        user.Role
		typ, status string
		profileID   *string
	)
	if err := row.Scan(&role.UserID, &typ, &status, &role.ExpiresAt, &profileID, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	role.Type = user.RoleType(typ)
	role.Status = user.RoleStatus(status)
	role.ProfileID = deref(profileID)
	return &role, nil
}

func channelColumn(ch user.Channel) (string, bool) {
	switch ch {
	case user.ChannelUsername:
		return "username", true
	case user.ChannelEmail:
		return "email", true
	case user.ChannelPhone:
		return "phone", true
	case user.ChannelFacebook:
		return "facebook_id", true
	case user.ChannelGoogle:
		return "google_id", true
	}
	return "", false
}

func lastUsedStrings(m map[user.Channel]time.Time) map[user.Channel]string {
	out := make(map[user.Channel]string, len(m))
	for ch, t := range m {
		out[ch] = t.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func encodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	if string(b) == "null" {
		return []byte("{}"), nil
	}
	return b, nil
}

func decodeJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isUniqueViolation(err error) bool {
	return hasSQLState(err, "23505")
}

func isForeignKeyViolation(err error) bool {
	return hasSQLState(err, "23503")
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
