package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type userStore struct {
	q db.Querier
}

func newUserStore(q db.Querier) UserStore {
	return &userStore{q: q}
}

const userColumns = `id, name, email, avatar_url, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(s.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *userStore) UpsertByEmail(ctx context.Context, user *model.User) error {
	row, err := scanUser(s.q.QueryRow(ctx, `
		INSERT INTO users (id, name, email, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, updated_at = NOW()
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.AvatarURL))
	if err != nil {
		return err
	}
	*user = *row
	return nil
}

func (s *userStore) Update(ctx context.Context, user *model.User) error {
	row, err := scanUser(s.q.QueryRow(ctx, `
		UPDATE users SET name = $2, avatar_url = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Name, user.AvatarURL))
	if err != nil {
		return err
	}
	*user = *row
	return nil
}

type sessionStore struct {
	q db.Querier
}

func newSessionStore(q db.Querier) SessionStore {
	return &sessionStore{q: q}
}

func (s *sessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	var sess model.Session
	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()`, id).
		Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Create(ctx context.Context, sess *model.Session) error {
	return s.q.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		sess.ID, sess.UserID, sess.ExpiresAt).Scan(&sess.CreatedAt)
}

func (s *sessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *sessionStore) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (s *sessionStore) DeleteExpired(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	return err
}
