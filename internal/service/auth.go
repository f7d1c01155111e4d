package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"leadmap.app/server/common/id"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/store"
)

const userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var ErrInvalidToken = errors.New("invalid or expired token")

// sessionClaims binds an access token to both the user and the server
// side session row, so sign-out invalidates outstanding tokens.
type sessionClaims struct {
	UserID    int64 `json:"uid"`
	SessionID int64 `json:"sid"`
	jwt.RegisteredClaims
}

// AuthResult is a completed sign-in.
type AuthResult struct {
	User        *model.User `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// AuthService signs users in with Google and issues short-lived JWTs
// backed by server-side sessions.
type AuthService struct {
	stores      *store.Stores
	signInOAuth *oauth2.Config
	jwtSecret   []byte
	accessTTL   time.Duration
	sessionTTL  time.Duration
	logger      *slog.Logger
}

func NewAuthService(stores *store.Stores, signInOAuth *oauth2.Config, jwtSecret string, accessTTL, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		stores:      stores,
		signInOAuth: signInOAuth,
		jwtSecret:   []byte(jwtSecret),
		accessTTL:   accessTTL,
		sessionTTL:  sessionTTL,
		logger:      logger,
	}
}

// SignInURL starts the Google sign-in flow.
func (s *AuthService) SignInURL(state string) string {
	return google.AuthCodeURL(s.signInOAuth, state)
}

// HandleGoogleCallback finishes sign-in: exchanges the code, upserts
// the user from the Google profile, and opens a session.
func (s *AuthService) HandleGoogleCallback(ctx context.Context, code string) (*AuthResult, error) {
	token, err := google.Exchange(ctx, s.signInOAuth, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:        id.New(),
		Name:      profile.Name,
		Email:     profile.Email,
		AvatarURL: profile.Picture,
	}
	if err := s.stores.Users.UpsertByEmail(ctx, user); err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}

	session := &model.Session{
		ID:        id.New(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.stores.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	accessToken, expiresAt, err := s.issueToken(user.ID, session.ID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user signed in", "user_id", user.ID)
	return &AuthResult{User: user, AccessToken: accessToken, ExpiresAt: expiresAt}, nil
}

type googleProfile struct {
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Picture *string `json:"picture"`
}

func (s *AuthService) fetchProfile(ctx context.Context, token *oauth2.Token) (*googleProfile, error) {
	client := s.signInOAuth.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	if profile.Email == "" {
		return nil, errors.New("userinfo response has no email")
	}
	return &profile, nil
}

func (s *AuthService) issueToken(userID, sessionID int64) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.accessTTL)
	claims := sessionClaims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// RefreshToken issues a fresh access token against a still-valid
// session.
func (s *AuthService) RefreshToken(ctx context.Context, tokenString string) (*AuthResult, error) {
	user, claims, err := s.authenticate(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := s.issueToken(user.ID, claims.SessionID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: accessToken, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to its user. Tokens whose
// session was deleted or expired are rejected.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	user, _, err := s.authenticate(ctx, tokenString)
	return user, err
}

func (s *AuthService) authenticate(ctx context.Context, tokenString string) (*model.User, *sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	if _, err := s.stores.Sessions.GetValid(ctx, claims.SessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("loading session: %w", err)
	}

	user, err := s.stores.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("loading user: %w", err)
	}
	return user, claims, nil
}

// SignOut deletes the session behind a token. Outstanding JWTs stop
// working on their next session check.
func (s *AuthService) SignOut(ctx context.Context, tokenString string) error {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return ErrInvalidToken
	}
	return s.stores.Sessions.Delete(ctx, claims.SessionID)
}

// CleanupExpiredSessions removes expired session rows. Called on a cron.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) error {
	return s.stores.Sessions.DeleteExpired(ctx)
}
