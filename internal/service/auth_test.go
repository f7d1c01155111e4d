package service_test

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/service"
	"leadmap.app/server/internal/store"
)

const testJWTSecret = "auth-test-secret"

// signToken mints a token the same way the service does, so tests can
// exercise Authenticate without going through the OAuth exchange.
func signToken(secret string, userID, sessionID int64, expiresAt time.Time) string {
	claims := jwt.MapClaims{
		"uid": userID,
		"sid": sessionID,
		"iat": jwt.NewNumericDate(time.Now()),
		"exp": jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	Expect(err).NotTo(HaveOccurred())
	return signed
}

var _ = Describe("AuthService", func() {
	var (
		users    *mockUserStore
		sessions *mockSessionStore
		svc      *service.AuthService
		ctx      context.Context
	)

	BeforeEach(func() {
		users = &mockUserStore{}
		sessions = &mockSessionStore{}
		stores := &store.Stores{Users: users, Sessions: sessions}
		svc = service.NewAuthService(stores, nil, testJWTSecret, 15*time.Minute, 30*24*time.Hour, nil)
		ctx = context.Background()
	})

	validBackingStores := func() {
		sessions.getValidFn = func(_ context.Context, sessionID int64) (*model.Session, error) {
			Expect(sessionID).To(Equal(int64(77)))
			return &model.Session{ID: 77, UserID: 42, ExpiresAt: time.Now().Add(time.Hour)}, nil
		}
		users.getByIDFn = func(_ context.Context, userID int64) (*model.User, error) {
			Expect(userID).To(Equal(int64(42)))
			return &model.User{ID: 42, Email: "agent@example.com"}, nil
		}
	}

	Describe("Authenticate", func() {
		It("resolves a valid token to its user", func() {
			validBackingStores()
			token := signToken(testJWTSecret, 42, 77, time.Now().Add(time.Minute))

			user, err := svc.Authenticate(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).To(Equal(int64(42)))
			Expect(user.Email).To(Equal("agent@example.com"))
		})

		It("rejects an expired token", func() {
			validBackingStores()
			token := signToken(testJWTSecret, 42, 77, time.Now().Add(-time.Minute))

			_, err := svc.Authenticate(ctx, token)
			Expect(err).To(MatchError(service.ErrInvalidToken))
		})

		It("rejects a token signed with another secret", func() {
			validBackingStores()
			token := signToken("some-other-secret", 42, 77, time.Now().Add(time.Minute))

			_, err := svc.Authenticate(ctx, token)
			Expect(err).To(MatchError(service.ErrInvalidToken))
		})

		It("rejects garbage tokens", func() {
			_, err := svc.Authenticate(ctx, "not-a-jwt")
			Expect(err).To(MatchError(service.ErrInvalidToken))
		})

		It("rejects a token whose session is gone", func() {
			users.getByIDFn = func(context.Context, int64) (*model.User, error) {
				return &model.User{ID: 42}, nil
			}
			token := signToken(testJWTSecret, 42, 77, time.Now().Add(time.Minute))

			_, err := svc.Authenticate(ctx, token)
			Expect(err).To(MatchError(service.ErrInvalidToken))
		})

		It("rejects a token whose user is gone", func() {
			sessions.getValidFn = func(context.Context, int64) (*model.Session, error) {
				return &model.Session{ID: 77, UserID: 42}, nil
			}
			token := signToken(testJWTSecret, 42, 77, time.Now().Add(time.Minute))

			_, err := svc.Authenticate(ctx, token)
			Expect(err).To(MatchError(service.ErrInvalidToken))
		})
	})

	Describe("RefreshToken", func() {
		It("issues a fresh token bound to the same session", func() {
			validBackingStores()
			token := signToken(testJWTSecret, 42, 77, time.Now().Add(time.Minute))

			result, err := svc.RefreshToken(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.User.ID).To(Equal(int64(42)))
			Expect(result.AccessToken).NotTo(BeEmpty())
			Expect(result.ExpiresAt).To(BeTemporally(">", time.Now()))

			// The refreshed token must itself authenticate.
			user, err := svc.Authenticate(ctx, result.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).To(Equal(int64(42)))
		})

		It("refuses to refresh an invalid token", func() {
			_, err := svc.RefreshToken(ctx, "not-a-jwt")
			Expect(err).To(MatchError(service.ErrInvalidToken))
		})
	})

	Describe("SignOut", func() {
		It("deletes the session behind the token", func() {
			var deleted int64
			sessions.deleteFn = func(_ context.Context, sessionID int64) error {
				deleted = sessionID
				return nil
			}
			token := signToken(testJWTSecret, 42, 77, time.Now().Add(time.Minute))

			Expect(svc.SignOut(ctx, token)).To(Succeed())
			Expect(deleted).To(Equal(int64(77)))
		})

		It("rejects malformed tokens", func() {
			Expect(svc.SignOut(ctx, "not-a-jwt")).To(MatchError(service.ErrInvalidToken))
		})
	})
})
