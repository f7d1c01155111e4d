package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider"
	"leadmap.app/server/internal/service"
)

var _ = Describe("CredentialBroker", func() {
	var (
		credentials *mockCredentialStore
		mailboxes   *mockMailboxStore
		broker      *service.CredentialBroker
		ctx         context.Context

		revokedIDs []int64
		pausedIDs  []int64
	)

	cred := &model.Credential{ID: 900, Provider: "gmail"}

	BeforeEach(func() {
		revokedIDs = nil
		pausedIDs = nil
		credentials = &mockCredentialStore{
			revokeFn: func(_ context.Context, id int64) error {
				revokedIDs = append(revokedIDs, id)
				return nil
			},
		}
		mailboxes = &mockMailboxStore{
			setStateFn: func(_ context.Context, id int64, state model.MailboxState) error {
				Expect(state).To(Equal(model.MailboxStatePaused))
				pausedIDs = append(pausedIDs, id)
				return nil
			},
		}
		broker = service.NewCredentialBroker(credentials, mailboxes, nil, nil, nil, nil)
		ctx = context.Background()
	})

	Describe("MarkRevoked", func() {
		It("pauses the named mailbox", func() {
			mailboxID := int64(100)

			err := broker.MarkRevoked(ctx, cred, &mailboxID)
			Expect(err).To(MatchError(provider.ErrCredentialRevoked))
			Expect(revokedIDs).To(Equal([]int64{900}))
			Expect(pausedIDs).To(Equal([]int64{100}))
		})

		It("resolves and pauses the credential's mailboxes when none is named", func() {
			mailboxes.listByCredentialFn = func(_ context.Context, credentialID int64) ([]model.Mailbox, error) {
				Expect(credentialID).To(Equal(int64(900)))
				return []model.Mailbox{{ID: 100}, {ID: 101}}, nil
			}

			err := broker.MarkRevoked(ctx, cred, nil)
			Expect(err).To(MatchError(provider.ErrCredentialRevoked))
			Expect(revokedIDs).To(Equal([]int64{900}))
			Expect(pausedIDs).To(Equal([]int64{100, 101}))
		})
	})
})
