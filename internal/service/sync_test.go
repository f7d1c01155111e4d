package service

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider"
	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/store"
)

// The stubs embed the store interfaces so only the methods a spec
// drives need an override; an unexpected call panics on the nil
// embedded interface and fails the spec.

type stubEventLogs struct {
	store.EventLogStore
	getByIDFn       func(ctx context.Context, id int64) (*model.SyncEventLog, error)
	processedIDs    []int64
	failedReasons   map[int64]string
	markProcessedFn func(ctx context.Context, id int64) error
}

func (s *stubEventLogs) GetByID(ctx context.Context, id int64) (*model.SyncEventLog, error) {
	return s.getByIDFn(ctx, id)
}

func (s *stubEventLogs) MarkProcessed(ctx context.Context, id int64) error {
	if s.markProcessedFn != nil {
		return s.markProcessedFn(ctx, id)
	}
	s.processedIDs = append(s.processedIDs, id)
	return nil
}

func (s *stubEventLogs) MarkFailed(ctx context.Context, id int64, errMsg *string) error {
	if s.failedReasons == nil {
		s.failedReasons = map[int64]string{}
	}
	reason := ""
	if errMsg != nil {
		reason = *errMsg
	}
	s.failedReasons[id] = reason
	return nil
}

type stubSyncMailboxes struct {
	store.MailboxStore
	getByIDFn  func(ctx context.Context, id int64) (*model.Mailbox, error)
	advancedTo []uint64
	pausedIDs  []int64
}

func (s *stubSyncMailboxes) GetByID(ctx context.Context, id int64) (*model.Mailbox, error) {
	return s.getByIDFn(ctx, id)
}

func (s *stubSyncMailboxes) AdvanceHistoryID(ctx context.Context, id int64, historyID uint64) error {
	s.advancedTo = append(s.advancedTo, historyID)
	return nil
}

func (s *stubSyncMailboxes) SetState(ctx context.Context, id int64, state model.MailboxState) error {
	if state == model.MailboxStatePaused {
		s.pausedIDs = append(s.pausedIDs, id)
	}
	return nil
}

func (s *stubSyncMailboxes) SetLastSyncedAt(ctx context.Context, id int64, at time.Time) error {
	return nil
}

type stubSyncCredentials struct {
	store.CredentialStore
	cred       *model.Credential
	revokedIDs []int64
}

func (s *stubSyncCredentials) GetByID(ctx context.Context, id int64) (*model.Credential, error) {
	return s.cred, nil
}

func (s *stubSyncCredentials) Revoke(ctx context.Context, id int64) error {
	s.revokedIDs = append(s.revokedIDs, id)
	return nil
}

type stubThreads struct {
	store.ThreadStore
	upserted []*model.EmailThread
}

func (s *stubThreads) Upsert(ctx context.Context, thread *model.EmailThread) error {
	s.upserted = append(s.upserted, thread)
	return nil
}

type stubMessages struct {
	store.MessageStore
	inserted []*model.EmailMessage
}

func (s *stubMessages) Insert(ctx context.Context, msg *model.EmailMessage) (bool, error) {
	s.inserted = append(s.inserted, msg)
	return true, nil
}

type stubGmail struct {
	profileFn     func(ctx context.Context) (*google.Profile, error)
	listHistoryFn func(ctx context.Context, startHistoryID uint64) ([]string, uint64, error)
	listRecentFn  func(ctx context.Context, max int64) ([]string, error)
	getMessageFn  func(ctx context.Context, id string) (*provider.EmailMessage, error)
}

func (g *stubGmail) Profile(ctx context.Context) (*google.Profile, error) {
	return g.profileFn(ctx)
}

func (g *stubGmail) ListHistory(ctx context.Context, startHistoryID uint64) ([]string, uint64, error) {
	return g.listHistoryFn(ctx, startHistoryID)
}

func (g *stubGmail) ListRecentMessageIDs(ctx context.Context, max int64) ([]string, error) {
	return g.listRecentFn(ctx, max)
}

func (g *stubGmail) GetMessage(ctx context.Context, id string) (*provider.EmailMessage, error) {
	return g.getMessageFn(ctx, id)
}

type stubTxRunner struct {
	stores *store.Stores
}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(stores *store.Stores) error) error {
	return fn(s.stores)
}

type stubProducer struct {
	enqueued []queue.TaskMessage
}

func (s *stubProducer) Enqueue(ctx context.Context, msg queue.TaskMessage) error {
	s.enqueued = append(s.enqueued, msg)
	return nil
}

func (s *stubProducer) Close() error { return nil }

var _ = Describe("SyncService", func() {
	var (
		eventLogs   *stubEventLogs
		mailboxes   *stubSyncMailboxes
		credentials *stubSyncCredentials
		threads     *stubThreads
		messages    *stubMessages
		gmail       *stubGmail
		producer    *stubProducer
		svc         *SyncService
		ctx         context.Context
	)

	const (
		eventID    = int64(500)
		mailboxID  = int64(100)
		credID     = int64(900)
		historyCur = uint64(1000)
	)

	pendingEvent := func() *model.SyncEventLog {
		return &model.SyncEventLog{ID: eventID, WorkspaceID: 200, MailboxID: mailboxID}
	}

	activeMailbox := func() *model.Mailbox {
		cursor := historyCur
		return &model.Mailbox{
			ID:            mailboxID,
			WorkspaceID:   200,
			CredentialID:  credID,
			Address:       "agent@example.com",
			Provider:      model.ProviderGmail,
			State:         model.MailboxStateActive,
			LastHistoryID: &cursor,
		}
	}

	outboundMessage := func(id string) *provider.EmailMessage {
		return &provider.EmailMessage{
			ProviderMessageID: id,
			ProviderThreadID:  "t-" + id,
			From:              "agent@example.com",
			To:                []string{"seller@example.com"},
			Subject:           "Re: 12 Elm St",
			InternalDate:      time.Now(),
		}
	}

	BeforeEach(func() {
		eventLogs = &stubEventLogs{}
		mailboxes = &stubSyncMailboxes{}
		credentials = &stubSyncCredentials{cred: &model.Credential{ID: credID, Provider: "google"}}
		threads = &stubThreads{}
		messages = &stubMessages{}
		gmail = &stubGmail{}
		producer = &stubProducer{}

		stores := &store.Stores{
			EventLogs:   eventLogs,
			Mailboxes:   mailboxes,
			Credentials: credentials,
			Threads:     threads,
			Messages:    messages,
		}
		broker := NewCredentialBroker(credentials, mailboxes, nil, nil, nil, nil)
		svc = NewSyncService(stores, &stubTxRunner{stores: stores}, broker, producer, nil)
		svc.dialGmail = func(ctx context.Context, cred *model.Credential) (gmailSyncClient, error) {
			return gmail, nil
		}
		ctx = context.Background()
	})

	Describe("ProcessEvent", func() {
		It("acks tasks whose event log row is gone", func() {
			eventLogs.getByIDFn = func(_ context.Context, id int64) (*model.SyncEventLog, error) {
				return nil, store.ErrNotFound
			}
			Expect(svc.ProcessEvent(ctx, eventID)).To(Succeed())
			Expect(eventLogs.failedReasons).To(BeEmpty())
		})

		It("skips events that were already processed", func() {
			now := time.Now()
			ev := pendingEvent()
			ev.ProcessedAt = &now
			eventLogs.getByIDFn = func(_ context.Context, id int64) (*model.SyncEventLog, error) {
				return ev, nil
			}
			Expect(svc.ProcessEvent(ctx, eventID)).To(Succeed())
			Expect(eventLogs.processedIDs).To(BeEmpty())
		})

		It("fails the event when the mailbox no longer exists", func() {
			eventLogs.getByIDFn = func(_ context.Context, id int64) (*model.SyncEventLog, error) {
				return pendingEvent(), nil
			}
			mailboxes.getByIDFn = func(_ context.Context, id int64) (*model.Mailbox, error) {
				return nil, store.ErrNotFound
			}
			Expect(svc.ProcessEvent(ctx, eventID)).To(Succeed())
			Expect(eventLogs.failedReasons).To(HaveKeyWithValue(eventID, "mailbox no longer exists"))
		})

		It("fails the event when the mailbox is paused", func() {
			eventLogs.getByIDFn = func(_ context.Context, id int64) (*model.SyncEventLog, error) {
				return pendingEvent(), nil
			}
			mailboxes.getByIDFn = func(_ context.Context, id int64) (*model.Mailbox, error) {
				mb := activeMailbox()
				mb.State = model.MailboxStatePaused
				return mb, nil
			}
			Expect(svc.ProcessEvent(ctx, eventID)).To(Succeed())
			Expect(eventLogs.failedReasons).To(HaveKeyWithValue(eventID, "mailbox is paused"))
		})

		It("revokes the credential and pauses the mailbox when the provider rejects it", func() {
			eventLogs.getByIDFn = func(_ context.Context, id int64) (*model.SyncEventLog, error) {
				return pendingEvent(), nil
			}
			mailboxes.getByIDFn = func(_ context.Context, id int64) (*model.Mailbox, error) {
				return activeMailbox(), nil
			}
			svc.dialGmail = func(ctx context.Context, cred *model.Credential) (gmailSyncClient, error) {
				return nil, provider.ErrCredentialRevoked
			}

			Expect(svc.ProcessEvent(ctx, eventID)).To(Succeed())
			Expect(credentials.revokedIDs).To(Equal([]int64{credID}))
			Expect(mailboxes.pausedIDs).To(Equal([]int64{mailboxID}))
			Expect(eventLogs.failedReasons).To(HaveKeyWithValue(eventID, "credential revoked"))
		})

		It("returns transient provider errors so the queue retries", func() {
			eventLogs.getByIDFn = func(_ context.Context, id int64) (*model.SyncEventLog, error) {
				return pendingEvent(), nil
			}
			mailboxes.getByIDFn = func(_ context.Context, id int64) (*model.Mailbox, error) {
				return activeMailbox(), nil
			}
			gmail.listHistoryFn = func(_ context.Context, start uint64) ([]string, uint64, error) {
				return nil, 0, errors.New("gmail: 503")
			}

			err := svc.ProcessEvent(ctx, eventID)
			Expect(err).To(HaveOccurred())
			Expect(eventLogs.processedIDs).To(BeEmpty())
			Expect(eventLogs.failedReasons[eventID]).To(ContainSubstring("503"))
		})

		It("drains history, persists messages, and advances the cursor", func() {
			eventLogs.getByIDFn = func(_ context.Context, id int64) (*model.SyncEventLog, error) {
				return pendingEvent(), nil
			}
			mailboxes.getByIDFn = func(_ context.Context, id int64) (*model.Mailbox, error) {
				return activeMailbox(), nil
			}
			gmail.listHistoryFn = func(_ context.Context, start uint64) ([]string, uint64, error) {
				Expect(start).To(Equal(historyCur))
				return []string{"m1", "m2"}, 2000, nil
			}
			gmail.getMessageFn = func(_ context.Context, id string) (*provider.EmailMessage, error) {
				return outboundMessage(id), nil
			}

			Expect(svc.ProcessEvent(ctx, eventID)).To(Succeed())
			Expect(threads.upserted).To(HaveLen(2))
			Expect(messages.inserted).To(HaveLen(2))
			Expect(mailboxes.advancedTo).To(Equal([]uint64{2000}))
			Expect(eventLogs.processedIDs).To(Equal([]int64{eventID}))

			Expect(producer.enqueued).To(HaveLen(2))
			Expect(producer.enqueued[0].TaskType).To(Equal(queue.TaskTypeIndexSearch))
			Expect(producer.enqueued[0].EntityType).To(Equal(queue.IndexEntityThread))
		})

		It("rebuilds the cursor from recent mail when gmail history has expired", func() {
			eventLogs.getByIDFn = func(_ context.Context, id int64) (*model.SyncEventLog, error) {
				return pendingEvent(), nil
			}
			mailboxes.getByIDFn = func(_ context.Context, id int64) (*model.Mailbox, error) {
				return activeMailbox(), nil
			}
			gmail.listHistoryFn = func(_ context.Context, start uint64) ([]string, uint64, error) {
				return nil, 0, google.ErrHistoryExpired
			}
			gmail.listRecentFn = func(_ context.Context, max int64) ([]string, error) {
				Expect(max).To(Equal(int64(backfillMessageLimit)))
				return []string{"m9"}, nil
			}
			gmail.getMessageFn = func(_ context.Context, id string) (*provider.EmailMessage, error) {
				return outboundMessage(id), nil
			}
			gmail.profileFn = func(_ context.Context) (*google.Profile, error) {
				return &google.Profile{Address: "agent@example.com", HistoryID: 7777}, nil
			}

			Expect(svc.ProcessEvent(ctx, eventID)).To(Succeed())
			Expect(messages.inserted).To(HaveLen(1))
			Expect(mailboxes.advancedTo).To(Equal([]uint64{7777}))
			Expect(eventLogs.processedIDs).To(Equal([]int64{eventID}))
		})

		It("skips messages deleted between the history entry and the fetch", func() {
			eventLogs.getByIDFn = func(_ context.Context, id int64) (*model.SyncEventLog, error) {
				return pendingEvent(), nil
			}
			mailboxes.getByIDFn = func(_ context.Context, id int64) (*model.Mailbox, error) {
				return activeMailbox(), nil
			}
			gmail.listHistoryFn = func(_ context.Context, start uint64) ([]string, uint64, error) {
				return []string{"gone", "m2"}, 2000, nil
			}
			gmail.getMessageFn = func(_ context.Context, id string) (*provider.EmailMessage, error) {
				if id == "gone" {
					return nil, errors.New("gmail: 404 message not found")
				}
				return outboundMessage(id), nil
			}

			Expect(svc.ProcessEvent(ctx, eventID)).To(Succeed())
			Expect(messages.inserted).To(HaveLen(1))
			Expect(messages.inserted[0].ProviderMessageID).To(Equal("m2"))
		})
	})

	Describe("Backfill", func() {
		It("imports recent mail and seeds the history cursor", func() {
			mb := activeMailbox()
			mb.LastHistoryID = nil
			mailboxes.getByIDFn = func(_ context.Context, id int64) (*model.Mailbox, error) {
				return mb, nil
			}
			gmail.listRecentFn = func(_ context.Context, max int64) ([]string, error) {
				return []string{"m1"}, nil
			}
			gmail.getMessageFn = func(_ context.Context, id string) (*provider.EmailMessage, error) {
				return outboundMessage(id), nil
			}
			gmail.profileFn = func(_ context.Context) (*google.Profile, error) {
				return &google.Profile{Address: "agent@example.com", HistoryID: 4242}, nil
			}

			Expect(svc.Backfill(ctx, mailboxID)).To(Succeed())
			Expect(messages.inserted).To(HaveLen(1))
			Expect(mailboxes.advancedTo).To(Equal([]uint64{4242}))
		})

		It("skips paused mailboxes", func() {
			mailboxes.getByIDFn = func(_ context.Context, id int64) (*model.Mailbox, error) {
				mb := activeMailbox()
				mb.State = model.MailboxStatePaused
				return mb, nil
			}
			Expect(svc.Backfill(ctx, mailboxID)).To(Succeed())
			Expect(messages.inserted).To(BeEmpty())
		})
	})
})
