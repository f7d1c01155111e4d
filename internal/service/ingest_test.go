package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/provider/msgraph"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/service"
	"leadmap.app/server/internal/store"
)

var _ = Describe("IngestService", func() {
	var (
		mailboxes *mockMailboxStore
		eventLogs *mockEventLogStore
		producer  *mockProducer
		svc       *service.IngestService
		ctx       context.Context
	)

	activeMailbox := func() *model.Mailbox {
		return &model.Mailbox{
			ID:          100,
			WorkspaceID: 200,
			Address:     "agent@example.com",
			Provider:    model.ProviderGmail,
			State:       model.MailboxStateActive,
		}
	}

	BeforeEach(func() {
		mailboxes = &mockMailboxStore{}
		eventLogs = &mockEventLogStore{}
		producer = &mockProducer{}
		txRunner := &mockTxRunner{stores: &store.Stores{EventLogs: eventLogs}}
		svc = service.NewIngestService(mailboxes, txRunner, producer, nil)
		ctx = context.Background()
	})

	Describe("HandleGmailNotification", func() {
		notification := google.Notification{
			EmailAddress: "agent@example.com",
			HistoryID:    4242,
		}

		It("records the event and enqueues a sync task", func() {
			mailboxes.getByProviderAddressFn = func(_ context.Context, provider model.Provider, address string) (*model.Mailbox, error) {
				Expect(provider).To(Equal(model.ProviderGmail))
				Expect(address).To(Equal("agent@example.com"))
				return activeMailbox(), nil
			}
			eventLogs.insertFn = func(_ context.Context, ev *model.SyncEventLog) (bool, error) {
				Expect(ev.DedupeKey).NotTo(BeEmpty())
				Expect(ev.MailboxID).To(Equal(int64(100)))
				ev.ID = 555
				return true, nil
			}

			result, err := svc.HandleGmailNotification(ctx, notification, "pubsub-msg-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).NotTo(BeNil())
			Expect(result.EventLogID).To(Equal(int64(555)))
			Expect(result.Duplicated).To(BeFalse())

			Expect(producer.enqueued).To(HaveLen(1))
			task := producer.enqueued[0]
			Expect(task.TaskType).To(Equal(queue.TaskTypeMailboxSync))
			Expect(*task.EventLogID).To(Equal(int64(555)))
			Expect(*task.MailboxID).To(Equal(int64(100)))
			Expect(*task.WorkspaceID).To(Equal(int64(200)))
		})

		It("drops notifications for unknown mailboxes", func() {
			result, err := svc.HandleGmailNotification(ctx, notification, "pubsub-msg-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("drops notifications for paused mailboxes", func() {
			mailboxes.getByProviderAddressFn = func(context.Context, model.Provider, string) (*model.Mailbox, error) {
				mb := activeMailbox()
				mb.State = model.MailboxStatePaused
				return mb, nil
			}

			result, err := svc.HandleGmailNotification(ctx, notification, "pubsub-msg-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("drops notifications at or behind the stored history cursor", func() {
			mailboxes.getByProviderAddressFn = func(context.Context, model.Provider, string) (*model.Mailbox, error) {
				mb := activeMailbox()
				cursor := uint64(5000)
				mb.LastHistoryID = &cursor
				return mb, nil
			}

			result, err := svc.HandleGmailNotification(ctx, notification, "pubsub-msg-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("does not enqueue for a duplicate delivery", func() {
			mailboxes.getByProviderAddressFn = func(context.Context, model.Provider, string) (*model.Mailbox, error) {
				return activeMailbox(), nil
			}
			eventLogs.insertFn = func(context.Context, *model.SyncEventLog) (bool, error) {
				return false, nil
			}

			result, err := svc.HandleGmailNotification(ctx, notification, "pubsub-msg-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).NotTo(BeNil())
			Expect(result.Duplicated).To(BeTrue())
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("produces the same dedupe key for a redelivered notification", func() {
			mailboxes.getByProviderAddressFn = func(context.Context, model.Provider, string) (*model.Mailbox, error) {
				return activeMailbox(), nil
			}
			var keys []string
			eventLogs.insertFn = func(_ context.Context, ev *model.SyncEventLog) (bool, error) {
				keys = append(keys, ev.DedupeKey)
				return true, nil
			}

			_, err := svc.HandleGmailNotification(ctx, notification, "delivery-1")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.HandleGmailNotification(ctx, notification, "delivery-2")
			Expect(err).NotTo(HaveOccurred())

			// The Pub/Sub message id changes per delivery; the key must not.
			Expect(keys).To(HaveLen(2))
			Expect(keys[0]).To(Equal(keys[1]))
		})
	})

	Describe("HandleGraphNotification", func() {
		notification := msgraph.ChangeNotification{
			SubscriptionID: "sub-1",
			ChangeType:     "created",
			ClientState:    "expected-state",
			Resource:       "Users/u1/Messages/m1",
		}

		BeforeEach(func() {
			mailboxes.getBySubscriptionIDFn = func(_ context.Context, subscriptionID string) (*model.Mailbox, error) {
				Expect(subscriptionID).To(Equal("sub-1"))
				mb := activeMailbox()
				mb.Provider = model.ProviderOutlook
				return mb, nil
			}
		})

		It("records the event and enqueues a sync task", func() {
			result, err := svc.HandleGraphNotification(ctx, notification, "expected-state")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).NotTo(BeNil())
			Expect(producer.enqueued).To(HaveLen(1))
			Expect(producer.enqueued[0].TaskType).To(Equal(queue.TaskTypeMailboxSync))
		})

		It("drops notifications with the wrong client state", func() {
			bad := notification
			bad.ClientState = "spoofed"

			result, err := svc.HandleGraphNotification(ctx, bad, "expected-state")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("drops notifications for unknown subscriptions", func() {
			mailboxes.getBySubscriptionIDFn = nil

			result, err := svc.HandleGraphNotification(ctx, notification, "expected-state")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(producer.enqueued).To(BeEmpty())
		})
	})
})
