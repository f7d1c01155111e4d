package webhook_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/http/handler/webhook"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/service"
	"leadmap.app/server/internal/store"
)

const (
	pushToken   = "push-secret"
	clientState = "graph-client-state"
)

func gmailPushBody(address string, historyID uint64) []byte {
	payload, err := json.Marshal(map[string]any{
		"emailAddress": address,
		"historyId":    historyID,
	})
	Expect(err).NotTo(HaveOccurred())

	body, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"data":      base64.StdEncoding.EncodeToString(payload),
			"messageId": "pubsub-1",
		},
		"subscription": "projects/p/subscriptions/s",
	})
	Expect(err).NotTo(HaveOccurred())
	return body
}

func graphBody(subscriptionID, state string) []byte {
	body, err := json.Marshal(map[string]any{
		"value": []map[string]any{
			{
				"subscriptionId": subscriptionID,
				"changeType":     "created",
				"clientState":    state,
				"resource":       "Users/u1/Messages/m1",
				"resourceData":   map[string]any{"id": "m1"},
			},
		},
	})
	Expect(err).NotTo(HaveOccurred())
	return body
}

var _ = Describe("Webhook handlers", func() {
	var (
		mailboxes *mockMailboxStore
		eventLogs *mockEventLogStore
		producer  *mockProducer
		router    *gin.Engine
	)

	BeforeEach(func() {
		mailboxes = &mockMailboxStore{}
		eventLogs = &mockEventLogStore{}
		producer = &mockProducer{}
		txRunner := &mockTxRunner{stores: &store.Stores{EventLogs: eventLogs}}
		ingest := service.NewIngestService(mailboxes, txRunner, producer, nil)

		router = gin.New()
		router.POST("/webhooks/google/pubsub", webhook.NewGmailPushHandler(ingest, pushToken).Handle)
		router.POST("/webhooks/microsoft/graph", webhook.NewGraphWebhookHandler(ingest, clientState).Handle)
	})

	perform := func(path string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	Describe("Gmail push", func() {
		BeforeEach(func() {
			mailboxes.getByProviderAddressFn = func(_ context.Context, _ model.Provider, address string) (*model.Mailbox, error) {
				if address != "agent@example.com" {
					return nil, store.ErrNotFound
				}
				return &model.Mailbox{
					ID:          100,
					WorkspaceID: 200,
					Address:     address,
					Provider:    model.ProviderGmail,
					State:       model.MailboxStateActive,
				}, nil
			}
		})

		It("acks a delivery and enqueues a sync task", func() {
			rec := perform("/webhooks/google/pubsub?token="+pushToken, gmailPushBody("agent@example.com", 4242))

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(producer.enqueued).To(HaveLen(1))
			Expect(producer.enqueued[0].TaskType).To(Equal(queue.TaskTypeMailboxSync))
		})

		It("rejects a delivery with the wrong token", func() {
			rec := perform("/webhooks/google/pubsub?token=wrong", gmailPushBody("agent@example.com", 4242))

			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("acks malformed bodies so they are not redelivered", func() {
			rec := perform("/webhooks/google/pubsub?token="+pushToken, []byte("{not json"))

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("acks notifications for unknown mailboxes", func() {
			rec := perform("/webhooks/google/pubsub?token="+pushToken, gmailPushBody("stranger@example.com", 1))

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("returns 500 on a transient ingest failure so Pub/Sub redelivers", func() {
			eventLogs.insertFn = func(context.Context, *model.SyncEventLog) (bool, error) {
				return false, errors.New("db down")
			}

			rec := perform("/webhooks/google/pubsub?token="+pushToken, gmailPushBody("agent@example.com", 4242))

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("Graph webhook", func() {
		BeforeEach(func() {
			mailboxes.getBySubscriptionIDFn = func(_ context.Context, subscriptionID string) (*model.Mailbox, error) {
				if subscriptionID != "sub-1" {
					return nil, store.ErrNotFound
				}
				return &model.Mailbox{
					ID:          101,
					WorkspaceID: 200,
					Provider:    model.ProviderOutlook,
					State:       model.MailboxStateActive,
				}, nil
			}
		})

		It("echoes the validation token as plain text", func() {
			rec := perform("/webhooks/microsoft/graph?validationToken=abc123", nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("abc123"))
			Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("text/plain"))
		})

		It("accepts a notification batch and enqueues sync tasks", func() {
			rec := perform("/webhooks/microsoft/graph", graphBody("sub-1", clientState))

			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(producer.enqueued).To(HaveLen(1))
			Expect(producer.enqueued[0].TaskType).To(Equal(queue.TaskTypeMailboxSync))
		})

		It("drops notifications with a spoofed client state", func() {
			rec := perform("/webhooks/microsoft/graph", graphBody("sub-1", "spoofed"))

			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("accepts malformed bodies without retry", func() {
			rec := perform("/webhooks/microsoft/graph", []byte("{not json"))

			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("fails the delivery when ingest hits a transient error", func() {
			eventLogs.insertFn = func(context.Context, *model.SyncEventLog) (bool, error) {
				return false, errors.New("db down")
			}

			rec := perform("/webhooks/microsoft/graph", graphBody("sub-1", clientState))

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})
	})
})
