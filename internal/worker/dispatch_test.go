package worker

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/queue"
)

type mockSyncService struct {
	processEventFn func(ctx context.Context, eventLogID int64) error
	backfillFn     func(ctx context.Context, mailboxID int64) error
	failEventFn    func(ctx context.Context, eventLogID int64, reason string) error
}

func (m *mockSyncService) ProcessEvent(ctx context.Context, eventLogID int64) error {
	if m.processEventFn != nil {
		return m.processEventFn(ctx, eventLogID)
	}
	return nil
}

func (m *mockSyncService) Backfill(ctx context.Context, mailboxID int64) error {
	if m.backfillFn != nil {
		return m.backfillFn(ctx, mailboxID)
	}
	return nil
}

func (m *mockSyncService) FailEvent(ctx context.Context, eventLogID int64, reason string) error {
	if m.failEventFn != nil {
		return m.failEventFn(ctx, eventLogID, reason)
	}
	return nil
}

type mockCampaignService struct {
	executeStepFn    func(ctx context.Context, enrollmentID int64) error
	failEnrollmentFn func(ctx context.Context, enrollmentID int64, reason string) error
}

func (m *mockCampaignService) ExecuteStep(ctx context.Context, enrollmentID int64) error {
	if m.executeStepFn != nil {
		return m.executeStepFn(ctx, enrollmentID)
	}
	return nil
}

func (m *mockCampaignService) FailEnrollment(ctx context.Context, enrollmentID int64, reason string) error {
	if m.failEnrollmentFn != nil {
		return m.failEnrollmentFn(ctx, enrollmentID, reason)
	}
	return nil
}

type mockPublishService struct {
	publishFn      func(ctx context.Context, scheduleID int64) error
	failScheduleFn func(ctx context.Context, scheduleID int64, reason string) error
}

func (m *mockPublishService) PublishSchedule(ctx context.Context, scheduleID int64) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, scheduleID)
	}
	return nil
}

func (m *mockPublishService) FailSchedule(ctx context.Context, scheduleID int64, reason string) error {
	if m.failScheduleFn != nil {
		return m.failScheduleFn(ctx, scheduleID, reason)
	}
	return nil
}

type mockEnrichService struct {
	enrichFn func(ctx context.Context, leadID int64) error
}

func (m *mockEnrichService) EnrichLead(ctx context.Context, leadID int64) error {
	if m.enrichFn != nil {
		return m.enrichFn(ctx, leadID)
	}
	return nil
}

type mockIndexService struct {
	indexLeadFn   func(ctx context.Context, leadID int64) error
	indexThreadFn func(ctx context.Context, threadID int64) error
}

func (m *mockIndexService) IndexLead(ctx context.Context, leadID int64) error {
	if m.indexLeadFn != nil {
		return m.indexLeadFn(ctx, leadID)
	}
	return nil
}

func (m *mockIndexService) IndexThread(ctx context.Context, threadID int64) error {
	if m.indexThreadFn != nil {
		return m.indexThreadFn(ctx, threadID)
	}
	return nil
}

func ptr(v int64) *int64 { return &v }

var _ = Describe("Worker dispatch", func() {
	var (
		sync     *mockSyncService
		campaign *mockCampaignService
		publish  *mockPublishService
		enrich   *mockEnrichService
		index    *mockIndexService
		w        *Worker
		ctx      context.Context
	)

	BeforeEach(func() {
		sync = &mockSyncService{}
		campaign = &mockCampaignService{}
		publish = &mockPublishService{}
		enrich = &mockEnrichService{}
		index = &mockIndexService{}
		w = New(nil, Processors{
			Sync:     sync,
			Campaign: campaign,
			Publish:  publish,
			Enrich:   enrich,
			Index:    index,
		}, Config{MaxAttempts: 3})
		ctx = context.Background()
	})

	It("routes mailbox_sync to the sync processor", func() {
		var got int64
		sync.processEventFn = func(_ context.Context, eventLogID int64) error {
			got = eventLogID
			return nil
		}

		err := w.dispatch(ctx, queue.Message{
			TaskType:   queue.TaskTypeMailboxSync,
			EventLogID: ptr(77),
			MailboxID:  ptr(5),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(int64(77)))
	})

	It("routes mailbox_backfill to the sync processor", func() {
		var got int64
		sync.backfillFn = func(_ context.Context, mailboxID int64) error {
			got = mailboxID
			return nil
		}

		err := w.dispatch(ctx, queue.Message{
			TaskType:  queue.TaskTypeMailboxBackfill,
			MailboxID: ptr(5),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(int64(5)))
	})

	It("routes campaign_step to the campaign processor", func() {
		var got int64
		campaign.executeStepFn = func(_ context.Context, enrollmentID int64) error {
			got = enrollmentID
			return nil
		}

		err := w.dispatch(ctx, queue.Message{
			TaskType:     queue.TaskTypeCampaignStep,
			EnrollmentID: ptr(12),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(int64(12)))
	})

	It("routes publish_post to the publish processor", func() {
		var got int64
		publish.publishFn = func(_ context.Context, scheduleID int64) error {
			got = scheduleID
			return nil
		}

		err := w.dispatch(ctx, queue.Message{
			TaskType:   queue.TaskTypePublishPost,
			ScheduleID: ptr(30),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(int64(30)))
	})

	It("routes enrich_lead to the enrich processor", func() {
		var got int64
		enrich.enrichFn = func(_ context.Context, leadID int64) error {
			got = leadID
			return nil
		}

		err := w.dispatch(ctx, queue.Message{
			TaskType: queue.TaskTypeEnrichLead,
			LeadID:   ptr(8),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(int64(8)))
	})

	It("routes index_search by entity type", func() {
		var gotLead, gotThread int64
		index.indexLeadFn = func(_ context.Context, leadID int64) error {
			gotLead = leadID
			return nil
		}
		index.indexThreadFn = func(_ context.Context, threadID int64) error {
			gotThread = threadID
			return nil
		}

		err := w.dispatch(ctx, queue.Message{
			TaskType:   queue.TaskTypeIndexSearch,
			EntityType: queue.IndexEntityLead,
			LeadID:     ptr(1),
		})
		Expect(err).NotTo(HaveOccurred())

		err = w.dispatch(ctx, queue.Message{
			TaskType:   queue.TaskTypeIndexSearch,
			EntityType: queue.IndexEntityThread,
			ThreadID:   ptr(2),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(gotLead).To(Equal(int64(1)))
		Expect(gotThread).To(Equal(int64(2)))
	})

	It("propagates processor errors for retry", func() {
		boom := errors.New("provider unavailable")
		sync.processEventFn = func(context.Context, int64) error { return boom }

		err := w.dispatch(ctx, queue.Message{
			TaskType:   queue.TaskTypeMailboxSync,
			EventLogID: ptr(1),
			MailboxID:  ptr(1),
		})
		Expect(err).To(MatchError(boom))
	})

	It("fails unknown task types", func() {
		err := w.dispatch(ctx, queue.Message{TaskType: "make_coffee"})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown task type"))
	})

	It("fails when a processor is not configured", func() {
		w = New(nil, Processors{}, Config{MaxAttempts: 3})
		err := w.dispatch(ctx, queue.Message{
			TaskType:     queue.TaskTypeCampaignStep,
			EnrollmentID: ptr(1),
		})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("no campaign processor"))
	})
})

var _ = Describe("Worker panic recovery", func() {
	It("converts a processor panic into an error", func() {
		sync := &mockSyncService{
			processEventFn: func(context.Context, int64) error {
				panic("nil map write")
			},
		}
		w := New(nil, Processors{Sync: sync}, Config{MaxAttempts: 3})

		err := w.ProcessMessage(context.Background(), queue.Message{
			TaskType:   queue.TaskTypeMailboxSync,
			EventLogID: ptr(1),
			MailboxID:  ptr(1),
		})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("panic"))
	})
})
