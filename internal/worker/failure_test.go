package worker

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/queue"
)

type mockConsumer struct {
	requeued []queue.Message
	dlqed    []queue.Message
	dlqErrs  []string
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) { return nil, nil }

func (m *mockConsumer) Ack(ctx context.Context, msg queue.Message) error { return nil }

func (m *mockConsumer) Requeue(ctx context.Context, msg queue.Message, errMsg string) error {
	m.requeued = append(m.requeued, msg)
	return nil
}

func (m *mockConsumer) SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error {
	m.dlqed = append(m.dlqed, msg)
	m.dlqErrs = append(m.dlqErrs, errMsg)
	return nil
}

var _ = Describe("Worker failure handling", func() {
	var (
		consumer *mockConsumer
		sync     *mockSyncService
		campaign *mockCampaignService
		publish  *mockPublishService
		w        *Worker
		ctx      context.Context
		boom     error
	)

	BeforeEach(func() {
		consumer = &mockConsumer{}
		sync = &mockSyncService{}
		campaign = &mockCampaignService{}
		publish = &mockPublishService{}
		w = New(consumer, Processors{
			Sync:     sync,
			Campaign: campaign,
			Publish:  publish,
		}, Config{MaxAttempts: 3})
		ctx = context.Background()
		boom = errors.New("provider unavailable")
	})

	It("requeues while attempts remain", func() {
		w.handleFailedMessage(ctx, queue.Message{
			TaskType:   queue.TaskTypeMailboxSync,
			EventLogID: ptr(7),
			MailboxID:  ptr(5),
			Attempt:    1,
		}, boom)

		Expect(consumer.requeued).To(HaveLen(1))
		Expect(consumer.dlqed).To(BeEmpty())
	})

	It("marks the event log failed when a sync task is DLQed", func() {
		var failedID int64
		var failedReason string
		sync.failEventFn = func(_ context.Context, eventLogID int64, reason string) error {
			failedID = eventLogID
			failedReason = reason
			return nil
		}

		w.handleFailedMessage(ctx, queue.Message{
			TaskType:   queue.TaskTypeMailboxSync,
			EventLogID: ptr(7),
			MailboxID:  ptr(5),
			Attempt:    3,
		}, boom)

		Expect(consumer.dlqed).To(HaveLen(1))
		Expect(consumer.requeued).To(BeEmpty())
		Expect(failedID).To(Equal(int64(7)))
		Expect(failedReason).To(ContainSubstring("provider unavailable"))
	})

	It("marks the enrollment failed when a step task is DLQed", func() {
		var failedID int64
		campaign.failEnrollmentFn = func(_ context.Context, enrollmentID int64, reason string) error {
			failedID = enrollmentID
			return nil
		}

		w.handleFailedMessage(ctx, queue.Message{
			TaskType:     queue.TaskTypeCampaignStep,
			EnrollmentID: ptr(12),
			Attempt:      3,
		}, boom)

		Expect(consumer.dlqed).To(HaveLen(1))
		Expect(failedID).To(Equal(int64(12)))
	})

	It("marks the schedule failed when a publish task is DLQed", func() {
		var failedID int64
		publish.failScheduleFn = func(_ context.Context, scheduleID int64, reason string) error {
			failedID = scheduleID
			return nil
		}

		w.handleFailedMessage(ctx, queue.Message{
			TaskType:   queue.TaskTypePublishPost,
			ScheduleID: ptr(30),
			Attempt:    3,
		}, boom)

		Expect(consumer.dlqed).To(HaveLen(1))
		Expect(failedID).To(Equal(int64(30)))
	})

	It("still DLQs tasks with no owning row", func() {
		w.handleFailedMessage(ctx, queue.Message{
			TaskType: queue.TaskTypeEnrichLead,
			LeadID:   ptr(8),
			Attempt:  3,
		}, boom)

		Expect(consumer.dlqed).To(HaveLen(1))
	})
})
