package service

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/store"
)

type stubSocial struct {
	store.SocialStore
	getScheduleFn func(ctx context.Context, id int64) (*model.PostSchedule, error)
}

func (s *stubSocial) GetSchedule(ctx context.Context, id int64) (*model.PostSchedule, error) {
	return s.getScheduleFn(ctx, id)
}

var _ = Describe("SocialService", func() {
	Describe("PublishSchedule", func() {
		var (
			social *stubSocial
			svc    *SocialService
			ctx    context.Context
		)

		BeforeEach(func() {
			social = &stubSocial{}
			stores := &store.Stores{Social: social}
			svc = NewSocialService(stores, nil, nil, &stubProducer{}, nil)
			ctx = context.Background()
		})

		It("acks tasks whose schedule is gone", func() {
			social.getScheduleFn = func(_ context.Context, id int64) (*model.PostSchedule, error) {
				return nil, store.ErrNotFound
			}
			Expect(svc.PublishSchedule(ctx, 30)).To(Succeed())
		})

		// Only the claim query moves a schedule to publishing; anything
		// else was cancelled, already published, or requeued elsewhere.
		It("drops schedules the claim no longer holds", func() {
			for _, status := range []model.ScheduleStatus{
				model.ScheduleStatusQueued,
				model.ScheduleStatusPublished,
				model.ScheduleStatusFailed,
			} {
				social.getScheduleFn = func(_ context.Context, id int64) (*model.PostSchedule, error) {
					return &model.PostSchedule{ID: id, PostID: 9, WorkspaceID: 200, Status: status}, nil
				}
				Expect(svc.PublishSchedule(ctx, 30)).To(Succeed())
			}
		})
	})
})
