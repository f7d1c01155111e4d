package service

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/store"
)

type stubCampaigns struct {
	store.CampaignStore
	getEnrollmentFn func(ctx context.Context, id int64) (*model.CampaignEnrollment, error)
}

func (s *stubCampaigns) GetEnrollment(ctx context.Context, id int64) (*model.CampaignEnrollment, error) {
	return s.getEnrollmentFn(ctx, id)
}

var _ = Describe("CampaignService", func() {
	Describe("ExecuteStep", func() {
		var (
			campaigns *stubCampaigns
			svc       *CampaignService
			ctx       context.Context
		)

		BeforeEach(func() {
			campaigns = &stubCampaigns{}
			stores := &store.Stores{Campaigns: campaigns}
			svc = NewCampaignService(stores, &stubTxRunner{stores: stores}, nil, &stubProducer{}, nil)
			ctx = context.Background()
		})

		It("acks tasks whose enrollment is gone", func() {
			campaigns.getEnrollmentFn = func(_ context.Context, id int64) (*model.CampaignEnrollment, error) {
				return nil, store.ErrNotFound
			}
			Expect(svc.ExecuteStep(ctx, 12)).To(Succeed())
		})

		// Replies and pauses land between the claim and the execution;
		// anything no longer claimed must not send. The campaign is never
		// even loaded, so a stray send would panic the nil store here.
		It("drops enrollments the claim no longer holds", func() {
			for _, status := range []model.EnrollmentStatus{
				model.EnrollmentStatusActive,
				model.EnrollmentStatusStopped,
				model.EnrollmentStatusCompleted,
				model.EnrollmentStatusFailed,
			} {
				campaigns.getEnrollmentFn = func(_ context.Context, id int64) (*model.CampaignEnrollment, error) {
					return &model.CampaignEnrollment{ID: id, CampaignID: 77, Status: status}, nil
				}
				Expect(svc.ExecuteStep(ctx, 12)).To(Succeed())
			}
		})
	})
})
