package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/template"
	"time"

	"leadmap.app/server/common/id"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/store"
)

var (
	ErrCampaignHasNoSteps = errors.New("campaign has no steps")
	ErrLeadHasNoEmail     = errors.New("lead has no email address")
	ErrInvalidTemplate    = errors.New("invalid template")
)

// maxStepAttempts bounds retries of one sequence step before the
// enrollment is failed.
const maxStepAttempts = 3

// billingHoldDelay is how long a due step waits when the workspace
// subscription does not allow sending.
const billingHoldDelay = 6 * time.Hour

// CampaignService runs email drip sequences: campaign and step CRUD,
// lead enrollment, due-step dispatch, and step execution on the worker.
type CampaignService struct {
	stores    *store.Stores
	txRunner  TxRunner
	mailboxes *MailboxService
	producer  queue.Producer
	logger    *slog.Logger
}

func NewCampaignService(stores *store.Stores, txRunner TxRunner, mailboxes *MailboxService, producer queue.Producer, logger *slog.Logger) *CampaignService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignService{
		stores:    stores,
		txRunner:  txRunner,
		mailboxes: mailboxes,
		producer:  producer,
		logger:    logger,
	}
}

func (s *CampaignService) Create(ctx context.Context, workspaceID, mailboxID int64, name string) (*model.Campaign, error) {
	if _, err := s.mailboxes.Get(ctx, workspaceID, mailboxID); err != nil {
		return nil, fmt.Errorf("resolving sending mailbox: %w", err)
	}

	campaign := &model.Campaign{
		ID:          id.New(),
		WorkspaceID: workspaceID,
		MailboxID:   mailboxID,
		Name:        name,
		Status:      model.CampaignStatusDraft,
	}
	if err := s.stores.Campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("creating campaign: %w", err)
	}
	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, workspaceID, campaignID int64) (*model.Campaign, error) {
	campaign, err := s.stores.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	return campaign, nil
}

func (s *CampaignService) List(ctx context.Context, workspaceID int64) ([]model.Campaign, error) {
	return s.stores.Campaigns.ListByWorkspace(ctx, workspaceID)
}

func (s *CampaignService) Delete(ctx context.Context, workspaceID, campaignID int64) error {
	if _, err := s.Get(ctx, workspaceID, campaignID); err != nil {
		return err
	}
	return s.stores.Campaigns.Delete(ctx, campaignID)
}

// SetStatus activates, pauses, or stops a campaign. Activation
// requires at least one step.
func (s *CampaignService) SetStatus(ctx context.Context, workspaceID, campaignID int64, status model.CampaignStatus) error {
	campaign, err := s.Get(ctx, workspaceID, campaignID)
	if err != nil {
		return err
	}

	if status == model.CampaignStatusActive {
		if _, err := s.stores.Campaigns.GetStep(ctx, campaign.ID, 1); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCampaignHasNoSteps
			}
			return err
		}
	}

	return s.stores.Campaigns.SetStatus(ctx, campaign.ID, status)
}

// AddStep appends a step; templates are validated at write time so
// execution never sees a broken one.
func (s *CampaignService) AddStep(ctx context.Context, workspaceID, campaignID int64, position, delayHours int32, subject, bodyTemplate string) (*model.CampaignStep, error) {
	campaign, err := s.Get(ctx, workspaceID, campaignID)
	if err != nil {
		return nil, err
	}

	if _, err := template.New("step").Parse(bodyTemplate); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrInvalidTemplate, err)
	}
	if _, err := template.New("subject").Parse(subject); err != nil {
		return nil, fmt.Errorf("%w: subject: %v", ErrInvalidTemplate, err)
	}

	step := &model.CampaignStep{
		ID:           id.New(),
		CampaignID:   campaign.ID,
		Position:     position,
		DelayHours:   delayHours,
		Subject:      subject,
		BodyTemplate: bodyTemplate,
	}
	if err := s.stores.Campaigns.CreateStep(ctx, step); err != nil {
		return nil, fmt.Errorf("creating step: %w", err)
	}
	return step, nil
}

func (s *CampaignService) ListSteps(ctx context.Context, workspaceID, campaignID int64) ([]model.CampaignStep, error) {
	if _, err := s.Get(ctx, workspaceID, campaignID); err != nil {
		return nil, err
	}
	return s.stores.Campaigns.ListSteps(ctx, campaignID)
}

// EnrollLead puts a lead into a sequence. The first step is scheduled
// relative to now; enrolling twice is a no-op.
func (s *CampaignService) EnrollLead(ctx context.Context, workspaceID, campaignID, leadID int64) (*model.CampaignEnrollment, error) {
	campaign, err := s.Get(ctx, workspaceID, campaignID)
	if err != nil {
		return nil, err
	}

	firstStep, err := s.stores.Campaigns.GetStep(ctx, campaign.ID, 1)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCampaignHasNoSteps
		}
		return nil, err
	}

	lead, err := s.stores.Leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	if lead.OwnerEmail == nil || *lead.OwnerEmail == "" {
		return nil, ErrLeadHasNoEmail
	}

	nextStepAt := time.Now().Add(time.Duration(firstStep.DelayHours) * time.Hour)
	enrollment := &model.CampaignEnrollment{
		ID:           id.New(),
		CampaignID:   campaign.ID,
		LeadID:       lead.ID,
		Status:       model.EnrollmentStatusActive,
		NextPosition: 1,
		NextStepAt:   &nextStepAt,
	}
	if err := s.stores.Campaigns.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("creating enrollment: %w", err)
	}
	return enrollment, nil
}

// DispatchDueSteps claims due enrollments and enqueues a step task per
// claim. Called on the scheduler poll.
func (s *CampaignService) DispatchDueSteps(ctx context.Context, limit int32) (int, error) {
	claimed, err := s.stores.Campaigns.ClaimDueEnrollments(ctx, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("claiming due enrollments: %w", err)
	}

	for i := range claimed {
		e := &claimed[i]
		if err := s.producer.Enqueue(ctx, queue.TaskMessage{
			TaskType:     queue.TaskTypeCampaignStep,
			EnrollmentID: &e.ID,
		}); err != nil {
			// Flip the claim back so the next poll picks it up again.
			s.logger.ErrorContext(ctx, "failed to enqueue campaign step",
				"enrollment_id", e.ID, "error", err)
			if resetErr := s.stores.Campaigns.AdvanceEnrollment(ctx, e.ID, e.NextPosition, e.NextStepAt); resetErr != nil {
				s.logger.ErrorContext(ctx, "failed to release claimed enrollment",
					"enrollment_id", e.ID, "error", resetErr)
			}
		}
	}
	return len(claimed), nil
}

// ExecuteStep sends one sequence step for a claimed enrollment and
// schedules the next. Send failures retry with backoff up to
// maxStepAttempts, then fail the enrollment. Always returns nil except
// on storage errors: provider problems are absorbed into the
// enrollment state rather than requeued at the task level.
func (s *CampaignService) ExecuteStep(ctx context.Context, enrollmentID int64) error {
	e, err := s.stores.Campaigns.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "step task for missing enrollment", "enrollment_id", enrollmentID)
			return nil
		}
		return fmt.Errorf("loading enrollment: %w", err)
	}
	// Stopped or completed between claim and execution (lead replied).
	if e.Status != model.EnrollmentStatusClaimed {
		return nil
	}

	campaign, err := s.stores.Campaigns.GetByID(ctx, e.CampaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.stores.Campaigns.FailEnrollment(ctx, e.ID, "campaign no longer exists")
		}
		return fmt.Errorf("loading campaign: %w", err)
	}
	if campaign.Status != model.CampaignStatusActive {
		// Hand the claim back; the claim query skips inactive campaigns.
		return s.stores.Campaigns.AdvanceEnrollment(ctx, e.ID, e.NextPosition, e.NextStepAt)
	}

	if !s.sendingAllowed(ctx, campaign.WorkspaceID) {
		s.logger.WarnContext(ctx, "holding campaign step, subscription inactive",
			"enrollment_id", e.ID, "workspace_id", campaign.WorkspaceID)
		holdUntil := time.Now().Add(billingHoldDelay)
		return s.stores.Campaigns.AdvanceEnrollment(ctx, e.ID, e.NextPosition, &holdUntil)
	}

	step, err := s.stores.Campaigns.GetStep(ctx, campaign.ID, e.NextPosition)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.stores.Campaigns.CompleteEnrollment(ctx, e.ID)
		}
		return fmt.Errorf("loading step: %w", err)
	}

	lead, err := s.stores.Leads.GetByID(ctx, e.LeadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.stores.Campaigns.FailEnrollment(ctx, e.ID, "lead no longer exists")
		}
		return fmt.Errorf("loading lead: %w", err)
	}
	if lead.OwnerEmail == nil || *lead.OwnerEmail == "" {
		return s.stores.Campaigns.FailEnrollment(ctx, e.ID, "lead has no email address")
	}

	mailbox, err := s.stores.Mailboxes.GetByID(ctx, campaign.MailboxID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.stores.Campaigns.FailEnrollment(ctx, e.ID, "sending mailbox no longer exists")
		}
		return fmt.Errorf("loading mailbox: %w", err)
	}

	subject, body, err := renderStep(step, lead)
	if err != nil {
		return s.stores.Campaigns.FailEnrollment(ctx, e.ID, fmt.Sprintf("rendering template: %v", err))
	}

	if _, err := s.mailboxes.Send(ctx, mailbox, "", *lead.OwnerEmail, subject, body); err != nil {
		return s.handleSendFailure(ctx, e, err)
	}

	if lead.Stage == model.LeadStageNew {
		if err := s.stores.Leads.SetStage(ctx, lead.ID, model.LeadStageContacted); err != nil {
			s.logger.WarnContext(ctx, "failed to move lead stage",
				"lead_id", lead.ID, "error", err)
		}
	}

	if err := s.stores.Analytics.Insert(ctx, &model.AnalyticsEvent{
		ID:          id.New(),
		WorkspaceID: campaign.WorkspaceID,
		EventType:   model.AnalyticsCampaignStep,
		MailboxID:   &campaign.MailboxID,
		LeadID:      &lead.ID,
		OccurredAt:  time.Now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to record analytics event", "error", err)
	}

	return s.scheduleNext(ctx, campaign, e)
}

func (s *CampaignService) scheduleNext(ctx context.Context, campaign *model.Campaign, e *model.CampaignEnrollment) error {
	nextPosition := e.NextPosition + 1
	nextStep, err := s.stores.Campaigns.GetStep(ctx, campaign.ID, nextPosition)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.stores.Campaigns.CompleteEnrollment(ctx, e.ID)
		}
		return fmt.Errorf("loading next step: %w", err)
	}

	nextStepAt := time.Now().Add(time.Duration(nextStep.DelayHours) * time.Hour)
	return s.stores.Campaigns.AdvanceEnrollment(ctx, e.ID, nextPosition, &nextStepAt)
}

func (s *CampaignService) handleSendFailure(ctx context.Context, e *model.CampaignEnrollment, sendErr error) error {
	if e.Attempts+1 >= maxStepAttempts {
		s.logger.ErrorContext(ctx, "failing enrollment after repeated send errors",
			"enrollment_id", e.ID, "error", sendErr)
		return s.stores.Campaigns.FailEnrollment(ctx, e.ID, sendErr.Error())
	}

	retryAt := time.Now().Add(time.Duration(e.Attempts+1) * time.Hour)
	s.logger.WarnContext(ctx, "retrying campaign step",
		"enrollment_id", e.ID, "attempt", e.Attempts+1, "error", sendErr)
	return s.stores.Campaigns.RetryEnrollment(ctx, e.ID, retryAt, sendErr.Error())
}

// FailEnrollment is the worker's terminal-failure hook for a step task
// the queue has given up on.
func (s *CampaignService) FailEnrollment(ctx context.Context, enrollmentID int64, reason string) error {
	return s.stores.Campaigns.FailEnrollment(ctx, enrollmentID, reason)
}

func (s *CampaignService) sendingAllowed(ctx context.Context, workspaceID int64) bool {
	sub, err := s.stores.Subscriptions.GetByWorkspace(ctx, workspaceID)
	if err != nil {
		// No subscription row means the workspace never started billing;
		// treat it as a free tier that may send.
		if errors.Is(err, store.ErrNotFound) {
			return true
		}
		s.logger.WarnContext(ctx, "failed to check subscription",
			"workspace_id", workspaceID, "error", err)
		return true
	}
	return sub.SendingAllowed()
}

// renderStep executes the step templates against the lead's merge
// fields. Unset fields render as empty strings.
func renderStep(step *model.CampaignStep, lead *model.Lead) (subject, body string, err error) {
	data := mergeFields(lead)

	subject, err = renderTemplate("subject", step.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err = renderTemplate("body", step.BodyTemplate, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func renderTemplate(name, text string, data map[string]string) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func mergeFields(lead *model.Lead) map[string]string {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}

	fields := map[string]string{
		"OwnerName":  deref(lead.OwnerName),
		"OwnerPhone": deref(lead.OwnerPhone),
		"OwnerEmail": deref(lead.OwnerEmail),
		"Street":     lead.Street,
		"City":       lead.City,
		"State":      lead.State,
		"Zip":        lead.Zip,
		"Price":      "",
	}
	if lead.Price != nil {
		fields["Price"] = strconv.FormatInt(*lead.Price, 10)
	}
	return fields
}
