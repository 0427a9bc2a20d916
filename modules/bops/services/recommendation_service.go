package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bops-digital/bops/modules/bops/domain/audit"
	"github.com/bops-digital/bops/modules/bops/domain/events"
	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/recommendation"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
	"github.com/bops-digital/bops/pkg/eventbus"
	"github.com/bops-digital/bops/pkg/serrors"
)

// refusalReasonMessage is the applicant-facing prompt shown when a refusal
// lacks a public reason.
const refusalReasonMessage = "Please state the reasons why this application is, or is not lawful"

// RecommendationService runs the assessor-writes / reviewer-signs-off cycle.
// Rounds are append-only: rejection starts a fresh draft, history stays.
type RecommendationService struct {
	apps     planningapplication.Repository
	recs     recommendation.Repository
	requests validationrequest.Repository
	audits   audit.Repository
	bus      eventbus.EventBus
}

func NewRecommendationService(
	apps planningapplication.Repository,
	recs recommendation.Repository,
	requests validationrequest.Repository,
	audits audit.Repository,
	bus eventbus.EventBus,
) *RecommendationService {
	return &RecommendationService{
		apps:     apps,
		recs:     recs,
		requests: requests,
		audits:   audits,
		bus:      bus,
	}
}

func (s *RecommendationService) record(ctx context.Context, applicationID uuid.UUID, activityType string, information any, comment string) error {
	entry := actorFrom(ctx)
	entry.ApplicationID = applicationID
	entry.ActivityType = activityType
	entry.ActivityInformation = information
	entry.Comment = comment
	_, err := s.audits.Create(ctx, entry)
	return err
}

// ---- draft ----

type DraftInput struct {
	Decision        string
	AssessorComment string
	PublicComment   string
}

// SaveDraft creates or updates the current draft round. Drafts carry no
// guards beyond the application being in assessment; incomplete decisions
// are allowed until submission.
func (s *RecommendationService) SaveDraft(ctx context.Context, tenantID, applicationID uuid.UUID, in DraftInput) (*recommendation.Recommendation, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*recommendation.Recommendation, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		if app.Status != planningapplication.StatusInAssessment && app.Status != planningapplication.StatusAwaitingCorrection {
			if app.Status.IsTerminal() {
				return nil, terminalConflict(app.Status)
			}
			return nil, newStateConflict(fmt.Sprintf("cannot draft a recommendation while the application is %q", app.Status))
		}

		latest, err := s.recs.Latest(txCtx, applicationID)
		switch {
		case errors.Is(err, recommendation.ErrNotFound):
			latest = nil
		case err != nil:
			return nil, mapPgError(err)
		}

		if latest != nil && latest.Draft() {
			latest.Decision = in.Decision
			latest.AssessorComment = in.AssessorComment
			latest.PublicComment = in.PublicComment
			if err := s.recs.Update(txCtx, latest); err != nil {
				return nil, mapPgError(err)
			}
			return latest, nil
		}
		if latest != nil && latest.UnderReview() {
			return nil, newStateConflict("the current recommendation is awaiting review")
		}

		created, err := s.recs.Create(txCtx, &recommendation.Recommendation{
			TenantID:        tenantID,
			ApplicationID:   applicationID,
			Decision:        in.Decision,
			AssessorComment: in.AssessorComment,
			PublicComment:   in.PublicComment,
		})
		if err != nil {
			return nil, mapPgError(err)
		}
		return created, nil
	})
}

// submissionGuard validates the draft content for submission. Pure.
func submissionGuard(rec *recommendation.Recommendation) serrors.ValidationErrors {
	verrs := make(serrors.ValidationErrors)
	decision := planningapplication.Decision(rec.Decision)
	if !decision.IsValid() {
		verrs.Add("decision", "Please select one of the options")
	}
	if decision == planningapplication.DecisionRefused && strings.TrimSpace(rec.PublicComment) == "" {
		verrs.Add("public_comment", refusalReasonMessage)
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

// openPostValidationRequests is the submission blocker: requests raised
// after validation must resolve before the case goes to review.
func openPostValidationRequests(requests []*validationrequest.ValidationRequest) *ServiceError {
	open := 0
	for _, req := range requests {
		if req.PostValidation && req.Unresolved() {
			open++
		}
	}
	if open == 0 {
		return nil
	}
	return newServiceError(
		http.StatusConflict,
		CodeOpenPostValidationRequests,
		"this application has open non-validation requests",
		nil,
	)
}

// Submit sends the current draft to review and moves the application to
// awaiting determination.
func (s *RecommendationService) Submit(ctx context.Context, tenantID, applicationID uuid.UUID) (*recommendation.Recommendation, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*recommendation.Recommendation, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		tr, ok := planningapplication.TransitionFor(app.Status, planningapplication.CommandSubmitRecommendation)
		if !ok {
			if app.Status.IsTerminal() {
				return nil, terminalConflict(app.Status)
			}
			return nil, newStateConflict(fmt.Sprintf("cannot submit a recommendation while the application is %q", app.Status))
		}

		latest, err := s.recs.Latest(txCtx, applicationID)
		if errors.Is(err, recommendation.ErrNotFound) {
			return nil, newStateConflict("there is no draft recommendation to submit")
		}
		if err != nil {
			return nil, mapPgError(err)
		}
		if !latest.Draft() {
			return nil, newStateConflict("the current recommendation has already been submitted")
		}
		if verrs := submissionGuard(latest); verrs != nil {
			return nil, verrs
		}

		requests, err := s.requests.ListByApplication(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		if blocked := openPostValidationRequests(requests); blocked != nil {
			return nil, blocked
		}

		latest.Submitted = true
		if err := s.recs.Update(txCtx, latest); err != nil {
			return nil, mapPgError(err)
		}
		if err := s.apps.UpdateStatus(txCtx, applicationID, tr.To); err != nil {
			return nil, mapPgError(err)
		}
		if err := s.record(txCtx, applicationID, "recommendation_submitted", map[string]string{
			"old_status": string(app.Status),
			"new_status": string(tr.To),
			"decision":   latest.Decision,
		}, latest.AssessorComment); err != nil {
			return nil, mapPgError(err)
		}
		return latest, nil
	})
}

// Withdraw pulls a submitted recommendation back for more assessment work.
// Only possible while the reviewer hasn't signed off.
func (s *RecommendationService) Withdraw(ctx context.Context, tenantID, applicationID uuid.UUID) (*recommendation.Recommendation, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*recommendation.Recommendation, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		tr, ok := planningapplication.TransitionFor(app.Status, planningapplication.CommandWithdrawRecommendation)
		if !ok {
			if app.Status.IsTerminal() {
				return nil, terminalConflict(app.Status)
			}
			return nil, newStateConflict(fmt.Sprintf("cannot withdraw a recommendation while the application is %q", app.Status))
		}

		latest, err := s.recs.Latest(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		if !latest.UnderReview() {
			return nil, newStateConflict("the current recommendation is not awaiting review")
		}

		latest.Submitted = false
		if err := s.recs.Update(txCtx, latest); err != nil {
			return nil, mapPgError(err)
		}
		if err := s.apps.UpdateStatus(txCtx, applicationID, tr.To); err != nil {
			return nil, mapPgError(err)
		}
		if err := s.record(txCtx, applicationID, "recommendation_withdrawn", map[string]string{
			"old_status": string(app.Status),
			"new_status": string(tr.To),
		}, ""); err != nil {
			return nil, mapPgError(err)
		}
		return latest, nil
	})
}

// ---- review ----

type ReviewInput struct {
	Accepted        *bool
	ReviewerComment string
}

// reviewGuard validates the reviewer's verdict. Rejection always needs a
// comment so the assessor knows what to fix. Pure.
func reviewGuard(in ReviewInput) serrors.ValidationErrors {
	verrs := make(serrors.ValidationErrors)
	if in.Accepted == nil {
		verrs.Add("accepted", "Please select one of the options")
	} else if !*in.Accepted && strings.TrimSpace(in.ReviewerComment) == "" {
		verrs.Add("reviewer_comment", "can't be blank")
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

// Review records the reviewer's verdict. Acceptance leaves the application
// ready to determine; rejection sends it back to correction and opens a
// fresh draft round pre-filled from the challenged one.
func (s *RecommendationService) Review(ctx context.Context, tenantID, applicationID uuid.UUID, in ReviewInput) (*recommendation.Recommendation, error) {
	if verrs := reviewGuard(in); verrs != nil {
		return nil, verrs
	}

	type reviewed struct {
		app *planningapplication.PlanningApplication
		rec *recommendation.Recommendation
	}
	out, err := inTx(ctx, tenantID, func(txCtx context.Context) (reviewed, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, applicationID)
		if err != nil {
			return reviewed{}, mapPgError(err)
		}
		latest, err := s.recs.Latest(txCtx, applicationID)
		if err != nil {
			return reviewed{}, mapPgError(err)
		}
		if !latest.UnderReview() {
			return reviewed{}, newStateConflict("the current recommendation is not awaiting review")
		}

		now := time.Now().UTC()
		latest.ReviewedAt = &now
		latest.Accepted = in.Accepted
		latest.ReviewerComment = strings.TrimSpace(in.ReviewerComment)
		if err := s.recs.Update(txCtx, latest); err != nil {
			return reviewed{}, mapPgError(err)
		}

		if *in.Accepted {
			if err := s.record(txCtx, applicationID, "recommendation_accepted", map[string]string{
				"decision": latest.Decision,
			}, latest.ReviewerComment); err != nil {
				return reviewed{}, mapPgError(err)
			}
			return reviewed{app: app, rec: latest}, nil
		}

		tr, ok := planningapplication.TransitionFor(app.Status, planningapplication.CommandRejectRecommendation)
		if !ok {
			return reviewed{}, newStateConflict(fmt.Sprintf("cannot challenge a recommendation while the application is %q", app.Status))
		}
		if err := s.apps.UpdateStatus(txCtx, applicationID, tr.To); err != nil {
			return reviewed{}, mapPgError(err)
		}
		if _, err := s.recs.Create(txCtx, &recommendation.Recommendation{
			TenantID:        tenantID,
			ApplicationID:   applicationID,
			Decision:        latest.Decision,
			AssessorComment: latest.AssessorComment,
			PublicComment:   latest.PublicComment,
		}); err != nil {
			return reviewed{}, mapPgError(err)
		}
		if err := s.record(txCtx, applicationID, "recommendation_challenged", map[string]string{
			"old_status": string(app.Status),
			"new_status": string(tr.To),
		}, latest.ReviewerComment); err != nil {
			return reviewed{}, mapPgError(err)
		}
		app.Status = tr.To
		return reviewed{app: app, rec: latest}, nil
	})
	if err != nil {
		return nil, err
	}
	if out.rec.Challenged() {
		s.bus.Publish(&events.RecommendationChallenged{Application: out.app, Recommendation: out.rec})
	}
	return out.rec, nil
}

// ---- queries ----

func (s *RecommendationService) Latest(ctx context.Context, tenantID, applicationID uuid.UUID) (*recommendation.Recommendation, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*recommendation.Recommendation, error) {
		rec, err := s.recs.Latest(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		return rec, nil
	})
}

// History returns every round, oldest first.
func (s *RecommendationService) History(ctx context.Context, tenantID, applicationID uuid.UUID) ([]*recommendation.Recommendation, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) ([]*recommendation.Recommendation, error) {
		recs, err := s.recs.ListByApplication(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		return recs, nil
	})
}
