// Package events defines the domain events published on the application bus
// after a transition commits. Handlers dispatch notifications from these;
// delivery is best-effort and never affects the owning transition.
package events

import (
	"github.com/google/uuid"

	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/recommendation"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
)

// ApplicationValidated fires when an application passes validation and
// enters assessment.
type ApplicationValidated struct {
	Application *planningapplication.PlanningApplication
}

// RequestsOpened fires once per invalidation: every pending request for the
// application went open in one batch and one notification covers them all.
type RequestsOpened struct {
	Application *planningapplication.PlanningApplication
	Requests    []*validationrequest.ValidationRequest
}

// RequestOpened fires when a single request is sent against an application
// that is already invalidated.
type RequestOpened struct {
	Application *planningapplication.PlanningApplication
	Request     *validationrequest.ValidationRequest
}

type RequestResponded struct {
	Application *planningapplication.PlanningApplication
	Request     *validationrequest.ValidationRequest
}

type RequestCancelled struct {
	Application *planningapplication.PlanningApplication
	Request     *validationrequest.ValidationRequest
}

// RecommendationChallenged fires when a reviewer rejects a submitted
// recommendation; the original assessor is notified.
type RecommendationChallenged struct {
	Application    *planningapplication.PlanningApplication
	Recommendation *recommendation.Recommendation
}

type ApplicationAssigned struct {
	Application *planningapplication.PlanningApplication
	UserID      uuid.UUID
}

type ApplicationDetermined struct {
	Application *planningapplication.PlanningApplication
}

type ApplicationClosed struct {
	Application *planningapplication.PlanningApplication
	Reason      planningapplication.ClosureReason
}
