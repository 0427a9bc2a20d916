// Package handlers wires domain events to outbound side effects. Everything
// here runs after the owning transaction committed; failures log a warning
// and are never surfaced to the caller.
package handlers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bops-digital/bops/modules/bops/domain/events"
	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/services"
	"github.com/bops-digital/bops/pkg/eventbus"
)

type NotificationHandler struct {
	notifier services.Notifier
	logger   *logrus.Logger
}

func RegisterNotificationHandler(bus eventbus.EventBus, notifier services.Notifier, logger *logrus.Logger) *NotificationHandler {
	h := &NotificationHandler{notifier: notifier, logger: logger}
	bus.Subscribe(h.onApplicationValidated)
	bus.Subscribe(h.onRequestsOpened)
	bus.Subscribe(h.onRequestOpened)
	bus.Subscribe(h.onRequestResponded)
	bus.Subscribe(h.onRequestCancelled)
	bus.Subscribe(h.onRecommendationChallenged)
	bus.Subscribe(h.onApplicationAssigned)
	bus.Subscribe(h.onApplicationDetermined)
	bus.Subscribe(h.onApplicationClosed)
	return h
}

func (h *NotificationHandler) send(template string, app *planningapplication.PlanningApplication, personalisation map[string]string) {
	if app.ApplicantEmail == "" {
		h.logger.WithField("reference", app.Reference).Warn("no applicant email, notification skipped")
		return
	}
	if personalisation == nil {
		personalisation = map[string]string{}
	}
	personalisation["reference"] = app.Reference
	personalisation["applicant_name"] = app.ApplicantName

	reference, err := h.notifier.Send(context.Background(), template, app.ApplicantEmail, personalisation)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"template":  template,
			"reference": app.Reference,
		}).Warn("failed to send notification")
		return
	}
	h.logger.WithFields(logrus.Fields{
		"template":         template,
		"reference":        app.Reference,
		"notify_reference": reference,
	}).Info("notification sent")
}

func (h *NotificationHandler) onApplicationValidated(event *events.ApplicationValidated) {
	h.send(services.TemplateApplicationValidated, event.Application, nil)
}

// onRequestsOpened sends the single batch message covering every request
// opened by an invalidation.
func (h *NotificationHandler) onRequestsOpened(event *events.RequestsOpened) {
	h.send(services.TemplateRequestsSent, event.Application, map[string]string{
		"request_count": fmt.Sprintf("%d", len(event.Requests)),
	})
}

func (h *NotificationHandler) onRequestOpened(event *events.RequestOpened) {
	h.send(services.TemplateRequestsSent, event.Application, map[string]string{
		"request_count": "1",
	})
}

// onRequestResponded tells the case officer a response arrived; the applicant
// gets a receipt.
func (h *NotificationHandler) onRequestResponded(event *events.RequestResponded) {
	h.logger.WithFields(logrus.Fields{
		"reference": event.Application.Reference,
		"kind":      string(event.Request.Kind),
		"sequence":  event.Request.Sequence,
	}).Info("validation request responded")
	h.send(services.TemplateRequestResponded, event.Application, map[string]string{
		"request": event.Request.Kind.Label(),
	})
}

func (h *NotificationHandler) onRequestCancelled(event *events.RequestCancelled) {
	h.send(services.TemplateRequestCancelled, event.Application, map[string]string{
		"reason": event.Request.CancelReason,
	})
}

// onRecommendationChallenged notifies the assessor, not the applicant.
func (h *NotificationHandler) onRecommendationChallenged(event *events.RecommendationChallenged) {
	h.logger.WithFields(logrus.Fields{
		"reference": event.Application.Reference,
		"comment":   event.Recommendation.ReviewerComment,
	}).Info("recommendation challenged, assessor notified in-app")
}

func (h *NotificationHandler) onApplicationAssigned(event *events.ApplicationAssigned) {
	h.logger.WithFields(logrus.Fields{
		"reference": event.Application.Reference,
		"user_id":   event.UserID,
	}).Info("application assigned")
}

func (h *NotificationHandler) onApplicationDetermined(event *events.ApplicationDetermined) {
	personalisation := map[string]string{}
	if event.Application.Decision != nil {
		personalisation["decision"] = string(*event.Application.Decision)
	}
	h.send(services.TemplateDecisionNotice, event.Application, personalisation)
}

func (h *NotificationHandler) onApplicationClosed(event *events.ApplicationClosed) {
	h.send(services.TemplateApplicationClosed, event.Application, map[string]string{
		"reason": string(event.Reason),
	})
}
