package services

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notification template identifiers. The actual templates live in the
// external notification service; the core only names them.
const (
	TemplateRequestsSent             = "validation-requests-sent"
	TemplateRequestCancelled         = "validation-request-cancelled"
	TemplateRequestResponded         = "validation-request-responded"
	TemplateApplicationValidated     = "application-validated"
	TemplateRecommendationChallenged = "recommendation-challenged"
	TemplateOfficerAssigned          = "officer-assigned"
	TemplateDecisionNotice           = "decision-notice"
	TemplateApplicationClosed        = "application-closed"
)

// Notifier is the outbound notification contract. Send failures must be
// handled by the caller as non-blocking warnings; they never roll back the
// transition that triggered them.
type Notifier interface {
	Send(ctx context.Context, template, recipient string, personalisation map[string]string) (reference string, err error)
}

// LogNotifier records sends in the log instead of delivering them. Used in
// development and as the fallback when no API key is configured.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n *LogNotifier) Send(_ context.Context, template, recipient string, personalisation map[string]string) (string, error) {
	n.Logger.WithFields(logrus.Fields{
		"template":        template,
		"recipient":       recipient,
		"personalisation": personalisation,
	}).Info("notification send (log only)")
	return "log-" + template, nil
}
