package composables

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bops-digital/bops/pkg/constants"
)

type Params struct {
	IP        string
	UserAgent string
	RequestID string
	Request   *http.Request
	Writer    http.ResponseWriter
}

func UseParams(ctx context.Context) (*Params, bool) {
	params, ok := ctx.Value(constants.ParamsKey).(*Params)
	return params, ok
}

func WithParams(ctx context.Context, params *Params) context.Context {
	return context.WithValue(ctx, constants.ParamsKey, params)
}

// UseLogger returns the request-scoped logger entry installed by middleware,
// falling back to the process logger when none was installed.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(constants.LoggerKey)
	if logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logger.(*logrus.Entry)
}

func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, entry)
}

// Actor identifies who triggered a command: a signed-in officer or an API
// client acting for the applicant. Exactly one of the two ids is set.
type Actor struct {
	UserID    uuid.UUID
	APIUserID uuid.UUID
	Name      string
}

func (a Actor) IsAPIUser() bool {
	return a.APIUserID != uuid.Nil
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, constants.UserKey, actor)
}

func UseActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(constants.UserKey).(Actor)
	return actor, ok
}
