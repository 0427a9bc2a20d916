package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/bops-digital/bops/modules/bops/domain/audit"
	"github.com/bops-digital/bops/modules/bops/domain/document"
	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/recommendation"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
	"github.com/bops-digital/bops/pkg/composables"
	"github.com/bops-digital/bops/pkg/constants"
	"github.com/bops-digital/bops/pkg/eventbus"
	"github.com/bops-digital/bops/pkg/repo"
)

// stubTx satisfies repo.Tx so inTx joins the test context instead of opening
// a real transaction. The in-memory repositories never touch it.
type stubTx struct{}

var errNoDatabase = errors.New("no database in tests")

func (stubTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errNoDatabase
}

func (stubTx) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{}
}

func (stubTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoDatabase
}

type errRow struct{}

func (errRow) Scan(...any) error { return errNoDatabase }

var _ repo.Tx = stubTx{}

// serviceCtx carries everything a transition needs outside a real request:
// an ambient transaction and an acting officer.
func serviceCtx() context.Context {
	ctx := context.WithValue(context.Background(), constants.TxKey, stubTx{})
	return composables.WithActor(ctx, composables.Actor{UserID: uuid.New(), Name: "officer"})
}

// ---- in-memory repositories ----

type memoryApplicationRepo struct {
	apps    map[uuid.UUID]*planningapplication.PlanningApplication
	order   []uuid.UUID
	counter int64
}

func newMemoryApplicationRepo() *memoryApplicationRepo {
	return &memoryApplicationRepo{apps: map[uuid.UUID]*planningapplication.PlanningApplication{}}
}

func (r *memoryApplicationRepo) Create(_ context.Context, p *planningapplication.PlanningApplication) (*planningapplication.PlanningApplication, error) {
	stored := *p
	stored.ID = uuid.New()
	now := time.Now().UTC()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.apps[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	out := stored
	return &out, nil
}

func (r *memoryApplicationRepo) GetByID(_ context.Context, id uuid.UUID) (*planningapplication.PlanningApplication, error) {
	stored, ok := r.apps[id]
	if !ok {
		return nil, planningapplication.ErrNotFound
	}
	out := *stored
	return &out, nil
}

func (r *memoryApplicationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*planningapplication.PlanningApplication, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryApplicationRepo) GetByReference(_ context.Context, reference string) (*planningapplication.PlanningApplication, error) {
	for _, stored := range r.apps {
		if stored.Reference == reference {
			out := *stored
			return &out, nil
		}
	}
	return nil, planningapplication.ErrNotFound
}

func (r *memoryApplicationRepo) GetPaginated(_ context.Context, params *planningapplication.FindParams) ([]*planningapplication.PlanningApplication, int64, error) {
	var out []*planningapplication.PlanningApplication
	for _, id := range r.order {
		stored := r.apps[id]
		if params.Status != "" && stored.Status != params.Status {
			continue
		}
		copied := *stored
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *memoryApplicationRepo) NextReferenceCounter(context.Context) (int64, error) {
	r.counter++
	return r.counter, nil
}

func (r *memoryApplicationRepo) UpdateStatus(_ context.Context, id uuid.UUID, status planningapplication.Status) error {
	stored, ok := r.apps[id]
	if !ok {
		return planningapplication.ErrNotFound
	}
	stored.Status = status
	return nil
}

func (r *memoryApplicationRepo) UpdateFields(_ context.Context, id uuid.UUID, update planningapplication.Update) error {
	stored, ok := r.apps[id]
	if !ok {
		return planningapplication.ErrNotFound
	}
	if update.Description != nil {
		stored.Description = *update.Description
	}
	if update.ApplicationType != nil {
		stored.ApplicationType = *update.ApplicationType
	}
	if update.Reference != nil {
		stored.Reference = *update.Reference
	}
	if update.ValidFee != nil {
		stored.ValidFee = *update.ValidFee
	}
	if update.DocumentsMissing != nil {
		stored.DocumentsMissing = *update.DocumentsMissing
	}
	if update.ConstraintsChecked != nil {
		stored.ConstraintsChecked = *update.ConstraintsChecked
	}
	if update.PaymentAmount != nil {
		stored.PaymentAmount = *update.PaymentAmount
	}
	if update.TargetDate != nil {
		stored.TargetDate = *update.TargetDate
	}
	if update.AssignedUserID != nil {
		stored.AssignedUserID = *update.AssignedUserID
	}
	return nil
}

func (r *memoryApplicationRepo) SetValidationDecision(_ context.Context, id uuid.UUID, status planningapplication.Status, documentsValidatedAt *time.Time) error {
	stored, ok := r.apps[id]
	if !ok {
		return planningapplication.ErrNotFound
	}
	stored.Status = status
	stored.DocumentsValidatedAt = documentsValidatedAt
	return nil
}

func (r *memoryApplicationRepo) SetDetermination(_ context.Context, id uuid.UUID, decision planningapplication.Decision, determinedAt time.Time) error {
	stored, ok := r.apps[id]
	if !ok {
		return planningapplication.ErrNotFound
	}
	stored.Status = planningapplication.StatusDetermined
	stored.Decision = &decision
	stored.DeterminedAt = &determinedAt
	return nil
}

func (r *memoryApplicationRepo) SetClosure(_ context.Context, id uuid.UUID, status planningapplication.Status, comment string, closedAt time.Time) error {
	stored, ok := r.apps[id]
	if !ok {
		return planningapplication.ErrNotFound
	}
	stored.Status = status
	stored.ClosedOrCancellationComment = &comment
	stored.ClosedAt = &closedAt
	return nil
}

var _ planningapplication.Repository = (*memoryApplicationRepo)(nil)

type memoryRequestRepo struct {
	requests map[uuid.UUID]*validationrequest.ValidationRequest
	order    []uuid.UUID
}

func newMemoryRequestRepo() *memoryRequestRepo {
	return &memoryRequestRepo{requests: map[uuid.UUID]*validationrequest.ValidationRequest{}}
}

func (r *memoryRequestRepo) Create(_ context.Context, v *validationrequest.ValidationRequest) (*validationrequest.ValidationRequest, error) {
	stored := *v
	stored.ID = uuid.New()
	now := time.Now().UTC()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.requests[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	out := stored
	return &out, nil
}

func (r *memoryRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*validationrequest.ValidationRequest, error) {
	stored, ok := r.requests[id]
	if !ok {
		return nil, validationrequest.ErrNotFound
	}
	out := *stored
	return &out, nil
}

func (r *memoryRequestRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*validationrequest.ValidationRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryRequestRepo) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]*validationrequest.ValidationRequest, error) {
	var out []*validationrequest.ValidationRequest
	for _, id := range r.order {
		stored, ok := r.requests[id]
		if !ok || stored.ApplicationID != applicationID {
			continue
		}
		copied := *stored
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memoryRequestRepo) NextSequence(_ context.Context, applicationID uuid.UUID, kind validationrequest.Kind) (int, error) {
	max := 0
	for _, stored := range r.requests {
		if stored.ApplicationID == applicationID && stored.Kind == kind && stored.Sequence > max {
			max = stored.Sequence
		}
	}
	return max + 1, nil
}

func (r *memoryRequestRepo) Update(_ context.Context, v *validationrequest.ValidationRequest) error {
	if _, ok := r.requests[v.ID]; !ok {
		return validationrequest.ErrNotFound
	}
	stored := *v
	r.requests[v.ID] = &stored
	return nil
}

func (r *memoryRequestRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.requests[id]; !ok {
		return validationrequest.ErrNotFound
	}
	delete(r.requests, id)
	return nil
}

var _ validationrequest.Repository = (*memoryRequestRepo)(nil)

type memoryRecommendationRepo struct {
	recs  map[uuid.UUID]*recommendation.Recommendation
	order []uuid.UUID
}

func newMemoryRecommendationRepo() *memoryRecommendationRepo {
	return &memoryRecommendationRepo{recs: map[uuid.UUID]*recommendation.Recommendation{}}
}

func (r *memoryRecommendationRepo) Create(_ context.Context, rec *recommendation.Recommendation) (*recommendation.Recommendation, error) {
	stored := *rec
	stored.ID = uuid.New()
	now := time.Now().UTC()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.recs[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	out := stored
	return &out, nil
}

func (r *memoryRecommendationRepo) GetByID(_ context.Context, id uuid.UUID) (*recommendation.Recommendation, error) {
	stored, ok := r.recs[id]
	if !ok {
		return nil, recommendation.ErrNotFound
	}
	out := *stored
	return &out, nil
}

func (r *memoryRecommendationRepo) Latest(_ context.Context, applicationID uuid.UUID) (*recommendation.Recommendation, error) {
	for i := len(r.order) - 1; i >= 0; i-- {
		stored := r.recs[r.order[i]]
		if stored.ApplicationID == applicationID {
			out := *stored
			return &out, nil
		}
	}
	return nil, recommendation.ErrNotFound
}

func (r *memoryRecommendationRepo) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]*recommendation.Recommendation, error) {
	var out []*recommendation.Recommendation
	for _, id := range r.order {
		stored := r.recs[id]
		if stored.ApplicationID != applicationID {
			continue
		}
		copied := *stored
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memoryRecommendationRepo) Update(_ context.Context, rec *recommendation.Recommendation) error {
	if _, ok := r.recs[rec.ID]; !ok {
		return recommendation.ErrNotFound
	}
	stored := *rec
	r.recs[rec.ID] = &stored
	return nil
}

var _ recommendation.Repository = (*memoryRecommendationRepo)(nil)

type memoryDocumentRepo struct {
	docs  map[uuid.UUID]*document.Document
	order []uuid.UUID
}

func newMemoryDocumentRepo() *memoryDocumentRepo {
	return &memoryDocumentRepo{docs: map[uuid.UUID]*document.Document{}}
}

func (r *memoryDocumentRepo) Create(_ context.Context, d *document.Document) (*document.Document, error) {
	stored := *d
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now().UTC()
	r.docs[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	out := stored
	return &out, nil
}

func (r *memoryDocumentRepo) GetByID(_ context.Context, id uuid.UUID) (*document.Document, error) {
	stored, ok := r.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	out := *stored
	return &out, nil
}

func (r *memoryDocumentRepo) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]*document.Document, error) {
	var out []*document.Document
	for _, id := range r.order {
		stored := r.docs[id]
		if stored.ApplicationID != applicationID {
			continue
		}
		copied := *stored
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memoryDocumentRepo) Update(_ context.Context, d *document.Document) error {
	if _, ok := r.docs[d.ID]; !ok {
		return document.ErrNotFound
	}
	stored := *d
	r.docs[d.ID] = &stored
	return nil
}

var _ document.Repository = (*memoryDocumentRepo)(nil)

type memoryAuditRepo struct {
	inserts []audit.Insert
}

func (r *memoryAuditRepo) Create(_ context.Context, insert audit.Insert) (uuid.UUID, error) {
	if err := insert.Validate(); err != nil {
		return uuid.Nil, err
	}
	r.inserts = append(r.inserts, insert)
	return uuid.New(), nil
}

func (r *memoryAuditRepo) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]*audit.Entry, error) {
	var out []*audit.Entry
	for _, insert := range r.inserts {
		if insert.ApplicationID != applicationID {
			continue
		}
		information, err := insert.MarshalInformation()
		if err != nil {
			return nil, err
		}
		out = append(out, &audit.Entry{
			ApplicationID:       insert.ApplicationID,
			ActivityType:        insert.ActivityType,
			ActivityInformation: information,
			Comment:             insert.Comment,
		})
	}
	return out, nil
}

func (r *memoryAuditRepo) activityTypes() []string {
	types := make([]string, 0, len(r.inserts))
	for _, insert := range r.inserts {
		types = append(types, insert.ActivityType)
	}
	return types
}

var _ audit.Repository = (*memoryAuditRepo)(nil)

// ---- fixture ----

type fixture struct {
	apps     *memoryApplicationRepo
	requests *memoryRequestRepo
	recs     *memoryRecommendationRepo
	docs     *memoryDocumentRepo
	audits   *memoryAuditRepo
	bus      eventbus.EventBus

	applications *ApplicationService
	requestSvc   *ValidationRequestService
}

func newFixture() *fixture {
	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		apps:     newMemoryApplicationRepo(),
		requests: newMemoryRequestRepo(),
		recs:     newMemoryRecommendationRepo(),
		docs:     newMemoryDocumentRepo(),
		audits:   &memoryAuditRepo{},
		bus:      eventbus.NewEventPublisher(log),
	}
	f.applications = NewApplicationService(f.apps, f.requests, f.recs, f.docs, f.audits, f.bus, true)
	f.requestSvc = NewValidationRequestService(f.apps, f.requests, f.docs, f.audits, f.bus, 15)
	return f
}

func (f *fixture) seedApplication(tenantID uuid.UUID, status planningapplication.Status) *planningapplication.PlanningApplication {
	now := time.Now().UTC()
	counter, _ := f.apps.NextReferenceCounter(context.Background())
	app, err := f.apps.Create(context.Background(), &planningapplication.PlanningApplication{
		TenantID:        tenantID,
		Reference:       planningapplication.NewReference(now, counter, planningapplication.TypeLawfulnessCertificate),
		ApplicationType: planningapplication.TypeLawfulnessCertificate,
		Status:          status,
		Description:     "rear extension",
		ApplicantName:   "Jane Doe",
		ApplicantEmail:  "jane@example.com",
	})
	if err != nil {
		panic(err)
	}
	return app
}
