package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/pkg/composables"
)

const planningApplicationColumns = `
	id,
	tenant_id,
	reference,
	application_type,
	status,
	description,
	applicant_name,
	applicant_email,
	decision,
	documents_validated_at,
	valid_fee,
	documents_missing,
	constraints_checked,
	payment_amount,
	target_date,
	determined_at,
	closed_or_cancellation_comment,
	closed_at,
	assigned_user_id,
	audit_log,
	created_at,
	updated_at`

type PlanningApplicationRepository struct{}

func NewPlanningApplicationRepository() *PlanningApplicationRepository {
	return &PlanningApplicationRepository{}
}

func (r *PlanningApplicationRepository) Create(ctx context.Context, p *planningapplication.PlanningApplication) (*planningapplication.PlanningApplication, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var auditLog []byte
	if len(p.AuditLog) > 0 {
		auditLog = p.AuditLog
	}

	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
	INSERT INTO planning_applications (
		tenant_id,
		reference,
		application_type,
		status,
		description,
		applicant_name,
		applicant_email,
		payment_amount,
		target_date,
		audit_log
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)
	RETURNING id
	`,
		pgUUID(p.TenantID),
		p.Reference,
		string(p.ApplicationType),
		string(p.Status),
		p.Description,
		p.ApplicantName,
		p.ApplicantEmail,
		p.PaymentAmount,
		p.TargetDate,
		auditLog,
	).Scan(&id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *PlanningApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*planningapplication.PlanningApplication, error) {
	return r.getOne(ctx, `WHERE tenant_id = $1 AND id = $2`, pgUUID(id))
}

func (r *PlanningApplicationRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*planningapplication.PlanningApplication, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
	SELECT `+planningApplicationColumns+`
	FROM planning_applications
	WHERE tenant_id = $1 AND id = $2
	FOR UPDATE
	`, pgUUID(tenantID), pgUUID(id))
	return scanPlanningApplication(row)
}

func (r *PlanningApplicationRepository) GetByReference(ctx context.Context, reference string) (*planningapplication.PlanningApplication, error) {
	return r.getOne(ctx, `WHERE tenant_id = $1 AND reference = $2`, reference)
}

func (r *PlanningApplicationRepository) getOne(ctx context.Context, where string, arg any) (*planningapplication.PlanningApplication, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
	SELECT `+planningApplicationColumns+`
	FROM planning_applications
	`+where, pgUUID(tenantID), arg)
	return scanPlanningApplication(row)
}

func (r *PlanningApplicationRepository) GetPaginated(ctx context.Context, params *planningapplication.FindParams) ([]*planningapplication.PlanningApplication, int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := "WHERE tenant_id = $1"
	args := []any{pgUUID(tenantID)}
	if params.Status != "" {
		where += " AND status = $2"
		args = append(args, string(params.Status))
	}

	var total int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM planning_applications `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
	SELECT %s
	FROM planning_applications
	%s
	ORDER BY created_at DESC
	LIMIT %d OFFSET %d
	`, planningApplicationColumns, where, limit, params.Offset)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var apps []*planningapplication.PlanningApplication
	for rows.Next() {
		app, err := scanPlanningApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

func (r *PlanningApplicationRepository) NextReferenceCounter(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var counter int64
	if err := tx.QueryRow(ctx, `SELECT nextval('planning_application_reference_seq')`).Scan(&counter); err != nil {
		return 0, err
	}
	return counter, nil
}

func (r *PlanningApplicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status planningapplication.Status) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
	UPDATE planning_applications
	SET status = $3, updated_at = now()
	WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(id), string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return planningapplication.ErrNotFound
	}
	return nil
}

// UpdateFields builds the SET list from the populated update fields only.
// Double-pointer fields distinguish "leave alone" (nil) from "set to NULL"
// (pointer to nil).
func (r *PlanningApplicationRepository) UpdateFields(ctx context.Context, id uuid.UUID, update planningapplication.Update) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	sets := []string{"updated_at = now()"}
	args := []any{pgUUID(tenantID), pgUUID(id)}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.ApplicationType != nil {
		add("application_type", string(*update.ApplicationType))
	}
	if update.Reference != nil {
		add("reference", *update.Reference)
	}
	if update.ValidFee != nil {
		add("valid_fee", *update.ValidFee)
	}
	if update.DocumentsMissing != nil {
		add("documents_missing", *update.DocumentsMissing)
	}
	if update.ConstraintsChecked != nil {
		add("constraints_checked", *update.ConstraintsChecked)
	}
	if update.PaymentAmount != nil {
		add("payment_amount", *update.PaymentAmount)
	}
	if update.TargetDate != nil {
		add("target_date", *update.TargetDate)
	}
	if update.AssignedUserID != nil {
		add("assigned_user_id", pgUUIDPtr(*update.AssignedUserID))
	}
	if len(sets) == 1 {
		return nil
	}

	tag, err := tx.Exec(ctx,
		`UPDATE planning_applications SET `+strings.Join(sets, ", ")+` WHERE tenant_id = $1 AND id = $2`,
		args...,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return planningapplication.ErrNotFound
	}
	return nil
}

func (r *PlanningApplicationRepository) SetValidationDecision(ctx context.Context, id uuid.UUID, status planningapplication.Status, documentsValidatedAt *time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
	UPDATE planning_applications
	SET status = $3, documents_validated_at = $4, updated_at = now()
	WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(id), string(status), documentsValidatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return planningapplication.ErrNotFound
	}
	return nil
}

func (r *PlanningApplicationRepository) SetDetermination(ctx context.Context, id uuid.UUID, decision planningapplication.Decision, determinedAt time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
	UPDATE planning_applications
	SET status = $3, decision = $4, determined_at = $5, updated_at = now()
	WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(id), string(planningapplication.StatusDetermined), string(decision), determinedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return planningapplication.ErrNotFound
	}
	return nil
}

func (r *PlanningApplicationRepository) SetClosure(ctx context.Context, id uuid.UUID, status planningapplication.Status, comment string, closedAt time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
	UPDATE planning_applications
	SET status = $3, closed_or_cancellation_comment = $4, closed_at = $5, updated_at = now()
	WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(id), string(status), comment, closedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return planningapplication.ErrNotFound
	}
	return nil
}

func scanPlanningApplication(row pgx.Row) (*planningapplication.PlanningApplication, error) {
	var (
		app            planningapplication.PlanningApplication
		id, tenantID   pgtype.UUID
		appType        string
		status         string
		decision       pgtype.Text
		closureComment pgtype.Text
		assignedUser   pgtype.UUID
		auditLog       []byte
	)
	err := row.Scan(
		&id,
		&tenantID,
		&app.Reference,
		&appType,
		&status,
		&app.Description,
		&app.ApplicantName,
		&app.ApplicantEmail,
		&decision,
		&app.DocumentsValidatedAt,
		&app.ValidFee,
		&app.DocumentsMissing,
		&app.ConstraintsChecked,
		&app.PaymentAmount,
		&app.TargetDate,
		&app.DeterminedAt,
		&closureComment,
		&app.ClosedAt,
		&assignedUser,
		&auditLog,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, planningapplication.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	app.ID = uuid.UUID(id.Bytes)
	app.TenantID = uuid.UUID(tenantID.Bytes)
	app.ApplicationType = planningapplication.ApplicationType(appType)
	app.Status = planningapplication.Status(status)
	if decision.Valid {
		d := planningapplication.Decision(decision.String)
		app.Decision = &d
	}
	if closureComment.Valid {
		comment := closureComment.String
		app.ClosedOrCancellationComment = &comment
	}
	app.AssignedUserID = uuidPtr(assignedUser)
	app.AuditLog = auditLog
	return &app, nil
}

var _ planningapplication.Repository = (*PlanningApplicationRepository)(nil)
