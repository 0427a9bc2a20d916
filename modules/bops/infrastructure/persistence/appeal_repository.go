package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bops-digital/bops/modules/bops/domain/appeal"
	"github.com/bops-digital/bops/pkg/composables"
)

const appealColumns = `
	id,
	tenant_id,
	application_id,
	reason,
	lodged_at,
	validated_at,
	started_at,
	determined_at,
	decision,
	created_at,
	updated_at`

type AppealRepository struct{}

func NewAppealRepository() *AppealRepository {
	return &AppealRepository{}
}

func (r *AppealRepository) Create(ctx context.Context, a *appeal.Appeal) (*appeal.Appeal, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
	INSERT INTO appeals (
		tenant_id,
		application_id,
		reason,
		lodged_at
	)
	VALUES ($1, $2, $3, $4)
	RETURNING id
	`,
		pgUUID(a.TenantID),
		pgUUID(a.ApplicationID),
		a.Reason,
		a.LodgedAt,
	).Scan(&id); err != nil {
		return nil, err
	}
	return r.getByID(ctx, id)
}

func (r *AppealRepository) getByID(ctx context.Context, id uuid.UUID) (*appeal.Appeal, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
	SELECT `+appealColumns+`
	FROM appeals
	WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(id))
	return scanAppeal(row)
}

func (r *AppealRepository) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*appeal.Appeal, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
	SELECT `+appealColumns+`
	FROM appeals
	WHERE tenant_id = $1 AND application_id = $2
	`, pgUUID(tenantID), pgUUID(applicationID))
	return scanAppeal(row)
}

func (r *AppealRepository) Update(ctx context.Context, a *appeal.Appeal) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	var decision pgtype.Text
	if a.Decision != nil {
		decision = pgtype.Text{String: string(*a.Decision), Valid: true}
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
	UPDATE appeals
	SET
		reason = $3,
		lodged_at = $4,
		validated_at = $5,
		started_at = $6,
		determined_at = $7,
		decision = $8,
		updated_at = now()
	WHERE tenant_id = $1 AND id = $2
	`,
		pgUUID(tenantID),
		pgUUID(a.ID),
		a.Reason,
		a.LodgedAt,
		a.ValidatedAt,
		a.StartedAt,
		a.DeterminedAt,
		decision,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return appeal.ErrNotFound
	}
	return nil
}

func scanAppeal(row pgx.Row) (*appeal.Appeal, error) {
	var (
		a            appeal.Appeal
		id, tenantID pgtype.UUID
		appID        pgtype.UUID
		decision     pgtype.Text
	)
	err := row.Scan(
		&id,
		&tenantID,
		&appID,
		&a.Reason,
		&a.LodgedAt,
		&a.ValidatedAt,
		&a.StartedAt,
		&a.DeterminedAt,
		&decision,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, appeal.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.ID = uuid.UUID(id.Bytes)
	a.TenantID = uuid.UUID(tenantID.Bytes)
	a.ApplicationID = uuid.UUID(appID.Bytes)
	if decision.Valid {
		d := appeal.Decision(decision.String)
		a.Decision = &d
	}
	return &a, nil
}

var _ appeal.Repository = (*AppealRepository)(nil)
