package persistence

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
	"github.com/bops-digital/bops/pkg/composables"
)

const validationRequestColumns = `
	id,
	tenant_id,
	application_id,
	kind,
	state,
	fee_related,
	post_validation,
	sequence,
	payload,
	response,
	notified_at,
	closed_at,
	cancelled_at,
	cancel_reason,
	created_at,
	updated_at`

type ValidationRequestRepository struct{}

func NewValidationRequestRepository() *ValidationRequestRepository {
	return &ValidationRequestRepository{}
}

func (r *ValidationRequestRepository) Create(ctx context.Context, v *validationrequest.ValidationRequest) (*validationrequest.ValidationRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(v.Payload)
	if err != nil {
		return nil, err
	}

	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
	INSERT INTO validation_requests (
		tenant_id,
		application_id,
		kind,
		state,
		fee_related,
		post_validation,
		sequence,
		payload,
		notified_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
	RETURNING id
	`,
		pgUUID(v.TenantID),
		pgUUID(v.ApplicationID),
		string(v.Kind),
		string(v.State),
		v.FeeRelated,
		v.PostValidation,
		v.Sequence,
		payload,
		v.NotifiedAt,
	).Scan(&id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *ValidationRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*validationrequest.ValidationRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
	SELECT `+validationRequestColumns+`
	FROM validation_requests
	WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(id))
	return scanValidationRequest(row)
}

func (r *ValidationRequestRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*validationrequest.ValidationRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
	SELECT `+validationRequestColumns+`
	FROM validation_requests
	WHERE tenant_id = $1 AND id = $2
	FOR UPDATE
	`, pgUUID(tenantID), pgUUID(id))
	return scanValidationRequest(row)
}

func (r *ValidationRequestRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*validationrequest.ValidationRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
	SELECT `+validationRequestColumns+`
	FROM validation_requests
	WHERE tenant_id = $1 AND application_id = $2
	ORDER BY created_at
	`, pgUUID(tenantID), pgUUID(applicationID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*validationrequest.ValidationRequest
	for rows.Next() {
		req, err := scanValidationRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *ValidationRequestRepository) NextSequence(ctx context.Context, applicationID uuid.UUID, kind validationrequest.Kind) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	var sequence int
	if err := tx.QueryRow(ctx, `
	SELECT COALESCE(MAX(sequence), 0) + 1
	FROM validation_requests
	WHERE tenant_id = $1 AND application_id = $2 AND kind = $3
	`, pgUUID(tenantID), pgUUID(applicationID), string(kind)).Scan(&sequence); err != nil {
		return 0, err
	}
	return sequence, nil
}

func (r *ValidationRequestRepository) Update(ctx context.Context, v *validationrequest.ValidationRequest) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(v.Payload)
	if err != nil {
		return err
	}
	var response []byte
	if v.Response != nil {
		response, err = json.Marshal(v.Response)
		if err != nil {
			return err
		}
	}

	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
	UPDATE validation_requests
	SET
		state = $3,
		payload = $4::jsonb,
		response = $5::jsonb,
		notified_at = $6,
		closed_at = $7,
		cancelled_at = $8,
		cancel_reason = $9,
		updated_at = now()
	WHERE tenant_id = $1 AND id = $2
	`,
		pgUUID(tenantID),
		pgUUID(v.ID),
		string(v.State),
		payload,
		response,
		v.NotifiedAt,
		v.ClosedAt,
		v.CancelledAt,
		pgText(v.CancelReason),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return validationrequest.ErrNotFound
	}
	return nil
}

func (r *ValidationRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM validation_requests WHERE tenant_id = $1 AND id = $2`, pgUUID(tenantID), pgUUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return validationrequest.ErrNotFound
	}
	return nil
}

func scanValidationRequest(row pgx.Row) (*validationrequest.ValidationRequest, error) {
	var (
		req          validationrequest.ValidationRequest
		id, tenantID pgtype.UUID
		appID        pgtype.UUID
		kind, state  string
		payload      []byte
		response     []byte
		cancelReason pgtype.Text
	)
	err := row.Scan(
		&id,
		&tenantID,
		&appID,
		&kind,
		&state,
		&req.FeeRelated,
		&req.PostValidation,
		&req.Sequence,
		&payload,
		&response,
		&req.NotifiedAt,
		&req.ClosedAt,
		&req.CancelledAt,
		&cancelReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, validationrequest.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	req.ID = uuid.UUID(id.Bytes)
	req.TenantID = uuid.UUID(tenantID.Bytes)
	req.ApplicationID = uuid.UUID(appID.Bytes)
	req.Kind = validationrequest.Kind(kind)
	req.State = validationrequest.State(state)
	req.CancelReason = textValue(cancelReason)
	if err := json.Unmarshal(payload, &req.Payload); err != nil {
		return nil, err
	}
	if len(response) > 0 {
		var resp validationrequest.Response
		if err := json.Unmarshal(response, &resp); err != nil {
			return nil, err
		}
		req.Response = &resp
	}
	return &req, nil
}

var _ validationrequest.Repository = (*ValidationRequestRepository)(nil)
