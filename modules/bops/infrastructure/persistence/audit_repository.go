package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bops-digital/bops/modules/bops/domain/audit"
	"github.com/bops-digital/bops/pkg/composables"
)

// AuditRepository is append-only by construction: there is no update or
// delete statement in this file and the table carries no such grants.
type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Create(ctx context.Context, insert audit.Insert) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	if err := insert.Validate(); err != nil {
		return uuid.Nil, err
	}
	information, err := insert.MarshalInformation()
	if err != nil {
		return uuid.Nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	var userID, apiUserID pgtype.UUID
	if insert.UserID != uuid.Nil {
		userID = pgUUID(insert.UserID)
	}
	if insert.APIUserID != uuid.Nil {
		apiUserID = pgUUID(insert.APIUserID)
	}

	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
	INSERT INTO audit_entries (
		tenant_id,
		application_id,
		activity_type,
		activity_information,
		comment,
		user_id,
		api_user_id
	)
	VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)
	RETURNING id
	`,
		pgUUID(tenantID),
		pgUUID(insert.ApplicationID),
		insert.ActivityType,
		information,
		pgText(insert.Comment),
		userID,
		apiUserID,
	).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *AuditRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*audit.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
	SELECT
		id,
		tenant_id,
		application_id,
		activity_type,
		activity_information,
		comment,
		user_id,
		api_user_id,
		created_at
	FROM audit_entries
	WHERE tenant_id = $1 AND application_id = $2
	ORDER BY created_at
	`, pgUUID(tenantID), pgUUID(applicationID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var (
			entry             audit.Entry
			id, tenantID      pgtype.UUID
			appID             pgtype.UUID
			information       []byte
			comment           pgtype.Text
			userID, apiUserID pgtype.UUID
		)
		if err := rows.Scan(
			&id,
			&tenantID,
			&appID,
			&entry.ActivityType,
			&information,
			&comment,
			&userID,
			&apiUserID,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.ID = uuid.UUID(id.Bytes)
		entry.TenantID = uuid.UUID(tenantID.Bytes)
		entry.ApplicationID = uuid.UUID(appID.Bytes)
		entry.ActivityInformation = information
		entry.Comment = textValue(comment)
		entry.UserID = uuidPtr(userID)
		entry.APIUserID = uuidPtr(apiUserID)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ audit.Repository = (*AuditRepository)(nil)
