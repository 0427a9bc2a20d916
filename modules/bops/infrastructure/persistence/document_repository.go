package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bops-digital/bops/modules/bops/domain/document"
	"github.com/bops-digital/bops/pkg/composables"
)

const documentColumns = `
	id,
	tenant_id,
	application_id,
	filename,
	content_type,
	tag,
	validated,
	invalidated_document_reason,
	archived_at,
	archive_reason,
	representable,
	created_at`

type DocumentRepository struct{}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{}
}

func (r *DocumentRepository) Create(ctx context.Context, d *document.Document) (*document.Document, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
	INSERT INTO documents (
		tenant_id,
		application_id,
		filename,
		content_type,
		tag,
		representable
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
	`,
		pgUUID(d.TenantID),
		pgUUID(d.ApplicationID),
		d.Filename,
		pgText(d.ContentType),
		string(d.Tag),
		d.Representable,
	).Scan(&id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
	SELECT `+documentColumns+`
	FROM documents
	WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(id))
	return scanDocument(row)
}

func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*document.Document, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
	SELECT `+documentColumns+`
	FROM documents
	WHERE tenant_id = $1 AND application_id = $2
	ORDER BY created_at
	`, pgUUID(tenantID), pgUUID(applicationID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DocumentRepository) Update(ctx context.Context, d *document.Document) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
	UPDATE documents
	SET
		filename = $3,
		content_type = $4,
		tag = $5,
		validated = $6,
		invalidated_document_reason = $7,
		archived_at = $8,
		archive_reason = $9,
		representable = $10
	WHERE tenant_id = $1 AND id = $2
	`,
		pgUUID(tenantID),
		pgUUID(d.ID),
		d.Filename,
		pgText(d.ContentType),
		string(d.Tag),
		d.Validated,
		pgText(d.InvalidatedDocumentReason),
		d.ArchivedAt,
		pgText(d.ArchiveReason),
		d.Representable,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*document.Document, error) {
	var (
		doc               document.Document
		id, tenantID      pgtype.UUID
		appID             pgtype.UUID
		contentType       pgtype.Text
		tag               string
		invalidatedReason pgtype.Text
		archiveReason     pgtype.Text
	)
	err := row.Scan(
		&id,
		&tenantID,
		&appID,
		&doc.Filename,
		&contentType,
		&tag,
		&doc.Validated,
		&invalidatedReason,
		&doc.ArchivedAt,
		&archiveReason,
		&doc.Representable,
		&doc.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.ID = uuid.UUID(id.Bytes)
	doc.TenantID = uuid.UUID(tenantID.Bytes)
	doc.ApplicationID = uuid.UUID(appID.Bytes)
	doc.ContentType = textValue(contentType)
	doc.Tag = document.Tag(tag)
	doc.InvalidatedDocumentReason = textValue(invalidatedReason)
	doc.ArchiveReason = textValue(archiveReason)
	return &doc, nil
}

var _ document.Repository = (*DocumentRepository)(nil)
