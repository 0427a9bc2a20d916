package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bops-digital/bops/modules/bops/domain/recommendation"
	"github.com/bops-digital/bops/pkg/composables"
)

const recommendationColumns = `
	id,
	tenant_id,
	application_id,
	decision,
	assessor_comment,
	public_comment,
	submitted,
	reviewer_comment,
	reviewed_at,
	accepted,
	created_at,
	updated_at`

type RecommendationRepository struct{}

func NewRecommendationRepository() *RecommendationRepository {
	return &RecommendationRepository{}
}

func (r *RecommendationRepository) Create(ctx context.Context, rec *recommendation.Recommendation) (*recommendation.Recommendation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
	INSERT INTO recommendations (
		tenant_id,
		application_id,
		decision,
		assessor_comment,
		public_comment
	)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id
	`,
		pgUUID(rec.TenantID),
		pgUUID(rec.ApplicationID),
		pgText(rec.Decision),
		pgText(rec.AssessorComment),
		pgText(rec.PublicComment),
	).Scan(&id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *RecommendationRepository) GetByID(ctx context.Context, id uuid.UUID) (*recommendation.Recommendation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
	SELECT `+recommendationColumns+`
	FROM recommendations
	WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(id))
	return scanRecommendation(row)
}

func (r *RecommendationRepository) Latest(ctx context.Context, applicationID uuid.UUID) (*recommendation.Recommendation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
	SELECT `+recommendationColumns+`
	FROM recommendations
	WHERE tenant_id = $1 AND application_id = $2
	ORDER BY created_at DESC
	LIMIT 1
	`, pgUUID(tenantID), pgUUID(applicationID))
	return scanRecommendation(row)
}

func (r *RecommendationRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*recommendation.Recommendation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
	SELECT `+recommendationColumns+`
	FROM recommendations
	WHERE tenant_id = $1 AND application_id = $2
	ORDER BY created_at
	`, pgUUID(tenantID), pgUUID(applicationID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*recommendation.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *RecommendationRepository) Update(ctx context.Context, rec *recommendation.Recommendation) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
	UPDATE recommendations
	SET
		decision = $3,
		assessor_comment = $4,
		public_comment = $5,
		submitted = $6,
		reviewer_comment = $7,
		reviewed_at = $8,
		accepted = $9,
		updated_at = now()
	WHERE tenant_id = $1 AND id = $2
	`,
		pgUUID(tenantID),
		pgUUID(rec.ID),
		pgText(rec.Decision),
		pgText(rec.AssessorComment),
		pgText(rec.PublicComment),
		rec.Submitted,
		pgText(rec.ReviewerComment),
		rec.ReviewedAt,
		rec.Accepted,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return recommendation.ErrNotFound
	}
	return nil
}

func scanRecommendation(row pgx.Row) (*recommendation.Recommendation, error) {
	var (
		rec             recommendation.Recommendation
		id, tenantID    pgtype.UUID
		appID           pgtype.UUID
		decision        pgtype.Text
		assessorComment pgtype.Text
		publicComment   pgtype.Text
		reviewerComment pgtype.Text
	)
	err := row.Scan(
		&id,
		&tenantID,
		&appID,
		&decision,
		&assessorComment,
		&publicComment,
		&rec.Submitted,
		&reviewerComment,
		&rec.ReviewedAt,
		&rec.Accepted,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, recommendation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.ID = uuid.UUID(id.Bytes)
	rec.TenantID = uuid.UUID(tenantID.Bytes)
	rec.ApplicationID = uuid.UUID(appID.Bytes)
	rec.Decision = textValue(decision)
	rec.AssessorComment = textValue(assessorComment)
	rec.PublicComment = textValue(publicComment)
	rec.ReviewerComment = textValue(reviewerComment)
	return &rec, nil
}

var _ recommendation.Repository = (*RecommendationRepository)(nil)
