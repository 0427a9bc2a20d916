package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bops-digital/bops/modules/bops/domain/appeal"
	"github.com/bops-digital/bops/modules/bops/domain/audit"
	"github.com/bops-digital/bops/modules/bops/domain/document"
	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/pkg/serrors"
)

// AppealService runs the post-determination appeal sub-machine. An appeal
// never re-opens the main workflow; stage dates accumulate forward only.
type AppealService struct {
	apps    planningapplication.Repository
	appeals appeal.Repository
	docs    document.Repository
	audits  audit.Repository
}

func NewAppealService(
	apps planningapplication.Repository,
	appeals appeal.Repository,
	docs document.Repository,
	audits audit.Repository,
) *AppealService {
	return &AppealService{apps: apps, appeals: appeals, docs: docs, audits: audits}
}

func (s *AppealService) record(ctx context.Context, applicationID uuid.UUID, activityType string, information any, comment string) error {
	entry := actorFrom(ctx)
	entry.ApplicationID = applicationID
	entry.ActivityType = activityType
	entry.ActivityInformation = information
	entry.Comment = comment
	_, err := s.audits.Create(ctx, entry)
	return err
}

func stageField(stage appeal.Stage) string {
	return string(stage) + "_at"
}

// ---- lodge ----

type LodgeAppealInput struct {
	Reason   string
	LodgedAt string
	// Evidence optionally attaches the appeal paperwork.
	EvidenceFilename string
	EvidenceContent  []byte
}

// Lodge opens an appeal against a determined application.
func (s *AppealService) Lodge(ctx context.Context, tenantID, applicationID uuid.UUID, in LodgeAppealInput) (*appeal.Appeal, error) {
	verrs := make(serrors.ValidationErrors)
	if strings.TrimSpace(in.Reason) == "" {
		verrs.Add("reason", "can't be blank")
	}
	lodgedAt, err := time.Parse("2006-01-02", strings.TrimSpace(in.LodgedAt))
	if err != nil {
		verrs.Add("lodged_at", "lodged at must be a valid date")
	}
	if in.EvidenceFilename != "" {
		if err := document.ValidateSupportingFile(in.EvidenceFilename, in.EvidenceContent); err != nil {
			verrs.Add("file", err.Error())
		}
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	return inTx(ctx, tenantID, func(txCtx context.Context) (*appeal.Appeal, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		if app.Status != planningapplication.StatusDetermined {
			return nil, newStateConflict("only a determined application can be appealed")
		}
		if _, err := s.appeals.GetByApplication(txCtx, applicationID); err == nil {
			return nil, newStateConflict("an appeal has already been lodged for this application")
		} else if !errors.Is(err, appeal.ErrNotFound) {
			return nil, mapPgError(err)
		}

		a := &appeal.Appeal{
			TenantID:      tenantID,
			ApplicationID: applicationID,
			Reason:        strings.TrimSpace(in.Reason),
		}
		if err := a.ValidateStageDate(appeal.StageLodged, lodgedAt, time.Now().UTC()); err != nil {
			stageErrs := make(serrors.ValidationErrors)
			stageErrs.Add(stageField(appeal.StageLodged), err.Error())
			return nil, stageErrs
		}
		a.SetStageDate(appeal.StageLodged, lodgedAt)

		created, err := s.appeals.Create(txCtx, a)
		if err != nil {
			return nil, mapPgError(err)
		}

		if in.EvidenceFilename != "" {
			if _, err := s.docs.Create(txCtx, &document.Document{
				TenantID:      tenantID,
				ApplicationID: applicationID,
				Filename:      in.EvidenceFilename,
				Tag:           document.TagAppeal,
				Representable: true,
			}); err != nil {
				return nil, mapPgError(err)
			}
		}

		if err := s.record(txCtx, applicationID, "appeal_lodged", map[string]string{
			"lodged_at": lodgedAt.Format("2006-01-02"),
		}, a.Reason); err != nil {
			return nil, mapPgError(err)
		}
		return created, nil
	})
}

// ---- advance ----

type AdvanceAppealInput struct {
	Stage appeal.Stage
	Date  string
	// Decision is required when the stage is determined.
	Decision appeal.Decision
	// DecisionLetterFilename optionally attaches the inspectorate's letter
	// at the determined stage.
	DecisionLetterFilename string
	DecisionLetterContent  []byte
}

// Advance records the next stage of the appeal. Each stage date must be a
// real date, not in the future, and not before the latest earlier recorded
// stage's date. Intermediate stages may be skipped.
func (s *AppealService) Advance(ctx context.Context, tenantID, applicationID uuid.UUID, in AdvanceAppealInput) (*appeal.Appeal, error) {
	verrs := make(serrors.ValidationErrors)
	if !in.Stage.IsValid() || in.Stage == appeal.StageLodged {
		verrs.Add("stage", "is not a valid option")
		return nil, verrs
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(in.Date))
	if err != nil {
		verrs.Add(stageField(in.Stage), in.Stage.Label()+" must be a valid date")
	}
	if in.Stage == appeal.StageDetermined {
		if !in.Decision.IsValid() {
			verrs.Add("decision", "Please select one of the options")
		}
		if in.DecisionLetterFilename != "" {
			if err := document.ValidateSupportingFile(in.DecisionLetterFilename, in.DecisionLetterContent); err != nil {
				verrs.Add("file", err.Error())
			}
		}
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	return inTx(ctx, tenantID, func(txCtx context.Context) (*appeal.Appeal, error) {
		a, err := s.appeals.GetByApplication(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		if a.StageDate(in.Stage) != nil {
			return nil, newStateConflict("this appeal stage has already been recorded")
		}
		if err := a.ValidateStageDate(in.Stage, date, time.Now().UTC()); err != nil {
			stageErrs := make(serrors.ValidationErrors)
			stageErrs.Add(stageField(in.Stage), err.Error())
			return nil, stageErrs
		}
		a.SetStageDate(in.Stage, date)
		if in.Stage == appeal.StageDetermined {
			decision := in.Decision
			a.Decision = &decision
		}
		if err := s.appeals.Update(txCtx, a); err != nil {
			return nil, mapPgError(err)
		}

		if in.Stage == appeal.StageDetermined && in.DecisionLetterFilename != "" {
			if _, err := s.docs.Create(txCtx, &document.Document{
				TenantID:      tenantID,
				ApplicationID: applicationID,
				Filename:      in.DecisionLetterFilename,
				Tag:           document.TagAppealDecision,
				Representable: true,
			}); err != nil {
				return nil, mapPgError(err)
			}
		}

		information := map[string]string{stageField(in.Stage): date.Format("2006-01-02")}
		if a.Decision != nil && in.Stage == appeal.StageDetermined {
			information["decision"] = string(*a.Decision)
		}
		if err := s.record(txCtx, applicationID, "appeal_"+string(in.Stage), information, ""); err != nil {
			return nil, mapPgError(err)
		}
		return a, nil
	})
}

// ---- query ----

func (s *AppealService) Get(ctx context.Context, tenantID, applicationID uuid.UUID) (*appeal.Appeal, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*appeal.Appeal, error) {
		a, err := s.appeals.GetByApplication(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		return a, nil
	})
}
