package controllers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/bops-digital/bops/modules/bops/domain/appeal"
	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
	"github.com/bops-digital/bops/modules/bops/services"
	"github.com/bops-digital/bops/pkg/application"
)

type BopsAPIController struct {
	app             application.Application
	applications    *services.ApplicationService
	requests        *services.ValidationRequestService
	recommendations *services.RecommendationService
	appeals         *services.AppealService
	apiPrefix       string
}

func NewBopsAPIController(app application.Application) application.Controller {
	return &BopsAPIController{
		app:             app,
		applications:    app.Service(services.ApplicationService{}).(*services.ApplicationService),
		requests:        app.Service(services.ValidationRequestService{}).(*services.ValidationRequestService),
		recommendations: app.Service(services.RecommendationService{}).(*services.RecommendationService),
		appeals:         app.Service(services.AppealService{}).(*services.AppealService),
		apiPrefix:       "/bops/api",
	}
}

func (c *BopsAPIController) Key() string {
	return c.apiPrefix
}

func (c *BopsAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/applications", c.CreateApplication).Methods(http.MethodPost)
	api.HandleFunc("/applications", c.ListApplications).Methods(http.MethodGet)
	api.HandleFunc("/applications/by-reference/{reference}", c.GetApplicationByReference).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}", c.GetApplication).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}", c.UpdateApplication).Methods(http.MethodPatch)
	api.HandleFunc("/applications/{id}/audit", c.GetAuditTrail).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/allowed-actions", c.GetAllowedActions).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}:assign", c.AssignApplication).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}:validation-decision", c.RecordValidationDecision).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}:change-type", c.ChangeApplicationType).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}:determine", c.DetermineApplication).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}:withdraw-or-cancel", c.WithdrawOrCancel).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}:clone", c.CloneApplication).Methods(http.MethodPost)

	api.HandleFunc("/applications/{id}/validation-requests", c.CreateValidationRequest).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/validation-requests", c.ListValidationRequests).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/blocking-reasons", c.GetBlockingReasons).Methods(http.MethodGet)
	api.HandleFunc("/validation-requests/{id}", c.GetValidationRequest).Methods(http.MethodGet)
	api.HandleFunc("/validation-requests/{id}", c.EditValidationRequest).Methods(http.MethodPatch)
	api.HandleFunc("/validation-requests/{id}", c.DeleteValidationRequest).Methods(http.MethodDelete)
	api.HandleFunc("/validation-requests/{id}:cancel", c.CancelValidationRequest).Methods(http.MethodPost)
	api.HandleFunc("/validation-requests/{id}:respond", c.RespondValidationRequest).Methods(http.MethodPost)

	api.HandleFunc("/applications/{id}/recommendation", c.SaveRecommendationDraft).Methods(http.MethodPut)
	api.HandleFunc("/applications/{id}/recommendation:submit", c.SubmitRecommendation).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/recommendation:withdraw", c.WithdrawRecommendation).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/recommendation:review", c.ReviewRecommendation).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/recommendations", c.GetRecommendationHistory).Methods(http.MethodGet)

	api.HandleFunc("/applications/{id}/appeal", c.LodgeAppeal).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/appeal", c.GetAppeal).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/appeal:advance", c.AdvanceAppeal).Methods(http.MethodPost)
}

func requireApplicationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, string, bool) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, requestID, false
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_ID", "id is not a valid uuid")
		return uuid.Nil, uuid.Nil, requestID, false
	}
	return tenantID, id, requestID, true
}

// ---- applications ----

type createApplicationRequest struct {
	Description     string          `json:"description" validate:"required"`
	ApplicationType string          `json:"application_type" validate:"required"`
	ApplicantName   string          `json:"applicant_name"`
	ApplicantEmail  string          `json:"applicant_email" validate:"required"`
	TargetDate      string          `json:"target_date"`
	PaymentAmount   string          `json:"payment_amount"`
	AuditLog        json.RawMessage `json:"audit_log"`
}

func (c *BopsAPIController) CreateApplication(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req createApplicationRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	if verrs := validateDTO(&req); verrs != nil {
		writeValidationErrors(w, requestID, verrs)
		return
	}

	in := services.CreateApplicationInput{
		Description:     req.Description,
		ApplicationType: planningapplication.ApplicationType(req.ApplicationType),
		ApplicantName:   req.ApplicantName,
		ApplicantEmail:  req.ApplicantEmail,
		AuditLog:        req.AuditLog,
	}
	if req.TargetDate != "" {
		date, err := time.Parse("2006-01-02", req.TargetDate)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "target_date must be a valid date")
			return
		}
		in.TargetDate = date
	}
	if req.PaymentAmount != "" {
		amount, err := decimal.NewFromString(req.PaymentAmount)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "payment_amount must be a decimal")
			return
		}
		in.PaymentAmount = amount
	}

	app, err := c.applications.Create(r.Context(), tenantID, in)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (c *BopsAPIController) ListApplications(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	params := &planningapplication.FindParams{
		Status: planningapplication.Status(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		params.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		params.Offset, _ = strconv.Atoi(v)
	}

	apps, total, err := c.applications.GetPaginated(r.Context(), tenantID, params)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	type listResponse struct {
		Applications []*planningapplication.PlanningApplication `json:"applications"`
		Total        int64                                      `json:"total"`
	}
	writeJSON(w, http.StatusOK, listResponse{Applications: apps, Total: total})
}

func (c *BopsAPIController) GetApplication(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	app, err := c.applications.Get(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (c *BopsAPIController) GetApplicationByReference(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	app, err := c.applications.GetByReference(r.Context(), tenantID, mux.Vars(r)["reference"])
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type updateApplicationRequest struct {
	Description        *string `json:"description"`
	ValidFee           *string `json:"valid_fee"`          // "true", "false" or "clear"
	DocumentsMissing   *string `json:"documents_missing"`  // "true", "false" or "clear"
	ConstraintsChecked *bool   `json:"constraints_checked"`
	PaymentAmount      *string `json:"payment_amount"`
	TargetDate         *string `json:"target_date"`
}

func triStateInput(raw string) (**bool, bool) {
	switch raw {
	case "true":
		v := true
		ptr := &v
		return &ptr, true
	case "false":
		v := false
		ptr := &v
		return &ptr, true
	case "clear":
		var ptr *bool
		return &ptr, true
	}
	return nil, false
}

func (c *BopsAPIController) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req updateApplicationRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}

	in := services.UpdateFieldsInput{
		Description:        req.Description,
		ConstraintsChecked: req.ConstraintsChecked,
	}
	if req.ValidFee != nil {
		value, ok := triStateInput(*req.ValidFee)
		if !ok {
			writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "valid_fee must be true, false or clear")
			return
		}
		in.ValidFee = value
	}
	if req.DocumentsMissing != nil {
		value, ok := triStateInput(*req.DocumentsMissing)
		if !ok {
			writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "documents_missing must be true, false or clear")
			return
		}
		in.DocumentsMissing = value
	}
	if req.PaymentAmount != nil {
		amount, err := decimal.NewFromString(*req.PaymentAmount)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "payment_amount must be a decimal")
			return
		}
		in.PaymentAmount = &amount
	}
	if req.TargetDate != nil {
		date, err := time.Parse("2006-01-02", *req.TargetDate)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "target_date must be a valid date")
			return
		}
		in.TargetDate = &date
	}

	app, err := c.applications.UpdateFields(r.Context(), tenantID, id, in)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (c *BopsAPIController) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	entries, err := c.applications.AuditTrail(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (c *BopsAPIController) GetAllowedActions(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	app, err := c.applications.Get(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	type action struct {
		Command string `json:"command"`
		To      string `json:"to"`
	}
	actions := []action{}
	for _, tr := range c.applications.AllowedActions(app.Status) {
		actions = append(actions, action{Command: string(tr.Command), To: string(tr.To)})
	}
	type allowedResponse struct {
		Status  string   `json:"status"`
		Actions []action `json:"actions"`
	}
	writeJSON(w, http.StatusOK, allowedResponse{Status: string(app.Status), Actions: actions})
}

type assignRequest struct {
	UserID *uuid.UUID `json:"user_id"`
}

func (c *BopsAPIController) AssignApplication(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	app, err := c.applications.Assign(r.Context(), tenantID, id, req.UserID)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type validationDecisionRequest struct {
	Validated            *bool  `json:"validated"`
	DocumentsValidatedAt string `json:"documents_validated_at"`
}

func (c *BopsAPIController) RecordValidationDecision(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req validationDecisionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	result, err := c.applications.RecordValidationDecision(r.Context(), tenantID, id, services.ValidationDecisionInput{
		Validated:            req.Validated,
		DocumentsValidatedAt: req.DocumentsValidatedAt,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	type decisionResponse struct {
		Application    *planningapplication.PlanningApplication `json:"application"`
		RequestsOpened int                                      `json:"requests_opened"`
	}
	writeJSON(w, http.StatusOK, decisionResponse{
		Application:    result.Application,
		RequestsOpened: len(result.OpenedRequests),
	})
}

type changeTypeRequest struct {
	ApplicationType string `json:"application_type" validate:"required"`
}

func (c *BopsAPIController) ChangeApplicationType(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req changeTypeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	if verrs := validateDTO(&req); verrs != nil {
		writeValidationErrors(w, requestID, verrs)
		return
	}
	app, err := c.applications.ChangeApplicationType(r.Context(), tenantID, id, planningapplication.ApplicationType(req.ApplicationType))
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type determineRequest struct {
	DeterminationDate string `json:"determination_date"`
}

func (c *BopsAPIController) DetermineApplication(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req determineRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	result, err := c.applications.Determine(r.Context(), tenantID, id, services.DetermineInput{
		DeterminationDate: req.DeterminationDate,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	type determineResponse struct {
		Application *planningapplication.PlanningApplication `json:"application"`
		Warnings    []string                                 `json:"warnings,omitempty"`
	}
	writeJSON(w, http.StatusOK, determineResponse{Application: result.Application, Warnings: result.Warnings})
}

type supportingFile struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

func (f *supportingFile) decode() ([]byte, error) {
	if f == nil || f.ContentBase64 == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(f.ContentBase64)
}

type withdrawOrCancelRequest struct {
	Reason  string          `json:"reason"`
	Comment string          `json:"comment"`
	File    *supportingFile `json:"file"`
}

func (c *BopsAPIController) WithdrawOrCancel(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req withdrawOrCancelRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}

	in := services.ClosureInput{
		Reason:  planningapplication.ClosureReason(req.Reason),
		Comment: req.Comment,
	}
	if req.File != nil {
		content, err := req.File.decode()
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "file content must be base64")
			return
		}
		in.SupportingFilename = req.File.Filename
		in.SupportingContent = content
	}

	result, err := c.applications.WithdrawOrCancel(r.Context(), tenantID, id, in)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Application)
}

func (c *BopsAPIController) CloneApplication(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	clone, err := c.applications.Clone(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, clone)
}

// ---- validation requests ----

type createValidationRequestRequest struct {
	Kind       string                    `json:"kind"`
	FeeRelated bool                      `json:"fee_related"`
	Payload    validationrequest.Payload `json:"payload"`
}

func (c *BopsAPIController) CreateValidationRequest(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req createValidationRequestRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	created, err := c.requests.Create(r.Context(), tenantID, id, services.CreateRequestInput{
		Kind:       validationrequest.Kind(req.Kind),
		FeeRelated: req.FeeRelated,
		Payload:    req.Payload,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (c *BopsAPIController) ListValidationRequests(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	list, err := c.requests.List(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (c *BopsAPIController) GetBlockingReasons(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	reasons, err := c.requests.BlockingReasons(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	type blockingResponse struct {
		Blocked bool     `json:"blocked"`
		Reasons []string `json:"reasons"`
	}
	writeJSON(w, http.StatusOK, blockingResponse{Blocked: len(reasons) > 0, Reasons: reasons})
}

func (c *BopsAPIController) GetValidationRequest(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	req, err := c.requests.Get(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type editValidationRequestRequest struct {
	Payload validationrequest.Payload `json:"payload"`
}

func (c *BopsAPIController) EditValidationRequest(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req editValidationRequestRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	updated, err := c.requests.Edit(r.Context(), tenantID, id, services.EditRequestInput{Payload: req.Payload})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (c *BopsAPIController) DeleteValidationRequest(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	if err := c.requests.Delete(r.Context(), tenantID, id); err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cancelValidationRequestRequest struct {
	Reason string `json:"reason"`
}

func (c *BopsAPIController) CancelValidationRequest(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req cancelValidationRequestRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	cancelled, err := c.requests.Cancel(r.Context(), tenantID, id, req.Reason)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

type respondValidationRequestRequest struct {
	Response validationrequest.Response `json:"response"`
}

func (c *BopsAPIController) RespondValidationRequest(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req respondValidationRequestRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	closed, err := c.requests.Respond(r.Context(), tenantID, id, services.RespondInput{Response: req.Response})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, closed)
}

// ---- recommendations ----

type recommendationDraftRequest struct {
	Decision        string `json:"decision"`
	AssessorComment string `json:"assessor_comment"`
	PublicComment   string `json:"public_comment"`
}

func (c *BopsAPIController) SaveRecommendationDraft(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req recommendationDraftRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	rec, err := c.recommendations.SaveDraft(r.Context(), tenantID, id, services.DraftInput{
		Decision:        req.Decision,
		AssessorComment: req.AssessorComment,
		PublicComment:   req.PublicComment,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (c *BopsAPIController) SubmitRecommendation(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	rec, err := c.recommendations.Submit(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (c *BopsAPIController) WithdrawRecommendation(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	rec, err := c.recommendations.Withdraw(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type reviewRequest struct {
	Accepted        *bool  `json:"accepted"`
	ReviewerComment string `json:"reviewer_comment"`
}

func (c *BopsAPIController) ReviewRecommendation(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	rec, err := c.recommendations.Review(r.Context(), tenantID, id, services.ReviewInput{
		Accepted:        req.Accepted,
		ReviewerComment: req.ReviewerComment,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (c *BopsAPIController) GetRecommendationHistory(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	recs, err := c.recommendations.History(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// ---- appeals ----

type lodgeAppealRequest struct {
	Reason   string          `json:"reason" validate:"required"`
	LodgedAt string          `json:"lodged_at" validate:"required"`
	File     *supportingFile `json:"file"`
}

func (c *BopsAPIController) LodgeAppeal(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req lodgeAppealRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}
	if verrs := validateDTO(&req); verrs != nil {
		writeValidationErrors(w, requestID, verrs)
		return
	}

	in := services.LodgeAppealInput{
		Reason:   req.Reason,
		LodgedAt: req.LodgedAt,
	}
	if req.File != nil {
		content, err := req.File.decode()
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "file content must be base64")
			return
		}
		in.EvidenceFilename = req.File.Filename
		in.EvidenceContent = content
	}

	lodged, err := c.appeals.Lodge(r.Context(), tenantID, id, in)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, lodged)
}

func (c *BopsAPIController) GetAppeal(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	a, err := c.appeals.Get(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type advanceAppealRequest struct {
	Stage    string          `json:"stage"`
	Date     string          `json:"date"`
	Decision string          `json:"decision"`
	File     *supportingFile `json:"file"`
}

func (c *BopsAPIController) AdvanceAppeal(w http.ResponseWriter, r *http.Request) {
	tenantID, id, requestID, ok := requireApplicationID(w, r)
	if !ok {
		return
	}
	var req advanceAppealRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "invalid json body")
		return
	}

	in := services.AdvanceAppealInput{
		Stage:    appeal.Stage(req.Stage),
		Date:     req.Date,
		Decision: appeal.Decision(req.Decision),
	}
	if req.File != nil {
		content, err := req.File.decode()
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_INVALID_BODY", "file content must be base64")
			return
		}
		in.DecisionLetterFilename = req.File.Filename
		in.DecisionLetterContent = content
	}

	advanced, err := c.appeals.Advance(r.Context(), tenantID, id, in)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, advanced)
}
