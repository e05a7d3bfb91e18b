package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"expenseform/internal/amqp"
	"expenseform/internal/core"
	"expenseform/internal/form"
)

type recordResponse struct {
	ID            string `json:"id"`
	FutureRecords int    `json:"futureRecords"`
}

type validationResponse struct {
	Errors     map[string]string `json:"errors"`
	FocusField string            `json:"focusField"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRecordRequest(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	f := form.New(s.backend, s.catalogs, s.backend)
	f.LoadCatalogs(r.Context())
	if err := applyRequest(f, req); err != nil {
		writeApplyError(w, err)
		return
	}

	res, err := f.Submit(r.Context())
	if err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}

	switch res.Status {
	case form.StatusCreated:
		s.publishEvent(r, res.Record.ID, amqp.ActionCreated, res.FutureRecords)
		s.invalidateHistory()
		writeJSON(w, http.StatusCreated, recordResponse{
			ID:            res.Record.ID,
			FutureRecords: res.FutureRecords,
		})
	case form.StatusValidationFailed:
		writeJSON(w, http.StatusUnprocessableEntity, validationResult(res))
	case form.StatusNeedsAllocation:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "allocation amounts required for multiple people"})
	default:
		slog.ErrorContext(r.Context(), "Record creation failed", "error", res.Err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "record could not be saved"})
	}
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing record id"})
		return
	}
	req, err := decodeRecordRequest(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	f := form.NewEdit(s.backend, s.catalogs, s.backend, core.CandidateRecord{ID: id})
	f.LoadCatalogs(r.Context())
	if err := applyRequest(f, req); err != nil {
		writeApplyError(w, err)
		return
	}

	res, err := f.Submit(r.Context())
	if err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}

	switch res.Status {
	case form.StatusUpdated:
		s.publishEvent(r, res.Record.ID, amqp.ActionUpdated, 0)
		s.invalidateHistory()
		writeJSON(w, http.StatusOK, recordResponse{ID: res.Record.ID})
	case form.StatusValidationFailed:
		writeJSON(w, http.StatusUnprocessableEntity, validationResult(res))
	case form.StatusNeedsAllocation:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "allocation amounts required for multiple people"})
	default:
		slog.ErrorContext(r.Context(), "Record update failed", "id", id, "error", res.Err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "record could not be saved"})
	}
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing record id"})
		return
	}

	if err := s.backend.DeleteRecord(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "record not found"})
			return
		}
		slog.ErrorContext(r.Context(), "Record deletion failed", "id", id, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "record could not be deleted"})
		return
	}

	s.publishEvent(r, id, amqp.ActionDeleted, 0)
	s.invalidateHistory()
	w.WriteHeader(http.StatusNoContent)
}

// applyRequest drives the form engine through the request's field values in
// document order.
func applyRequest(f *form.Form, req *recordRequest) error {
	date, err := parseDateField("date", req.Date)
	if err != nil {
		return err
	}
	f.SetDate(date)
	f.SetPlace(sanitizeInput(req.Place))

	amount, err := parseMoneyField("amount", req.Amount)
	if err != nil {
		return err
	}
	f.SetAmount(amount)
	f.SetCategory(sanitizeInput(req.Category))
	f.SetInstrument(sanitizeInput(req.PaymentInstrumentID))

	postedDate, err := parseDateField("postedDate", req.PostedDate)
	if err != nil {
		return err
	}
	f.SetPostedDate(postedDate)
	f.SetFutureMonths(req.FutureMonths)

	originalCost, err := parseMoneyField("originalCost", req.OriginalCost)
	if err != nil {
		return err
	}
	f.SetOriginalCost(originalCost)
	f.SetInsuranceEligible(req.InsuranceEligible)
	f.SetClaimStatus(core.ClaimStatus(req.ClaimStatus))

	if len(req.People) > 0 {
		ids := make([]string, len(req.People))
		custom := false
		for i, p := range req.People {
			ids[i] = p.PersonID
			if p.Amount != "" {
				custom = true
			}
		}
		res := f.SelectPeople(ids)
		allocs := res.Allocations
		if custom {
			allocs = make([]core.PersonAllocation, len(req.People))
			for i, p := range req.People {
				amount, err := parseMoneyField("allocation amount", p.Amount)
				if err != nil {
					return err
				}
				allocs[i] = core.PersonAllocation{PersonID: p.PersonID, Amount: amount}
			}
		}
		if len(allocs) > 0 {
			if err := f.ConfirmAllocations(allocs); err != nil {
				return err
			}
		}
	}

	for _, inv := range req.Invoices {
		f.AddInvoice(core.AttachmentRef{ID: inv.ID, FileName: sanitizeInput(inv.FileName)})
	}
	return nil
}

func writeApplyError(w http.ResponseWriter, err error) {
	var allocErr *form.AllocationError
	if errors.As(err, &allocErr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func validationResult(res form.SubmissionResult) validationResponse {
	out := validationResponse{
		Errors:     make(map[string]string, len(res.Errors)),
		FocusField: string(res.FocusField),
	}
	for field, msg := range res.Errors {
		out.Errors[string(field)] = msg
	}
	return out
}

// historyInvalidator is satisfied by the catalog service; the suggestion
// history cache is dropped once a record lands so new places become
// suggestable without waiting for the TTL.
type historyInvalidator interface {
	InvalidateHistory()
}

func (s *Server) invalidateHistory() {
	if inv, ok := s.catalogs.(historyInvalidator); ok {
		inv.InvalidateHistory()
	}
}

func (s *Server) publishEvent(r *http.Request, recordID, action string, futureRecords int) {
	if s.publisher == nil {
		return
	}
	event := amqp.NewRecordEvent(recordID, action, futureRecords)
	if err := s.publisher.PublishRecordEvent(r.Context(), event); err != nil {
		// The record is already saved; a broker outage degrades to local-only.
		slog.WarnContext(r.Context(), "Record event publish failed",
			"record_id", recordID, "action", action, "error", err)
	}
}

type catalogsResponse struct {
	Categories         []categoryJSON   `json:"categories"`
	PaymentInstruments []instrumentJSON `json:"paymentInstruments"`
	People             []personJSON     `json:"people"`
}

type categoryJSON struct {
	Name        string `json:"name"`
	Medical     bool   `json:"medical"`
	TaxRelevant bool   `json:"taxRelevant"`
}

type instrumentJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
}

type personJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleCatalogs(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.responseCache.Get("catalogs"); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	ctx := r.Context()
	cats, err := s.catalogs.ListCategories(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Catalog list error", "catalog", "categories", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "catalogs unavailable"})
		return
	}
	instruments, err := s.catalogs.ListPaymentInstruments(ctx, false)
	if err != nil {
		slog.ErrorContext(ctx, "Catalog list error", "catalog", "payment_instruments", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "catalogs unavailable"})
		return
	}
	people, err := s.catalogs.ListPeople(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Catalog list error", "catalog", "people", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "catalogs unavailable"})
		return
	}

	resp := catalogsResponse{
		Categories:         make([]categoryJSON, 0, len(cats)),
		PaymentInstruments: make([]instrumentJSON, 0, len(instruments)),
		People:             make([]personJSON, 0, len(people)),
	}
	for _, c := range cats {
		resp.Categories = append(resp.Categories, categoryJSON{
			Name: c.Name, Medical: c.Medical, TaxRelevant: c.TaxRelevant,
		})
	}
	for _, pi := range instruments {
		resp.PaymentInstruments = append(resp.PaymentInstruments, instrumentJSON{
			ID: pi.ID, Name: pi.Name, Kind: string(pi.Kind), Active: pi.Active,
		})
	}
	for _, p := range people {
		resp.People = append(resp.People, personJSON{ID: p.ID, Name: p.Name})
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "encode catalogs"})
		return
	}
	s.responseCache.Set("catalogs", body)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type suggestRequest struct {
	Place string `json:"place"`
}

type suggestResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decode request body"})
		return
	}

	suggestion, err := s.catalogs.SuggestCategory(r.Context(), req.Place)
	if err != nil {
		slog.ErrorContext(r.Context(), "Category suggestion error", "place", req.Place, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "suggestion unavailable"})
		return
	}
	if suggestion == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{
		Category:   suggestion.Category,
		Confidence: suggestion.Confidence,
	})
}

type expansionRequest struct {
	Mode     string          `json:"mode"`
	Defaults map[string]bool `json:"defaults"`
}

func (s *Server) handleGetExpansionDefaults(w http.ResponseWriter, r *http.Request) {
	mode, ok := parseMode(r.URL.Query().Get("mode"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mode must be create or edit"})
		return
	}
	defaults := s.backend.GetExpansionDefaults(mode)
	out := make(map[string]bool, len(defaults))
	for section, expanded := range defaults {
		out[string(section)] = expanded
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetExpansionDefaults(w http.ResponseWriter, r *http.Request) {
	var req expansionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decode request body"})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mode must be create or edit"})
		return
	}
	defaults := make(map[form.SectionID]bool, len(req.Defaults))
	for section, expanded := range req.Defaults {
		defaults[form.SectionID(section)] = expanded
	}
	s.backend.SetExpansionDefaults(mode, defaults)
	w.WriteHeader(http.StatusNoContent)
}

func parseMode(v string) (form.Mode, bool) {
	switch v {
	case "", string(form.ModeCreate):
		return form.ModeCreate, true
	case string(form.ModeEdit):
		return form.ModeEdit, true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}
