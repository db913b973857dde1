package internal

import (
	"encoding/json"
	"net/http"
	"strings"

	"parc-api/internal/auth"
	"parc-api/internal/models"
	"parc-api/internal/store"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listLoans(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	filter := store.LoanFilter{Limit: params.limit, Offset: params.offset}

	if v := strings.TrimSpace(r.URL.Query().Get("employee_id")); v != "" {
		id, ok := parseID(v)
		if !ok {
			http.Error(w, "invalid employee_id filter", 400)
			return
		}
		filter.EmployeeID = &id
	}
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		if v != models.LoanOpen && v != models.LoanClosed {
			http.Error(w, "invalid status filter", 400)
			return
		}
		filter.Status = &v
	}
	if r.URL.Query().Get("include_deleted") == "true" {
		claims := auth.ClaimsFromContext(r.Context())
		if claims == nil || !claims.HasRole("ADMIN") {
			http.Error(w, "only ADMIN may list deleted loans", http.StatusForbidden)
			return
		}
		filter.IncludeDeleted = true
	}

	loans, total, err := s.Store.ListLoans(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	sendListResponse(w, loans, total, params)
}

func (s *Server) getLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	loan, err := s.Store.GetLoanByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) createLoan(w http.ResponseWriter, r *http.Request) {
	var in models.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.EmployeeID <= 0 {
		http.Error(w, "employee_id is required", 400)
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	loan, err := s.Store.CreateLoan(r.Context(), in.EmployeeID, userID)
	s.Metrics.ObserveLoanOp("create", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) addLoanLine(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var in models.AddLoanLineRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}

	line, err := s.Store.AddLoanLine(r.Context(), id, in)
	s.Metrics.ObserveLoanOp("add_line", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (s *Server) removeLoanLine(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	lineID, ok := parseID(chi.URLParam(r, "lineId"))
	if !ok {
		http.Error(w, "invalid line id", http.StatusBadRequest)
		return
	}

	err := s.Store.RemoveLoanLine(r.Context(), id, lineID)
	s.Metrics.ObserveLoanOp("remove_line", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) closeLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	loan, err := s.Store.CloseLoan(r.Context(), id)
	s.Metrics.ObserveLoanOp("close", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) attachLoanSignatures(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var in models.AttachSignaturesRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.PickupSignatureURL == nil && in.ReturnSignatureURL == nil {
		http.Error(w, "at least one signature URL is required", 400)
		return
	}

	loan, err := s.Store.AttachSignatures(r.Context(), id, in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	loan, err := s.Store.DeleteLoan(r.Context(), id, userID)
	s.Metrics.ObserveLoanOp("delete", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Signature files are cleaned up after the commit; a stale file is
	// harmless, a dangling DB row would not be.
	if loan.PickupSignatureURL != nil {
		s.Signatures.Remove(*loan.PickupSignatureURL)
	}
	if loan.ReturnSignatureURL != nil {
		s.Signatures.Remove(*loan.ReturnSignatureURL)
	}
	w.WriteHeader(http.StatusNoContent)
}
