package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"undertow/internal/core"
	"undertow/internal/log"
)

const dateLayout = "2006-01-02"

// Amounts cross the wire as decimal strings ("1234.56") and are stored as
// integer cents. Recurring and paycheck amounts are unsigned; transaction
// and balance amounts keep their sign.

type recurringRequest struct {
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	Kind      string `json:"kind"`
	Frequency string `json:"frequency"`
	StartDate string `json:"startDate"`
}

type recurringResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	Kind        string `json:"kind"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"startDate"`
}

func toRecurringResponse(def core.RecurringDefinition) recurringResponse {
	return recurringResponse{
		ID:          def.ID,
		Name:        def.Name,
		AmountCents: def.Amount.Cents,
		Kind:        string(def.Kind),
		Frequency:   string(def.Frequency),
		StartDate:   def.StartDate.Format(dateLayout),
	}
}

func (req recurringRequest) toDefinition() (core.RecurringDefinition, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.RecurringDefinition{}, err
	}
	startDate, err := time.ParseInLocation(dateLayout, req.StartDate, time.UTC)
	if err != nil {
		return core.RecurringDefinition{}, core.ErrMissingStartDate
	}
	def := core.RecurringDefinition{
		Name:      req.Name,
		Amount:    core.Money{Cents: cents},
		Kind:      core.EventKind(req.Kind),
		Frequency: core.Frequency(req.Frequency),
		StartDate: startDate,
	}
	return def, def.Validate()
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	defs, err := s.store.ListRecurring(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := make([]recurringResponse, 0, len(defs))
	for _, def := range defs {
		resp = append(resp, toRecurringResponse(def))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	def, err := req.toDefinition()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreateRecurring(r.Context(), userID, def)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateProjections(userID)
	s.logger.InfoContext(r.Context(), "Recurring definition created",
		log.FieldUserID, userID, log.FieldRecordID, created.ID,
		log.FieldFrequency, string(created.Frequency))
	writeJSON(w, http.StatusCreated, toRecurringResponse(created))
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	def, err := req.toDefinition()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	def.ID = id

	if err := s.store.UpdateRecurring(r.Context(), userID, def); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateProjections(userID)
	writeJSON(w, http.StatusOK, toRecurringResponse(def))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteRecurring(r.Context(), userID, id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.invalidateProjections(userID)
	w.WriteHeader(http.StatusNoContent)
}

// --- transactions ---

type transactionRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"` // signed; negative means expense
	Category    string `json:"category"`
	Date        string `json:"date"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	AmountCents int64  `json:"amountCents"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Description: tx.Description,
		AmountCents: tx.Amount.Cents,
		Category:    tx.Category,
		Date:        tx.Date.Format(dateLayout),
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	year, month, err := yearMonthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := core.ValidateYearMonth(year, month); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.Month(month), core.DaysInMonth(year, month), 0, 0, 0, 0, time.UTC)
	txs, err := s.store.ListTransactions(r.Context(), userID, from, to)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseSignedCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	tx := core.Transaction{
		Description: req.Description,
		Amount:      core.Money{Cents: cents},
		Category:    req.Category,
		Date:        date,
	}
	if err := tx.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreateTransaction(r.Context(), userID, tx)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateProjections(userID)
	s.logger.InfoContext(r.Context(), "Transaction recorded",
		log.FieldUserID, userID, log.FieldRecordID, created.ID,
		log.FieldAmount, created.Amount.Cents)
	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteTransaction(r.Context(), userID, id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.invalidateProjections(userID)
	w.WriteHeader(http.StatusNoContent)
}

// --- paycheck stream ---

type paycheckRequest struct {
	Amount    string `json:"amount"`
	Frequency string `json:"frequency"`
	StartDate string `json:"startDate"`
}

type paycheckResponse struct {
	AmountCents int64  `json:"amountCents"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"startDate"`
}

func (s *Server) handleGetPaycheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ps, err := s.store.GetPaycheckStream(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if ps == nil {
		writeError(w, http.StatusNotFound, "no paycheck stream configured")
		return
	}
	writeJSON(w, http.StatusOK, paycheckResponse{
		AmountCents: ps.Amount.Cents,
		Frequency:   string(ps.Frequency),
		StartDate:   ps.StartDate.Format(dateLayout),
	})
}

func (s *Server) handlePutPaycheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req paycheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	startDate, err := time.ParseInLocation(dateLayout, req.StartDate, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startDate, want YYYY-MM-DD")
		return
	}
	ps := core.PaycheckStream{
		Amount:    core.Money{Cents: cents},
		Frequency: core.Frequency(req.Frequency),
		StartDate: startDate,
	}
	if err := ps.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpsertPaycheckStream(r.Context(), userID, ps); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateProjections(userID)
	writeJSON(w, http.StatusOK, paycheckResponse{
		AmountCents: ps.Amount.Cents,
		Frequency:   string(ps.Frequency),
		StartDate:   ps.StartDate.Format(dateLayout),
	})
}

// --- starting balance ---

type balanceRequest struct {
	Amount string `json:"amount"` // signed; an overdrawn start is allowed
}

type balanceResponse struct {
	AmountCents int64 `json:"amountCents"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sb, err := s.store.GetStartingBalance(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	// An unset balance reads as zero, mirroring the engine's default
	var cents int64
	if sb != nil {
		cents = sb.Amount.Cents
	}
	writeJSON(w, http.StatusOK, balanceResponse{AmountCents: cents})
}

func (s *Server) handlePutBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req balanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cents, err := core.ParseSignedCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpsertStartingBalance(r.Context(), userID, core.Money{Cents: cents}); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateProjections(userID)
	writeJSON(w, http.StatusOK, balanceResponse{AmountCents: cents})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
