package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cashbook/internal/amqp"
	"cashbook/internal/core"
	"cashbook/internal/storage"
)

// decimalString accepts a JSON string or bare number and keeps its
// textual form, so both "70.00" and 70 parse.
type decimalString string

func (d *decimalString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*d = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		*d = decimalString(unquoted)
		return nil
	}
	*d = decimalString(s)
	return nil
}

type transactionRequest struct {
	Description string        `json:"description"`
	Amount      decimalString `json:"amount"`
	Type        string        `json:"type"`
	Date        string        `json:"date"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	Balance     string `json:"balance"`
}

func toResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Description: tx.Description,
		Amount:      tx.Amount.String(),
		Type:        string(tx.Type),
		Date:        tx.Date.UTC().Format(time.RFC3339),
		Balance:     tx.Balance.String(),
	}
}

func toResponseList(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = toResponse(tx)
	}
	return out
}

// decodeDraft parses and validates a transaction payload.
func (s *Server) decodeDraft(r *http.Request) (core.Draft, error) {
	var req transactionRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return core.Draft{}, fmt.Errorf("invalid request body: %w", err)
	}

	cents, err := core.ParseDecimalToCents(string(req.Amount))
	if err != nil {
		return core.Draft{}, fmt.Errorf("invalid amount: %w", err)
	}

	date, err := parseRequestDate(req.Date, s.loc)
	if err != nil {
		return core.Draft{}, err
	}

	draft := core.Draft{
		Description: strings.TrimSpace(req.Description),
		Amount:      core.Money{Cents: cents},
		Type:        core.TransactionType(req.Type),
		Date:        date,
	}
	if err := draft.Validate(); err != nil {
		return core.Draft{}, err
	}
	return draft, nil
}

// handleTransactions dispatches GET (list) and POST (create) on /transactions.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleTransactionByID dispatches PUT (update) and DELETE on /transactions/{id}.
func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r.URL.Path, "/transactions/")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.updateTransaction(w, r, id)
	case http.MethodDelete:
		s.deleteTransaction(w, r, id)
	default:
		w.Header().Set("Allow", "PUT, DELETE")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	if txs, ok := s.listCache.Get(listCacheKey); ok {
		respondJSON(w, http.StatusOK, toResponseList(txs))
		return
	}

	txs, err := s.store.ListTransactions(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transactions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch transactions")
		return
	}

	s.listCache.Set(listCacheKey, txs)
	respondJSON(w, http.StatusOK, toResponseList(txs))
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	draft, err := s.decodeDraft(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := s.store.CreateTransaction(r.Context(), draft)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create transaction", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	s.listCache.Purge()
	s.publishEvent(r, amqp.ActionCreated, tx.ID)
	respondJSON(w, http.StatusCreated, toResponse(tx))
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request, id int64) {
	draft, err := s.decodeDraft(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := s.store.UpdateTransaction(r.Context(), id, draft)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "transaction not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to update transaction", "error", err, "transaction_id", id)
		respondError(w, http.StatusInternalServerError, "failed to update transaction")
		return
	}

	s.listCache.Purge()
	s.publishEvent(r, amqp.ActionUpdated, id)
	respondJSON(w, http.StatusOK, toResponse(tx))
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "transaction not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete transaction", "error", err, "transaction_id", id)
		respondError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	s.listCache.Purge()
	s.publishEvent(r, amqp.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// publishEvent announces a mutation to the broker when one is
// configured. Failures are logged, never surfaced to the client.
func (s *Server) publishEvent(r *http.Request, action string, id int64) {
	if s.events == nil {
		return
	}
	event := amqp.NewLedgerEvent(action, id)
	if err := s.events.PublishLedgerEvent(r.Context(), event); err != nil {
		slog.WarnContext(r.Context(), "Failed to publish ledger event",
			"error", err, "action", action, "transaction_id", id)
	}
}
