package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashbook/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	s := NewServer("127.0.0.1:0", repo, nil, time.UTC, 16, time.Minute)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func createPayload(description, amount, txType, date string) string {
	return fmt.Sprintf(`{"description":%q,"amount":%q,"type":%q,"date":%q}`,
		description, amount, txType, date)
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []transactionResponse {
	t.Helper()
	var list []transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	return list
}

func decodeOne(t *testing.T, rec *httptest.ResponseRecorder) transactionResponse {
	t.Helper()
	var tx transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("failed to decode transaction response: %v", err)
	}
	return tx
}

func TestCreateTransaction(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("salary", "100.00", "cashIn", "2026-01-15T10:00:00Z"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	tx := decodeOne(t, rec)
	if tx.ID == 0 {
		t.Error("expected a non-zero id")
	}
	if tx.Description != "salary" {
		t.Errorf("expected description %q, got %q", "salary", tx.Description)
	}
	if tx.Amount != "100.00" {
		t.Errorf("expected amount %q, got %q", "100.00", tx.Amount)
	}
	if tx.Type != "cashIn" {
		t.Errorf("expected type cashIn, got %q", tx.Type)
	}
	if tx.Balance != "100.00" {
		t.Errorf("expected balance %q, got %q", "100.00", tx.Balance)
	}
	if tx.Date != "2026-01-15T10:00:00Z" {
		t.Errorf("expected date 2026-01-15T10:00:00Z, got %q", tx.Date)
	}
}

func TestCreateTransactionRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative amount", createPayload("x", "-50.00", "cashIn", "2026-01-15T10:00:00Z")},
		{"zero amount", createPayload("x", "0.00", "cashIn", "2026-01-15T10:00:00Z")},
		{"non-numeric amount", createPayload("x", "abc", "cashIn", "2026-01-15T10:00:00Z")},
		{"empty description", createPayload("", "10.00", "cashIn", "2026-01-15T10:00:00Z")},
		{"unknown type", createPayload("x", "10.00", "transfer", "2026-01-15T10:00:00Z")},
		{"missing date", createPayload("x", "10.00", "cashIn", "")},
		{"garbage date", createPayload("x", "10.00", "cashIn", "not-a-date")},
		{"malformed json", `{"description": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := doRequest(t, s, http.MethodPost, "/transactions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}

			var payload map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("expected JSON error payload: %v", err)
			}
			if payload["error"] == "" {
				t.Error("expected a non-empty error message")
			}

			// Rejected input must not change the ledger.
			list := decodeList(t, doRequest(t, s, http.MethodGet, "/transactions", ""))
			if len(list) != 0 {
				t.Errorf("expected empty ledger after rejected create, got %d entries", len(list))
			}
		})
	}
}

func TestListTransactionsNewestFirstWithBalances(t *testing.T) {
	s := newTestServer(t)

	doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("salary", "100.00", "cashIn", "2026-01-10T09:00:00Z"))
	doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("bonus", "50.00", "cashIn", "2026-01-20T09:00:00Z"))
	// Backdated entry shifts every later balance.
	doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("groceries", "30.00", "cashOut", "2026-01-05T09:00:00Z"))

	rec := doRequest(t, s, http.MethodGet, "/transactions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	list := decodeList(t, rec)
	if len(list) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(list))
	}

	wantDesc := []string{"bonus", "salary", "groceries"}
	wantBalance := []string{"120.00", "70.00", "-30.00"}
	for i := range list {
		if list[i].Description != wantDesc[i] {
			t.Errorf("position %d: expected %q, got %q", i, wantDesc[i], list[i].Description)
		}
		if list[i].Balance != wantBalance[i] {
			t.Errorf("position %d: expected balance %q, got %q", i, wantBalance[i], list[i].Balance)
		}
	}
}

func TestUpdateTransactionRecomputesBalances(t *testing.T) {
	s := newTestServer(t)

	first := decodeOne(t, doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("salary", "100.00", "cashIn", "2026-01-10T09:00:00Z")))
	doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("rent", "40.00", "cashOut", "2026-01-20T09:00:00Z"))

	rec := doRequest(t, s, http.MethodPut, fmt.Sprintf("/transactions/%d", first.ID),
		createPayload("salary", "130.00", "cashIn", "2026-01-10T09:00:00Z"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	updated := decodeOne(t, rec)
	if updated.Amount != "130.00" {
		t.Errorf("expected amount 130.00, got %q", updated.Amount)
	}
	if updated.Balance != "130.00" {
		t.Errorf("expected balance 130.00, got %q", updated.Balance)
	}

	list := decodeList(t, doRequest(t, s, http.MethodGet, "/transactions", ""))
	if list[0].Balance != "90.00" {
		t.Errorf("expected newest balance 90.00 after update, got %q", list[0].Balance)
	}
}

func TestUpdateUnknownTransaction(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPut, "/transactions/999",
		createPayload("ghost", "10.00", "cashIn", "2026-01-10T09:00:00Z"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestDeleteTransaction(t *testing.T) {
	s := newTestServer(t)

	tx := decodeOne(t, doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("salary", "100.00", "cashIn", "2026-01-10T09:00:00Z")))

	rec := doRequest(t, s, http.MethodDelete, fmt.Sprintf("/transactions/%d", tx.ID), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body on delete, got %q", rec.Body.String())
	}

	list := decodeList(t, doRequest(t, s, http.MethodGet, "/transactions", ""))
	if len(list) != 0 {
		t.Errorf("expected empty ledger after delete, got %d entries", len(list))
	}
}

func TestDeleteUnknownTransaction(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodDelete, "/transactions/999", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestTransactionIDMustBeNumeric(t *testing.T) {
	for _, path := range []string{"/transactions/abc", "/transactions/", "/transactions/1/extra", "/transactions/-1"} {
		rec := doRequest(t, newTestServer(t), http.MethodDelete, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("path %q: expected status 400, got %d", path, rec.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPatch, "/transactions", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405 on collection, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/transactions/1", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405 on item, got %d", rec.Code)
	}
}

func TestListCacheInvalidatedOnMutation(t *testing.T) {
	s := newTestServer(t)

	doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("salary", "100.00", "cashIn", "2026-01-10T09:00:00Z"))

	// Prime the cache.
	if got := len(decodeList(t, doRequest(t, s, http.MethodGet, "/transactions", ""))); got != 1 {
		t.Fatalf("expected 1 transaction, got %d", got)
	}

	doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("bonus", "25.00", "cashIn", "2026-01-11T09:00:00Z"))

	if got := len(decodeList(t, doRequest(t, s, http.MethodGet, "/transactions", ""))); got != 2 {
		t.Errorf("expected 2 transactions after cache purge, got %d", got)
	}
}

func TestCreateAcceptsNumericAmount(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/transactions",
		`{"description":"salary","amount":70,"type":"cashIn","date":"2026-01-10T09:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if tx := decodeOne(t, rec); tx.Amount != "70.00" {
		t.Errorf("expected amount 70.00, got %q", tx.Amount)
	}
}

func TestCreateAcceptsDateOnly(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/transactions",
		createPayload("coffee", "3.50", "cashOut", "2026-01-10"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if tx := decodeOne(t, rec); !strings.HasPrefix(tx.Date, "2026-01-10T") {
		t.Errorf("expected date on 2026-01-10, got %q", tx.Date)
	}
}
