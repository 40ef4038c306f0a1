package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/angohost/portal/internal/errors"
	"github.com/angohost/portal/pkg/logger"
)

func TestWriteServiceError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithTraceID(req.Context(), "trace-9"))
	rec := httptest.NewRecorder()

	WriteServiceError(rec, req, fmt.Errorf("wrap: %w", apperrors.NotFound("invoice")))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error != string(apperrors.CodeNotFound) || body.TraceID != "trace-9" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestWriteServiceErrorDefaultsToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("db down"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "db down") {
		t.Fatal("internal cause leaked to client")
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ Name string }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Name":"ok"}`))
	if !DecodeJSON(rec, req, &v) || v.Name != "ok" {
		t.Fatalf("expected decode success, got %+v", v)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{bad`))
	if DecodeJSON(rec, req, &v) {
		t.Fatal("expected decode failure")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRequireUserID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := RequireUserID(rec, req); ok || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = req.WithContext(logger.WithUserID(req.Context(), "u1"))
	if id, ok := RequireUserID(rec, req); !ok || id != "u1" {
		t.Fatalf("got %q %v", id, ok)
	}
}
