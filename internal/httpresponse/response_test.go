package httpresponse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	ownErrors "chess_review/internal/errors"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: move 3", ownErrors.ErrInvalidMoves), http.StatusBadRequest},
		{ownErrors.ErrReviewNotFound, http.StatusNotFound},
		{ownErrors.ErrReviewAlreadyInProgress, http.StatusConflict},
		{ownErrors.ErrRequestSuperseded, http.StatusConflict},
		{ownErrors.ErrEngineUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: context deadline exceeded", ownErrors.ErrEngineTimeout), http.StatusGatewayTimeout},
		{context.Canceled, 499},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusForError(tt.err); got != tt.want {
			t.Errorf("StatusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ownErrors.ErrReviewNotFound)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
	var body Response[ErrorResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body %q: %v", rec.Body.String(), err)
	}
	if body.Status != http.StatusNotFound || body.Body.ErrorDescription != ownErrors.ErrReviewNotFound.Error() {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pipe to /usr/bin/stockfish broken"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
	var body Response[ErrorResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body %q: %v", rec.Body.String(), err)
	}
	if body.Body.ErrorDescription != "Internal server error" {
		t.Errorf("description = %q", body.Body.ErrorDescription)
	}
}
