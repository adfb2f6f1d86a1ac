package httpresponse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	ownErrors "chess_review/internal/errors"
)

type Response[T any] struct {
	Status int `json:"Status"`
	Body   T   `json:"Body,omitempty"`
}

type ErrorResponse struct {
	ErrorDescription string `json:"ErrorDescription"`
}

const INTERNALERRORJSON = "{\"Status\": 500,\"Body\":{\"ErrorDescription\": \"Internal server error\"}}"

func WriteResponseWithStatus(w http.ResponseWriter, status int, body any) {
	jsonByte, err := marshalStatusJson(status, body)
	if err != nil {
		WriteInternalErrorResponse(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jsonByte)
}

func marshalStatusJson(status int, body any) ([]byte, error) {
	return json.Marshal(Response[any]{
		Status: status,
		Body:   body,
	})
}

// WriteError answers with the status matching err and its message.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusForError(err)
	if status == http.StatusInternalServerError {
		WriteInternalErrorResponse(w)
		return
	}
	WriteResponseWithStatus(w, status, ErrorResponse{ErrorDescription: err.Error()})
}

func StatusForError(err error) int {
	switch {
	case errors.Is(err, ownErrors.ErrInvalidMoves):
		return http.StatusBadRequest
	case errors.Is(err, ownErrors.ErrReviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, ownErrors.ErrReviewAlreadyInProgress),
		errors.Is(err, ownErrors.ErrRequestSuperseded),
		errors.Is(err, ownErrors.ErrReviewCanceled):
		return http.StatusConflict
	case errors.Is(err, ownErrors.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ownErrors.ErrEngineTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func WriteInternalErrorResponse(w http.ResponseWriter) {
	// like http.Error, but with a JSON content type
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = fmt.Fprintln(w, INTERNALERRORJSON)
}
