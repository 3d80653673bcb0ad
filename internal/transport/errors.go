package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/pipeline"
	"github.com/programme-lv/judge/internal/service"
	"github.com/programme-lv/judge/internal/store"
)

var errorTable = []struct {
	target    error
	code      api.ErrorCode
	status    int
	retryable bool
}{
	{lang.ErrUnknownLanguage, api.ErrUnknownLanguage, http.StatusBadRequest, false},
	{service.ErrUnsupportedLanguage, api.ErrUnsupportedLanguage, http.StatusBadRequest, false},
	{service.ErrInvalidRequest, api.ErrInvalidRequest, http.StatusBadRequest, false},
	{store.ErrProblemNotFound, api.ErrProblemNotFound, http.StatusNotFound, false},
	{store.ErrSubmissionNotFound, api.ErrSubmissionNotFound, http.StatusNotFound, false},
	{pipeline.ErrQueueFull, api.ErrQueueFull, http.StatusTooManyRequests, true},
	{pipeline.ErrAlreadyJudging, api.ErrAlreadyJudging, http.StatusConflict, true},
	{pipeline.ErrClosed, api.ErrUnavailable, http.StatusServiceUnavailable, true},
	{context.Canceled, api.ErrCanceled, http.StatusRequestTimeout, true},
	{context.DeadlineExceeded, api.ErrCanceled, http.StatusRequestTimeout, true},
}

// ErrorFrom maps a service error onto its wire form.
func ErrorFrom(err error) *api.Error {
	if err == nil {
		return nil
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return &api.Error{Code: e.code, Message: err.Error(), Status: e.status, Retryable: e.retryable}
		}
	}
	return &api.Error{Code: api.ErrInternal, Message: err.Error(), Status: http.StatusInternalServerError}
}

// Unavailable answers requests that arrive while the judge shuts down.
func Unavailable() *api.Error {
	return ErrorFrom(pipeline.ErrClosed)
}

func invalidJSON(err error) *api.Error {
	return &api.Error{Code: api.ErrInvalidRequest, Message: "malformed request: " + err.Error(), Status: http.StatusBadRequest}
}
