package api

import (
	"fmt"
	"net/http"
	"testing"

	"coinflip-server/internal/common/response"
	"coinflip-server/internal/service"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{service.ErrDuplicateInFlight, http.StatusAccepted, response.CodeDuplicateInFlight},
		{service.ErrStillProcessing, http.StatusAccepted, response.CodeStillProcessing},
		{service.ErrAmountTooLow, http.StatusBadRequest, response.CodeInvalidAmount},
		{service.ErrInvalidChoice, http.StatusBadRequest, response.CodeInvalidInput},
		{service.ErrNotOperator, http.StatusForbidden, response.CodeNotOperator},
		{service.ErrWagerNotFound, http.StatusNotFound, response.CodeNotFound},
		{service.ErrRateLimited, http.StatusTooManyRequests, response.CodeRateLimited},
		{service.ErrInsufficientBalance, http.StatusConflict, response.CodeInsufficientBalance},
		{service.ErrInsufficientFunds, http.StatusConflict, response.CodeInsufficientFunds},
		{service.ErrWagerInProgress, http.StatusConflict, response.CodeInvalidState},
		{fmt.Errorf("settle: %w", service.ErrProgramPaused), http.StatusConflict, response.CodeProgramPaused},
		{fmt.Errorf("boom"), http.StatusInternalServerError, response.CodeSystemError},
	}
	for _, tc := range cases {
		got := classify(tc.err)
		if got.status != tc.status || got.code != tc.code {
			t.Errorf("classify(%v) = %d/%d, want %d/%d", tc.err, got.status, got.code, tc.status, tc.code)
		}
	}
	if classify(service.ErrStillProcessing).retryAfter <= 0 {
		t.Errorf("still processing should carry Retry-After")
	}
}
