package errors

import (
	"github.com/cockroachdb/errors"
)

// ErrorResponse is the JSON body returned for failed API calls.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail is the error part of ErrorResponse.
type ErrorDetail struct {
	Display  string         `json:"message"`
	Internal string         `json:"internal_error,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// NewErrorResponse converts err into an ErrorResponse. Internal messages are only
// included when exposeInternal is set.
func NewErrorResponse(err error, exposeInternal bool) ErrorResponse {
	resp := ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Display: "An unexpected error occurred",
		},
	}
	if err == nil {
		return resp
	}

	if hint := Hint(err); hint != "" {
		resp.Error.Display = hint
	}

	var ie *InternalError
	if errors.As(err, &ie) {
		resp.Error.Details = ie.Details
		if resp.Error.Display == "An unexpected error occurred" && ie.DisplayError != "" && !IsDatabase(err) {
			resp.Error.Display = ie.DisplayError
		}
	}

	if exposeInternal {
		resp.Error.Internal = err.Error()
	}
	return resp
}
