package errors

// ErrorResponse is the JSON body the HTTP receiver writes when a request
// cannot be turned into a record.
type ErrorResponse struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}
}

// Respond maps any error to an HTTP status and body. Errors that are not
// AppErrors are reported as INTERNAL_ERROR without exposing their text.
func Respond(err error) (int, ErrorResponse) {
	appErr := Wrap(err)
	return appErr.HTTPStatus, appErr.ToResponse()
}
