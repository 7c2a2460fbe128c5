package models

// APIResponse is the envelope returned by every endpoint.
// Success is false only when the consultation outcome is "error";
// not_found and blocked are reported with success=true and the
// outcome embedded in Data.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// NewSuccessResponse builds a success envelope.
func NewSuccessResponse(data interface{}, message string) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// NewErrorResponse builds a failure envelope.
func NewErrorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}
