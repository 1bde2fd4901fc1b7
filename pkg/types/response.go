package types

// SuccessEnvelope wraps every 2xx JSON payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. Details carry structured context only
// for codes whose metadata allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx JSON payload.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
