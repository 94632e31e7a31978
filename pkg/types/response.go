package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// ListResult is a filtered page plus the unpaginated match count.
type ListResult[T any] struct {
	List  []T `json:"list"`
	Total int `json:"total"`
}
