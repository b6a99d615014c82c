// Package types holds the JSON envelopes every HTTP answer uses.
package types

type Success struct {
	Data any `json:"data"`
}

// ErrorBody is the public error shape. Retryable is set when the same request
// may succeed later, alongside a Retry-After header.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type Failure struct {
	Error ErrorBody `json:"error"`
}
