package errors

// Result is the uniform outcome shape returned across the API boundary.
// Failures are business outcomes, so they are always rendered as a Result instead of a fault.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK wraps data into a successful Result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail renders err into a failed Result. Internal causes are never exposed, only the message.
func Fail(err error) Result {
	return Result{Error: Convert(err).Message}
}
