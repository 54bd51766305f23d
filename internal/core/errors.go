package core

// Reason classifies why a file was rejected before analysis.
type Reason string

const (
	ReasonExtension Reason = "extension"
	ReasonSize      Reason = "size"
	ReasonEmpty     Reason = "empty"
	ReasonContent   Reason = "content"
)

// ValidationError is a file rejected by the upload gates or by a parse
// attempt during validation. Message is meant to be shown to the user as is.
type ValidationError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }
