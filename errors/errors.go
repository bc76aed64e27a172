// Package errors provides standardized error handling for the realtime
// pipeline. Errors are classified by where in the run they originate
// (configuration, ingestion, step execution, sink delivery) so that callers
// can apply the containment policy: only configuration errors may prevent a
// run from starting; every other kind is contained to its frame or
// publication.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies errors by origin and containment policy.
type Kind int

const (
	// KindConfig represents a bad or inconsistent pipeline or application
	// configuration. Fatal to run start, never partially applied.
	KindConfig Kind = iota
	// KindIngestion represents a volume that failed to decode or arrived
	// out of the expected sequence. The volume is dropped, the run continues.
	KindIngestion
	// KindStepExecution represents a step raising during frame processing.
	// The frame is marked failed, subsequent steps are skipped, the run
	// continues.
	KindStepExecution
	// KindSinkDelivery represents a failed publication to a display service.
	// Logged and discarded, never propagated to frame status.
	KindSinkDelivery
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindIngestion:
		return "ingestion"
	case KindStepExecution:
		return "step_execution"
	case KindSinkDelivery:
		return "sink_delivery"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Configuration errors
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrMissingConfig    = errors.New("missing required configuration")
	ErrUnknownStepType  = errors.New("unknown step type")
	ErrDuplicateStep    = errors.New("duplicate step name")
	ErrUnresolvedInput  = errors.New("unresolved input port")
	ErrDuplicateOutput  = errors.New("duplicate output port")
	ErrInvalidParameter = errors.New("invalid step parameter")

	// Ingestion errors
	ErrDecodeFailed    = errors.New("volume decode failed")
	ErrTruncatedVolume = errors.New("truncated volume file")

	// Runtime errors
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyRunning = errors.New("already running")
)

// ClassifiedError wraps an error with its classification and the component
// and operation it originated from.
type ClassifiedError struct {
	Kind      Kind
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// KindOf returns the classification of an error. Unclassified errors
// default to step execution, the most contained runtime kind.
func KindOf(err error) Kind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindStepExecution
}

// IsConfig reports whether an error is fatal to run start.
func IsConfig(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind == KindConfig
	}
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMissingConfig)
}

// IsIngestion reports whether an error is contained to a dropped volume.
func IsIngestion(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind == KindIngestion
	}
	return errors.Is(err, ErrDecodeFailed) || errors.Is(err, ErrTruncatedVolume)
}

// IsStepExecution reports whether an error is contained to a failed frame.
func IsStepExecution(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Kind == KindStepExecution
}

// IsSinkDelivery reports whether an error is contained to a discarded
// publication.
func IsSinkDelivery(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Kind == KindSinkDelivery
}

// newClassified creates a new classified error.
// Internal helper - use the Wrap* functions instead.
func newClassified(kind Kind, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Kind:      kind,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapConfig wraps an error as a configuration error with context
func WrapConfig(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(KindConfig, wrappedErr, component, method, wrappedErr.Error())
}

// WrapIngestion wraps an error as an ingestion error with context
func WrapIngestion(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(KindIngestion, wrappedErr, component, method, wrappedErr.Error())
}

// WrapStep wraps an error as a step execution error, recording the step name
// in the component field.
func WrapStep(err error, stepName, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, stepName, method, action)
	return newClassified(KindStepExecution, wrappedErr, stepName, method, wrappedErr.Error())
}

// WrapSink wraps an error as a sink delivery error with context
func WrapSink(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(KindSinkDelivery, wrappedErr, component, method, wrappedErr.Error())
}

// StepName extracts the originating step name from a step execution error.
// Returns empty string for other error kinds.
func StepName(err error) string {
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Kind == KindStepExecution {
		return ce.Component
	}
	return ""
}
