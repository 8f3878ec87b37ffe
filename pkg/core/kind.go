package core

import "fmt"

// Kind is the role an event plays in a scenario.
type Kind int

const (
	KindUnknown  Kind = iota
	KindGUI           // An action the test performs
	KindOracle        // An assertion on the screen
	KindStepping      // A widget touched only to reach another screen
	KindSys           // A device-level key or sleep
	KindEmpty         // Placeholder for a step that found no match
)

// String returns the wire name used in event records.
func (k Kind) String() string {
	switch k {
	case KindGUI:
		return "gui"
	case KindOracle:
		return "oracle"
	case KindStepping:
		return "stepping"
	case KindSys:
		return "SYS_EVENT"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ParseKind converts an event_type value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "gui":
		return KindGUI, nil
	case "oracle":
		return KindOracle, nil
	case "stepping":
		return KindStepping, nil
	case "SYS_EVENT", "sys":
		return KindSys, nil
	case "empty", "EMPTY_EVENT":
		return KindEmpty, nil
	default:
		return KindUnknown, fmt.Errorf("unknown event type %q", s)
	}
}

// Scored reports whether events of this kind count towards fitness.
func (k Kind) Scored() bool {
	return k == KindGUI || k == KindOracle
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ErrorCategory classifies errors for logging and exit codes.
type ErrorCategory int

const (
	ErrCategoryNone          ErrorCategory = iota // No error
	ErrCategoryAssertion                          // Element not found, wait condition failed
	ErrCategoryTimeout                            // Operation timed out
	ErrCategoryConnection                         // Automation server or device unreachable
	ErrCategoryConfig                             // Invalid configuration, missing static data
	ErrCategoryReachability                       // No validated candidate or path
	ErrCategoryExecution                          // Actuator rejected an interaction
	ErrCategorySimilarity                         // Lexical similarity oracle returned no signal
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryReachability:
		return "reachability"
	case ErrCategoryExecution:
		return "execution"
	case ErrCategorySimilarity:
		return "similarity"
	default:
		return "unknown"
	}
}
