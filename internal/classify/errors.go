package classify

import "fmt"

// ParseError indicates the oracle's response was not syntactically valid
// structured output. Not retryable by this package; the orchestrator
// decides whether to abort the ingestion.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification parse error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("classification parse error: %s", e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SchemaError indicates structurally valid output that violates the
// classification contract: missing or invented columns, roles outside the
// enumerated set, stages outside the canonical vocabulary, or confidence
// out of range. Not retryable.
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("classification schema error: %s", e.Msg)
}
