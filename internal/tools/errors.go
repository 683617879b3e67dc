package tools

import "fmt"

// UnknownToolError is returned when a dispatch targets a name that is
// not present in the effective registry. No handler runs. The loop
// converts it into an observation so the model can correct itself.
type UnknownToolError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// InvalidArgumentsError is returned when the model's argument blob does
// not conform to the tool's declared schema. It names the offending
// field so the model can repair the call. No handler runs.
type InvalidArgumentsError struct {
	Tool   string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: field %q: %s", e.Tool, e.Field, e.Reason)
}
