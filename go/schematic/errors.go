package schematic

import "fmt"

// CorruptContainerError means the input is not a schematic we understand
// or its length fields disagree with each other.
type CorruptContainerError struct {
	Offset int
	Reason string
}

func (e *CorruptContainerError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("corrupt schematic at offset %d: %s", e.Offset, e.Reason)
	}
	return "corrupt schematic: " + e.Reason
}

// TruncatedDataError means the payload ended before a declared field did.
type TruncatedDataError struct {
	Offset int
	Field  string
}

func (e *TruncatedDataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schematic truncated at offset %d", e.Offset)
	}
	return fmt.Sprintf("schematic truncated at offset %d reading %s", e.Offset, e.Field)
}

func corrupt(offset int, format string, args ...any) error {
	return &CorruptContainerError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
