package model

import (
	"database/sql/driver"
	"fmt"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusInProgress Status = "inProgress"
	StatusCompleted  Status = "completed"
)

// DecodeError reports a stored symbol that does not map to any known
// enum value. Writes only ever serialize known symbols, so hitting this
// means the row was written by something else.
type DecodeError struct {
	Field string
	Value string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: unknown value %q", e.Field, e.Value)
}

// ParseStatus decodes a stored status symbol, strictly.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusInProgress, StatusCompleted:
		return Status(s), nil
	}
	return "", &DecodeError{Field: "status", Value: s}
}

func (s Status) String() string { return string(s) }

// Scan implements sql.Scanner. Unknown symbols fail the scan rather
// than silently falling back to a default.
func (s *Status) Scan(value any) error {
	raw, err := scanString(value)
	if err != nil {
		return fmt.Errorf("scan status: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	return string(s), nil
}

func scanString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unexpected type %T", value)
	}
}
