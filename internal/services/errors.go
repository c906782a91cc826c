package services

import (
	"fmt"
	"strings"
)

// IncompleteProfileError is returned before any generation work when the
// profile lacks a field the targets depend on.
type IncompleteProfileError struct {
	UserID  string
	Missing []string
}

func (e *IncompleteProfileError) Error() string {
	return fmt.Sprintf("profile for user %s is incomplete: missing %s", e.UserID, strings.Join(e.Missing, ", "))
}

// ParseError means the model's reply held no usable JSON object.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parsing ai response: " + e.Reason
}

// InvalidStructureError means the reply was JSON but not shaped like a plan.
type InvalidStructureError struct {
	Reason string
}

func (e *InvalidStructureError) Error() string {
	return "invalid ai response structure: " + e.Reason
}
