package models

import (
	"github.com/google/uuid"
)

// newID returns a fresh identifier for a document.
func newID() string {
	return uuid.NewString()
}
