package core

import "github.com/google/uuid"

// NewID generates a globally unique identifier.
func NewID() string { return uuid.NewString() }
