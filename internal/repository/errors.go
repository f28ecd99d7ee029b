// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values let the service and handler layers
// tell a missing row apart from a failing database.
package repository

import "errors"

// ErrPromotionNotFound is returned when no promotion has the requested id.
var ErrPromotionNotFound = errors.New("promotion not found")

// ErrContactNotFound is returned when no contact submission has the requested id.
var ErrContactNotFound = errors.New("contact not found")

// ErrSessionNotFound is returned when an admin session is unknown, revoked
// or expired.  Callers treat all three the same way: the caller is logged out.
var ErrSessionNotFound = errors.New("session not found")
