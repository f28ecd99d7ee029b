package service

import (
	"errors"
	"strings"
)

var (
	// ErrImageTooLarge is returned before anything is written when an
	// upload exceeds the configured size.
	ErrImageTooLarge = errors.New("La taille de l'image ne doit pas dépasser 5 Mo.")
	// ErrUnsupportedImage is returned for files that are not pictures.
	ErrUnsupportedImage = errors.New("format d'image non supporté")
)

// Field messages shown next to form inputs.
const (
	MsgRequired    = "champ obligatoire"
	MsgInvalidDate = "date invalide, format attendu AAAA-MM-JJ"
	MsgInvalidURL  = "adresse d'image invalide"
	MsgInvalidMail = "adresse e-mail invalide"
	MsgTooShort    = "2 caractères minimum"
	MsgTooLong     = "texte trop long"
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is returned when input is rejected before any storage call.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Fields returns the errors keyed by field name.
func (v ValidationErrors) Fields() map[string]string {
	m := make(map[string]string, len(v))
	for _, e := range v {
		m[e.Field] = e.Message
	}
	return m
}

// Has reports whether field was rejected.
func (v ValidationErrors) Has(field string) bool {
	for _, e := range v {
		if e.Field == field {
			return true
		}
	}
	return false
}

func (v *ValidationErrors) add(field, msg string) {
	*v = append(*v, ValidationError{Field: field, Message: msg})
}

func (v ValidationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
