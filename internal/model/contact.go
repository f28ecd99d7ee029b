package model

import "time"

// Contact is a visitor inquiry sent through the public contact form.  It maps
// to the `contacts` table, whose column names (nom, telephone) come from the
// French front end and are kept as-is on the wire.
type Contact struct {
	ID        string    `json:"id"`
	Nom       string    `json:"nom"`
	Email     string    `json:"email"`
	Telephone string    `json:"telephone"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
