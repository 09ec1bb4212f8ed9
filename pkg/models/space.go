package models

import (
	"time"

	"github.com/google/uuid"
)

// Space represents a tenant workspace. Every schedule, job, execution record
// and alert belongs to a space.
type Space struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
