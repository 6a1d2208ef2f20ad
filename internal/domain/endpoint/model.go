// Package endpoint manages registered endpoints and the field catalogs
// discovered from their sample messages. An endpoint is one URL on a
// registered server; its fields are the paths the engine knows how to
// address when mapping rules are built against it.
package endpoint

import (
	"time"

	"github.com/google/uuid"
)

// Endpoint maps to the endpoint table.
type Endpoint struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ServerID  uuid.UUID `db:"server_id" json:"server_id"`
	URL       string    `db:"url" json:"url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Field maps to the endpoint_field table: one addressable path
// discovered from the endpoint's sample message, labelled with its
// canonical name.
type Field struct {
	ID         uuid.UUID `db:"id" json:"id"`
	EndpointID uuid.UUID `db:"endpoint_id" json:"endpoint_id"`
	Resource   string    `db:"resource" json:"resource"`
	Path       string    `db:"path" json:"path"`
	Name       string    `db:"name" json:"name"`
}
