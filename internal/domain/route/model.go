// Package route manages routes and their mapping rules, and loads the
// per-route snapshots the runtime workers run on. A route is a one-way
// channel from a source endpoint to a destination endpoint; its rules
// say how source fields become destination fields.
package route

import (
	"time"

	"github.com/google/uuid"
)

// Route maps to the route table.
type Route struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	SrcServerID    uuid.UUID `db:"src_server_id" json:"src_server_id"`
	SrcEndpointID  uuid.UUID `db:"src_endpoint_id" json:"src_endpoint_id"`
	DestServerID   uuid.UUID `db:"dest_server_id" json:"dest_server_id"`
	DestEndpointID uuid.UUID `db:"dest_endpoint_id" json:"dest_endpoint_id"`
	MsgType        string    `db:"msg_type" json:"msg_type"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MappingRule maps to the mapping_rule table. Split and concat groups
// are stored expanded, one row per leg; Position preserves declaration
// order, which fixes which split leg gets which part.
type MappingRule struct {
	ID            uuid.UUID              `db:"id" json:"id"`
	RouteID       uuid.UUID              `db:"route_id" json:"route_id"`
	Position      int                    `db:"position" json:"position"`
	SrcFieldID    uuid.UUID              `db:"src_field_id" json:"src_field_id"`
	DestFieldID   uuid.UUID              `db:"dest_field_id" json:"dest_field_id"`
	TransformType string                 `db:"transform_type" json:"transform_type"`
	Config        map[string]interface{} `db:"config" json:"config"`
}
