// Package server manages the registry of external systems (EHR, LIS,
// payer, ...) the engine routes messages between, and the background
// monitor that tracks their reachability.
package server

import (
	"time"

	"github.com/google/uuid"
)

// Reachability statuses maintained by the health monitor.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Protocols a server can speak.
const (
	ProtocolFHIR = "FHIR"
	ProtocolHL7  = "HL7"
)

// Server maps to the server table.
type Server struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	IP        string    `db:"ip" json:"ip"`
	Port      int       `db:"port" json:"port"`
	Protocol  string    `db:"protocol" json:"protocol"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
