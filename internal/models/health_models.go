// internal/models/health_models.go
package models

import "time"

// HealthResponse represents basic health information about the portal process
type HealthResponse struct {
	Status    string    `json:"status"`            // "healthy" or other status indicators
	Uptime    string    `json:"uptime"`            // Human-readable uptime
	StartTime time.Time `json:"startTime"`         // When the server started
	Version   string    `json:"version,omitempty"` // Portal version
}

// ReadinessResponse reports the state of each backing service
type ReadinessResponse struct {
	Status string            `json:"status"` // "ready" or "unavailable"
	Checks map[string]string `json:"checks"` // component -> "ok" or error text
}
