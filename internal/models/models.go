// internal/models/models.go
package models

import "encoding/json"

// LoginRequest represents the credentials posted to /login (form or JSON)
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// ErrorResponse represents a standard error message format
type ErrorResponse struct {
	Error string `json:"error"`
}

// GenericSuccessResponse for simple success messages
type GenericSuccessResponse struct {
	Message string `json:"message"`
}

// ResolveRequest is the payload for POST /api/resolve
type ResolveRequest struct {
	Hostname string `json:"hostname" example:"core-sw1.example.net"`
}

// ResolveResponse carries the resolved address
type ResolveResponse struct {
	IP string `json:"ip" example:"192.0.2.10"`
}

// DeviceLookupResponse describes a device found by hostname
type DeviceLookupResponse struct {
	Hostname  string `json:"hostname"`
	IPAddress string `json:"ip_address"`
}

// TaskRequest is the payload for POST /api/task.
// Data is kept raw so that an absent field and an explicit null can both be rejected.
type TaskRequest struct {
	Type string          `json:"type" example:"hello"`
	Data json.RawMessage `json:"data" swaggertype:"object"`
}

// TaskAcceptedResponse is returned with 202 after a task was queued
type TaskAcceptedResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatusResponse is returned by GET /api/task/{id}
type TaskStatusResponse struct {
	TaskID  string          `json:"task_id"`
	Status  string          `json:"status" example:"SUCCESS"`
	Success bool            `json:"success"`
	Ready   bool            `json:"ready"`
	Result  json.RawMessage `json:"result" swaggertype:"object"`
}

// DeviceTaskData is the payload of the sh_int_desc task
type DeviceTaskData struct {
	IPAddress string `json:"ip_address"`
}
