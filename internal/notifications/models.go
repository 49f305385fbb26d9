package notifications

import "time"

// Message types pushed over the websocket
const (
	MessageTypeStatusChanged    = "project_status_changed"
	MessageTypeProjectSubmitted = "project_submitted"
	MessageTypeConnected        = "connected"
	MessageTypePong             = "pong"
)

// EventProjectSubmitted is published to the events topic for every new project
const EventProjectSubmitted = "project.submitted"

// Message is the websocket frame sent to a connected user
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Target    string                 `json:"target,omitempty"`
}

// Event is the body of an SNS publish
type Event struct {
	Event           string    `json:"event"`
	ProjectID       string    `json:"projectId"`
	ProjectName     string    `json:"projectName"`
	ClientName      string    `json:"clientName"`
	ClientEmail     string    `json:"clientEmail"`
	ProjectBudget   int64     `json:"projectBudget"`
	Currency        string    `json:"currency"`
	QuotationNumber string    `json:"quotationNumber,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}
