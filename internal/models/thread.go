package models

import "time"

// Task is a thread header. Created at-most-once per id; re-upserting
// only bumps timestamps, never the subject, status or participants.
type Task struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Subject       string    `json:"subject,omitempty"`
	ClientAddress string    `json:"client_address,omitempty"`
	AgentName     string    `json:"agent_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Message is a point-to-point event. It may reference a Task, or carry
// a legacy free-text context pair, or neither. IDs are ULIDs so that
// lexical order matches creation order.
type Message struct {
	ID          string    `json:"id"`
	TaskID      *string   `json:"task_id,omitempty"`
	Type        string    `json:"type,omitempty"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Subject     string    `json:"subject,omitempty"`
	Body        string    `json:"body"`
	ContextType string    `json:"context_type,omitempty"`
	ContextID   string    `json:"context_id,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
