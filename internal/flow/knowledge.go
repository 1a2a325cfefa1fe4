package flow

import "time"

// KnowledgeEntry is a document in the user's knowledge base, consumed by
// AI nodes and the assistant as grounding context.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
