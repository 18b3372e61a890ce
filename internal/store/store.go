package store

import "time"

// BlockRecord is the storage representation of one block's lifecycle state.
//
// BlockRecord is decoupled from the registry's live Block so that the JSON
// served by the API and SSE stream can evolve independently of the tree.
type BlockRecord struct {
	// ID identifies the block within its page: "{page}#{index}".
	ID string `json:"id"`

	// Page is the path of the rendered page.
	Page string `json:"page"`

	// Name is the block name (first class token without variants).
	Name string `json:"name"`

	// Status is the lifecycle status ("initialized", "loading", "loaded").
	Status string `json:"status"`

	// Variants are the "--" modifiers of the block class.
	Variants []string `json:"variants,omitempty"`

	// Decorated is true once a decorator ran without error.
	Decorated bool `json:"decorated"`

	// DurationMs is the load time, set once the block is loaded.
	DurationMs int64 `json:"duration_ms"`

	// UpdatedAt is the time of the last status change.
	UpdatedAt time.Time `json:"updated_at"`

	// Error contains the decoration failure, if any.
	Error *string `json:"error"`
}

// EventRecord is a sampled visibility or page checkpoint.
type EventRecord struct {
	Page       string    `json:"page"`
	ID         string    `json:"id"`
	Checkpoint string    `json:"checkpoint"`
	Weight     int       `json:"weight"`
	Target     string    `json:"target,omitempty"`
	Source     string    `json:"source,omitempty"`
	Selected   bool      `json:"selected"`
	Time       time.Time `json:"time"`
}

// Store defines the interface for storing and subscribing to block updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism pushes block status changes to connected dashboard clients.
type Store interface {
	// Update stores a block record and notifies all subscribers.
	// Records are keyed by ID, so later updates replace earlier ones.
	Update(record BlockRecord)

	// GetAll returns a snapshot of all stored block records.
	GetAll() []BlockRecord

	// Subscribe returns a buffered channel of block updates.
	// Slow consumers may miss updates. Call Unsubscribe when done.
	Subscribe() <-chan BlockRecord

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan BlockRecord)

	// RecordEvent appends a checkpoint to the bounded event log.
	RecordEvent(ev EventRecord)

	// Events returns up to limit of the most recent events, oldest first.
	// limit <= 0 returns everything retained.
	Events(limit int) []EventRecord
}
