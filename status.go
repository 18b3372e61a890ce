package pageblocks

import (
	"time"

	"github.com/jpalmerr/pageblocks/internal/registry"
)

// BlockStatus is the load state of a block.
//
// A block moves initialized → loading → loaded and never backwards. The
// status is also mirrored into the block element's data-block-status
// attribute.
type BlockStatus string

const (
	// StatusInitialized marks a classified block that has not started loading.
	StatusInitialized BlockStatus = BlockStatus(registry.StatusInitialized)

	// StatusLoading marks a block whose stylesheet and decorator are in flight.
	StatusLoading BlockStatus = BlockStatus(registry.StatusLoading)

	// StatusLoaded marks a settled block, whether or not decoration succeeded.
	StatusLoaded BlockStatus = BlockStatus(registry.StatusLoaded)
)

// String returns the string representation of the status.
func (s BlockStatus) String() string {
	return string(s)
}

// Phase names a bootstrap phase.
type Phase string

const (
	// PhaseEager decorates the page and loads the LCP block.
	PhaseEager Phase = "eager"

	// PhaseLazy loads header, footer and every remaining block.
	PhaseLazy Phase = "lazy"

	// PhaseDelayed adds the delayed script after a pause.
	PhaseDelayed Phase = "delayed"
)

// BlockResult describes one block of a rendered page.
type BlockResult struct {
	// Page is the path of the page the block belongs to.
	Page string

	// Index is the block's registration order within the page.
	Index int

	// Name is the block name.
	Name string

	// Variants are the "--" modifiers of the block class.
	Variants []string

	// Status is the block status when the result was taken.
	Status BlockStatus

	// Decorated is true when the decorator ran without error.
	Decorated bool

	// Error is the decoration error, if any.
	Error error

	// Duration is the load time; zero until loaded.
	Duration time.Duration

	// UpdatedAt is the time of the status change that produced the result.
	UpdatedAt time.Time
}
