package rum

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"
	"unicode/utf16"
)

// Defaults used when a [Config] leaves them unset.
const (
	DefaultWeight     = 10
	DefaultCollector  = "https://rum.hlx.page"
	DefaultGeneration = "blog-gen-7-highrate"
)

// QueryParam forces every page view into the sample when set to "on".
const QueryParam = "rum"

// Checkpoints emitted by the bootstrap and the observer.
const (
	CheckpointTop       = "top"
	CheckpointLCP       = "lcp"
	CheckpointLoad      = "load"
	CheckpointError     = "error"
	CheckpointViewBlock = "viewblock"
	CheckpointViewMedia = "viewmedia"
)

// Data carries the optional checkpoint details.
type Data struct {
	Target string
	Source string
}

// Event is one sampled checkpoint.
type Event struct {
	Weight     int       `json:"weight"`
	ID         string    `json:"id"`
	Referer    string    `json:"referer"`
	Generation string    `json:"generation"`
	Checkpoint string    `json:"checkpoint"`
	Target     string    `json:"target,omitempty"`
	Source     string    `json:"source,omitempty"`
	Selected   bool      `json:"-"`
	Time       time.Time `json:"-"`
}

// Sink receives every event, sampled or not.
type Sink interface {
	RecordEvent(Event)
}

// Poster transmits a beacon.
type Poster interface {
	Post(ctx context.Context, url, contentType string, body []byte) error
}

// Config configures a [Sampler].
type Config struct {
	// Collector is the beacon endpoint base. Defaults to DefaultCollector.
	Collector string

	// Generation tags every event. Defaults to DefaultGeneration.
	Generation string

	// Weight is the sampling weight: one in Weight page views is selected.
	// Defaults to DefaultWeight. rum=on in the page query forces 1.
	Weight int

	// Rand is the random source for the id and the draw. Defaults to a
	// randomly seeded source.
	Rand *rand.Rand

	// Now defaults to time.Now.
	Now func() time.Time

	// Poster sends selected events. Without one nothing is transmitted.
	Poster Poster

	// Sink receives every event.
	Sink Sink

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Sampler decides once per page view whether its checkpoints are sent to the
// collector. The decision and the view id are fixed at construction.
type Sampler struct {
	weight   int
	id       string
	random   float64
	selected bool
	referer  string
	cfg      Config
}

// NewSampler creates the sample record of the page view at pageURL.
func NewSampler(pageURL *url.URL, cfg Config) *Sampler {
	if cfg.Collector == "" {
		cfg.Collector = DefaultCollector
	}
	cfg.Collector = strings.TrimSuffix(cfg.Collector, "/")
	if cfg.Generation == "" {
		cfg.Generation = DefaultGeneration
	}
	if cfg.Weight <= 0 {
		cfg.Weight = DefaultWeight
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	weight := cfg.Weight
	if pageURL.Query().Get(QueryParam) == "on" {
		weight = 1
	}

	href := pageURL.String()
	id := fmt.Sprintf("%d-%d-%014x", hashCode(href), cfg.Now().UnixMilli(), cfg.Rand.Uint64N(1<<56))
	random := cfg.Rand.Float64()

	return &Sampler{
		weight:   weight,
		id:       id,
		random:   random,
		selected: random*float64(weight) < 1,
		referer:  href,
		cfg:      cfg,
	}
}

// hashCode is the 32-bit string hash used in view ids:
// h = h*31 + c over the UTF-16 code units, wrapping.
func hashCode(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(u)
	}
	return h
}

// Weight returns the effective sampling weight.
func (s *Sampler) Weight() int { return s.weight }

// ID returns the page view id.
func (s *Sampler) ID() string { return s.id }

// Random returns the random draw.
func (s *Sampler) Random() float64 { return s.random }

// Selected reports whether this page view is part of the sample.
func (s *Sampler) Selected() bool { return s.selected }

// Sample records a checkpoint. The event always reaches the sink; it is
// posted to {collector}/.rum/{weight} only when the page view is selected.
// Transmission failures are logged, never returned.
func (s *Sampler) Sample(ctx context.Context, checkpoint string, data Data) {
	ev := Event{
		Weight:     s.weight,
		ID:         s.id,
		Referer:    s.referer,
		Generation: s.cfg.Generation,
		Checkpoint: checkpoint,
		Target:     data.Target,
		Source:     data.Source,
		Selected:   s.selected,
		Time:       s.cfg.Now(),
	}

	if s.cfg.Sink != nil {
		s.cfg.Sink.RecordEvent(ev)
	}
	if !s.selected || s.cfg.Poster == nil {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		s.cfg.Logger.Debug("failed to encode rum event", "checkpoint", checkpoint, "error", err)
		return
	}
	endpoint := fmt.Sprintf("%s/.rum/%d", s.cfg.Collector, s.weight)
	if err := s.cfg.Poster.Post(ctx, endpoint, "application/json", body); err != nil {
		s.cfg.Logger.Debug("failed to send rum event", "checkpoint", checkpoint, "error", err)
	}
}
