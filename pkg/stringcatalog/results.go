package stringcatalog

import (
	"time"

	"github.com/rzpsarthak13/string-catalog/internal/core"
)

type (
	// Record is a cataloged string with its derived properties.
	Record = core.StringRecord

	// Properties are the values derived from a string at ingestion.
	Properties = core.Properties

	// Filter is a conjunction of optional record predicates.
	Filter = core.QueryFilter
)

// QueryResult is the answer to a structured query. FiltersApplied echoes
// the recognized parameters exactly as the caller sent them.
type QueryResult struct {
	Data           []*Record         `json:"data"`
	Count          int               `json:"count"`
	FiltersApplied map[string]string `json:"filters_applied"`
}

// InterpretedQuery echoes how free text was understood.
type InterpretedQuery struct {
	Original      string `json:"original"`
	ParsedFilters Filter `json:"parsed_filters"`
}

// NaturalQueryResult is the answer to a natural-language query.
type NaturalQueryResult struct {
	Data             []*Record        `json:"data"`
	Count            int              `json:"count"`
	InterpretedQuery InterpretedQuery `json:"interpreted_query"`
}

// Health reports whether the catalog answers and how the event drainer is doing.
type Health struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Records   int64        `json:"records"`
	Events    EventsHealth `json:"events"`
}

type EventsHealth struct {
	Enabled   bool `json:"enabled"`
	Running   bool `json:"running"`
	QueueSize int  `json:"queue_size"`
}

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)
