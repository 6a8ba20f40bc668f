package model

import "time"

// Relation is a typed directed edge between two memories.
type Relation struct {
	ID        string
	FromID    string
	ToID      string
	Type      string
	Weight    float64
	Metadata  map[string]any
	CreatedAt time.Time
}

const (
	RelationRelatedTo       = "related_to"
	RelationConsolidatedFrom = "consolidated_from"
)
