package model

import "time"

// AgentProfile holds rolling statistics used only for anomaly scoring
// (spec §3, §4.9).
type AgentProfile struct {
	AgentID           string
	MeanImportance    float64
	MeanContentLength float64
	MemoryCount       int64
	LastUpdated       time.Time
}

// Update folds a new observation into the running means using the
// standard incremental-mean formula, and bumps the count.
func (p *AgentProfile) Update(importance float64, contentLength int, now time.Time) {
	n := float64(p.MemoryCount)
	p.MeanImportance = (p.MeanImportance*n + importance) / (n + 1)
	p.MeanContentLength = (p.MeanContentLength*n + float64(contentLength)) / (n + 1)
	p.MemoryCount++
	p.LastUpdated = now
}

// Watermark is a named high-water RFC3339 timestamp used by the sync
// engine to mark the last successful push or pull.
type Watermark struct {
	Name  string
	Value time.Time
}
