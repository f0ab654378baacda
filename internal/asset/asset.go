package asset

import (
	"time"

	"github.com/roach88/assetgraph/internal/payload"
)

// Asset is a single version row.
type Asset struct {
	ID                string         `json:"id"`
	AssetUID          string         `json:"asset_uid"`
	Version           int64          `json:"version"`
	IsCurrent         bool           `json:"is_current"`
	SupersedesAssetID string         `json:"supersedes_asset_id,omitempty"`
	ProjectID         string         `json:"project_id"`
	Type              string         `json:"asset_type"`
	Subtype           string         `json:"asset_subtype,omitempty"`
	Name              string         `json:"name,omitempty"`
	Description       string         `json:"description,omitempty"`
	Metadata          payload.Object `json:"metadata"`
	Content           payload.Object `json:"content"`
	ContentHash       string         `json:"content_hash"`
	IdempotencyKey    string         `json:"idempotency_key"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Edge is a directed, typed link between two version rows.
// Edges point at the exact versions that existed when they were written.
type Edge struct {
	ID          int64          `json:"id"`
	FromAssetID string         `json:"from_asset_id"`
	ToAssetID   string         `json:"to_asset_id"`
	EdgeType    string         `json:"edge_type"`
	Metadata    payload.Object `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// WriteSpec describes the desired state of one logical asset.
//
// ProjectID plus IdempotencyKey identify the logical asset. AssetUID is an
// optional expectation: when set, the write fails if the logical asset
// already exists under a different uid. Ref is an optional batch-local alias
// that later specs in the same batch can target.
type WriteSpec struct {
	Ref            string
	AssetUID       string
	AssetType      string
	AssetSubtype   string
	Name           string
	Description    string
	ProjectID      string
	Metadata       payload.Object
	Content        payload.Object
	IdempotencyKey string
	Edges          []EdgeSpec
}

// EdgeSpec is an outgoing edge from the spec that owns it.
type EdgeSpec struct {
	Target   Target
	EdgeType string
	Metadata payload.Object
}

// Action is what the store did with one spec.
type Action string

const (
	ActionCreated    Action = "created"
	ActionSuperseded Action = "superseded"
	ActionUnchanged  Action = "unchanged"
)

// Outcome reports the result for one spec, in caller order.
type Outcome struct {
	Index        int     `json:"index"`
	Action       Action  `json:"action"`
	AssetUID     string  `json:"asset_uid"`
	ID           string  `json:"id"`
	Version      int64   `json:"version"`
	SupersededID string  `json:"superseded_id,omitempty"`
	EdgeIDs      []int64 `json:"edge_ids,omitempty"`
}

// BatchResult is returned by a committed batch.
type BatchResult struct {
	Outcomes     []Outcome `json:"outcomes"`
	Attempts     int       `json:"attempts"`
	EdgesCreated int       `json:"edges_created"`
	EdgesSkipped int       `json:"edges_skipped"`
}

// Count returns how many outcomes took action a.
func (r *BatchResult) Count(a Action) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == a {
			n++
		}
	}
	return n
}

// Filter narrows ListCurrent. Empty fields match everything.
type Filter struct {
	Type    string
	Subtype string
}
