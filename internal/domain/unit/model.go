// Package unit holds the corpus unit model. Units are created at
// ingestion, outside the scoring core, and never mutated here.
package unit

// Unit is one immutable text item of a project's corpus.
type Unit struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Body      string `json:"body"`
	PageRef   string `json:"page_ref,omitempty"`
	Seq       int    `json:"seq"`
}
