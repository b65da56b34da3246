package models

import "fmt"

// ClientQuery is a text lookup over the preserved fields of clustered clients.
type ClientQuery struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit,omitempty"`
	Cluster *int   `json:"cluster,omitempty"` // restrict hits to one cluster when set
}

// Validate ensures the query has valid fields and sets defaults.
// Returns an error if the query is empty; otherwise normalizes limit.
func (q *ClientQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Cluster != nil && *q.Cluster < 0 {
		return fmt.Errorf("cluster must be non-negative, got %d", *q.Cluster)
	}
	return nil
}
