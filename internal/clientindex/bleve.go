package clientindex

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/clusterizer/internal/models"
	"go.uber.org/zap"
)

const (
	fieldRunID   = "run_id"
	fieldRow     = "row"
	fieldCluster = "cluster"
	fieldID      = "IdUnico"

	docType = "client"
)

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index     bleve.Index
	fuzziness int
	logger    *zap.Logger
}

// Option configures a BleveIndex.
type Option func(*BleveIndex)

// WithFuzziness sets the edit distance used when an exact query finds nothing.
// Zero disables the fuzzy retry.
func WithFuzziness(n int) Option {
	return func(b *BleveIndex) { b.fuzziness = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *BleveIndex) {
		if l != nil {
			b.logger = l
		}
	}
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Standard analyzer lowercases and tokenizes without stemming, so Spanish names and
	// titles match as typed.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	for _, name := range models.ClientFieldNames {
		if name == fieldID {
			continue
		}
		docMapping.AddFieldMappingsAt(name, text)
	}
	keyword := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt(fieldID, keyword)
	docMapping.AddFieldMappingsAt(fieldRunID, keyword)
	numeric := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt(fieldCluster, numeric)
	docMapping.AddFieldMappingsAt(fieldRow, numeric)

	im.AddDocumentMapping(docType, docMapping)
	im.DefaultType = docType
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = standard.Name
	return im
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened so lookups survive restarts. An empty path creates an
// in-memory index.
func NewBleveIndex(path string, opts ...Option) (*BleveIndex, error) {
	b := &BleveIndex{fuzziness: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		b.index = index
		return b, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		b.index = index
		return b, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	b.index = index
	return b, nil
}

// docID keys a client by IdUnico, falling back to the run row for records without one.
func docID(runID string, a *models.Assignment) string {
	if id := strings.TrimSpace(a.Client.IDUnico); id != "" {
		return id
	}
	return runID + ":" + strconv.Itoa(a.Row)
}

func document(runID string, a *models.Assignment) map[string]interface{} {
	doc := make(map[string]interface{}, len(models.ClientFieldNames)+3)
	for i, v := range a.Client.Values() {
		if v != "" {
			doc[models.ClientFieldNames[i]] = v
		}
	}
	doc[fieldRunID] = runID
	doc[fieldRow] = float64(a.Row)
	doc[fieldCluster] = float64(a.Cluster)
	return doc
}

// IndexPrediction indexes all assignments of p in one batch.
func (b *BleveIndex) IndexPrediction(ctx context.Context, p *models.Prediction) error {
	batch := b.index.NewBatch()
	for _, a := range p.Assignments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(docID(p.RunID, a), document(p.RunID, a)); err != nil {
			return fmt.Errorf("index client row %d: %w", a.Row, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	b.logger.Debug("indexed clients", zap.String("run_id", p.RunID), zap.Int("count", batch.Size()))
	return nil
}

// Search runs a match query over the client fields. When nothing matches exactly and
// fuzziness is enabled, the query is retried with per-term fuzzy matching.
func (b *BleveIndex) Search(ctx context.Context, q *models.ClientQuery) ([]*Hit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	hits, err := b.search(b.filter(bleve.NewMatchQuery(q.Query), q), q.Limit)
	if err != nil || len(hits) > 0 || b.fuzziness <= 0 {
		return hits, err
	}
	return b.search(b.filter(buildFuzzyQuery(q.Query, b.fuzziness), q), q.Limit)
}

func (b *BleveIndex) filter(text blevequery.Query, q *models.ClientQuery) blevequery.Query {
	if q.Cluster == nil {
		return text
	}
	c := float64(*q.Cluster)
	inclusive := true
	rq := bleve.NewNumericRangeInclusiveQuery(&c, &c, &inclusive, &inclusive)
	rq.SetField(fieldCluster)
	return bleve.NewConjunctionQuery(text, rq)
}

func (b *BleveIndex) search(q blevequery.Query, limit int) ([]*Hit, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Hit, len(results.Hits))
	for i, h := range results.Hits {
		hit := &Hit{ID: h.ID, Score: h.Score}
		for name, v := range h.Fields {
			switch name {
			case fieldRunID:
				hit.RunID, _ = v.(string)
			case fieldCluster:
				if f, ok := v.(float64); ok {
					hit.Cluster = int(f)
				}
			default:
				if s, ok := v.(string); ok {
					hit.Client.Set(name, s)
				}
			}
		}
		out[i] = hit
	}
	return out, nil
}

// buildFuzzyQuery creates a disjunction of fuzzy queries, one per term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := strings.Fields(strings.ToLower(queryStr))
	if len(terms) == 0 {
		return bleve.NewMatchQuery(queryStr)
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DeleteRun removes every document last written by runID.
func (b *BleveIndex) DeleteRun(ctx context.Context, runID string) error {
	tq := bleve.NewTermQuery(runID)
	tq.SetField(fieldRunID)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := bleve.NewSearchRequest(tq)
		req.Size = 500
		results, err := b.index.Search(req)
		if err != nil {
			return fmt.Errorf("Bleve search failed: %w", err)
		}
		if len(results.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, h := range results.Hits {
			batch.Delete(h.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch delete failed: %w", err)
		}
	}
}

// DocCount returns the number of indexed clients.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
