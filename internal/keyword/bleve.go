package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/pdbstat/internal/models"
)

// analyzerName lowercases and splits on word boundaries without removing
// stop words, so single-letter chain IDs such as "A" stay searchable.
const analyzerName = "pdbstat_text"

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// indexedRecord is the searchable projection of an AnalysisRecord.
type indexedRecord struct {
	Kind         string   `json:"kind"`
	Name         string   `json:"name"`
	StructureIDs []string `json:"structure_ids"`
	Chains       []string `json:"chains"`
	ResidueTypes []string `json:"residue_types"`
	SourcePath   string   `json:"source_path"`
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	im, err := newIndexMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}
	im.DefaultAnalyzer = analyzerName

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = analyzerName
	for _, field := range []string{"name", "structure_ids", "chains", "residue_types", "source_path"} {
		docMapping.AddFieldMappingsAt(field, textFieldMapping)
	}
	docMapping.AddFieldMappingsAt("kind", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping
	return im, nil
}

// Index indexes a record under its ID, replacing any previous version.
func (b *BleveIndex) Index(ctx context.Context, rec *models.AnalysisRecord) error {
	return b.index.Index(rec.ID, project(rec))
}

func project(rec *models.AnalysisRecord) indexedRecord {
	doc := indexedRecord{Kind: string(rec.Kind), Name: rec.Name, SourcePath: rec.SourcePath}
	if rec.StructureID != "" {
		doc.StructureIDs = append(doc.StructureIDs, rec.StructureID)
	}
	switch {
	case rec.Summary != nil:
		s := rec.Summary
		doc.Chains = append(doc.Chains, s.ChainOrder...)
		doc.ResidueTypes = s.ResidueTypes.Sorted()
	case rec.Comparison != nil:
		c := rec.Comparison
		doc.StructureIDs = append(doc.StructureIDs, c.Structure1, c.Structure2)
		for _, set := range []interface{ Sorted() []string }{c.CommonChains, c.UniqueChains1, c.UniqueChains2} {
			doc.Chains = append(doc.Chains, set.Sorted()...)
		}
		for _, set := range []interface{ Sorted() []string }{c.CommonResidueTypes, c.UniqueResidueTypes1, c.UniqueResidueTypes2} {
			doc.ResidueTypes = append(doc.ResidueTypes, set.Sorted()...)
		}
	}
	return doc
}

// Search runs a match query and returns up to limit results, best first.
// When opts.FuzzyEnabled is true, every query term is matched fuzzily and a
// record matches if any term does.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	var q blevequery.Query
	if opts != nil && opts.FuzzyEnabled {
		fuzziness := 1
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		q = bleve.NewMatchQuery(query)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

func buildFuzzyQuery(query string, fuzziness int) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a record from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of records in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
