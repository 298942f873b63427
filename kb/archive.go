package kb

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/kb/mysqlindex"
	"github.com/evobeam/ebs-go/mathengine"
)

// EpsilonThreshold scales the adaptive bandwidth into the eligibility
// radius for SearchExperiences: a record is eligible iff its distance to
// the query is less than EpsilonThreshold * epsilon.
const EpsilonThreshold = 1.0

// DefaultEpsilon is used when the population has too few embedded records
// to estimate a bandwidth (fewer than two).
const DefaultEpsilon = 10.0

// contentPreviewLen bounds the content field of a search result.
const contentPreviewLen = 300

// Archive is the file-based Knowledge Base: every record is one JSON file
// in Dir, written atomically (temp file, then rename). An optional
// mysqlindex.Index mirrors every write and, when reachable, serves search
// first; the directory is always the source of truth.
type Archive struct {
	Dir      string
	Embedder model.Embedder
	Index    *mysqlindex.Index

	mu sync.Mutex
}

// NewArchive creates (if necessary) dir and returns an Archive rooted
// there. embedder may be nil, in which case records are persisted without
// an embedding and search falls back to substring matching. index may be
// nil, in which case search always scans the directory.
func NewArchive(dir string, embedder model.Embedder, index *mysqlindex.Index) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kb: create archive dir: %w", err)
	}
	return &Archive{Dir: dir, Embedder: embedder, Index: index}, nil
}

func newRecordID() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return "kb-" + hex.EncodeToString(buf[:])
}

// WriteExperience persists a new record of the given type, attempting to
// embed its title and content. Embedding failure is not fatal: the record
// is persisted regardless so the write is never lost because a provider
// was unreachable.
func (a *Archive) WriteExperience(ctx context.Context, title, content string, typ RecordType, tags []string, metadata map[string]interface{}) (Record, error) {
	rec := Record{
		ID:        newRecordID(),
		Title:     title,
		Content:   content,
		Type:      typ,
		Tags:      tags,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}

	if a.Embedder != nil {
		if vec, err := a.Embedder.Embed(ctx, title+"\n"+content); err == nil {
			rec.Embedding = vec
		}
	}

	if err := a.persist(rec); err != nil {
		return Record{}, err
	}
	a.mirror(ctx, rec)
	return rec, nil
}

// WriteStrategyArchive records a hard-pruned strategy's synthesis
// rationale as a branch_archive entry. Its signature matches
// nodes.ArchiveBranch so it can be bound directly as Deps.Archive.
func (a *Archive) WriteStrategyArchive(ctx context.Context, strategyID, rationale string) {
	_, _ = a.WriteExperience(ctx, strategyID, rationale, TypeBranchArchive, nil, nil)
}

func (a *Archive) persist(rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("kb: marshal record: %w", err)
	}

	safeTitle := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '_'
	}, rec.Title)
	if len(safeTitle) > 50 {
		safeTitle = safeTitle[:50]
	}
	shortID := strings.TrimPrefix(rec.ID, "kb-")
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	name := rec.CreatedAt.UTC().Format("20060102_150405") + "_" + string(rec.Type) + "_" + safeTitle + "_" + shortID + ".json"
	final := filepath.Join(a.Dir, name)
	tmp, err := os.CreateTemp(a.Dir, rec.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("kb: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("kb: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("kb: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("kb: rename into place: %w", err)
	}
	return nil
}

func (a *Archive) mirror(ctx context.Context, rec Record) {
	if a.Index == nil {
		return
	}
	_ = a.Index.Write(ctx, mysqlindex.Record{
		ID:        rec.ID,
		Title:     rec.Title,
		Content:   rec.Content,
		Type:      string(rec.Type),
		Tags:      rec.Tags,
		CreatedAt: rec.CreatedAt,
		Metadata:  rec.Metadata,
		Embedding: rec.Embedding,
	})
}

// loadAll scans the directory for records, lazily embedding and
// re-persisting any that lack one.
func (a *Archive) loadAll(ctx context.Context, typeFilter RecordType) ([]Record, error) {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		return nil, fmt.Errorf("kb: read archive dir: %w", err)
	}

	var out []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.Dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if typeFilter != "" && rec.Type != typeFilter {
			continue
		}
		if len(rec.Embedding) == 0 && a.Embedder != nil {
			if vec, err := a.Embedder.Embed(ctx, rec.Title+"\n"+rec.Content); err == nil {
				rec.Embedding = vec
				_ = a.persist(rec)
				a.mirror(ctx, rec)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// SearchExperiences ranks archived records against a query. queryEmbedding
// may be nil, in which case the query text is embedded with the Archive's
// Embedder (when it has one and query is non-empty). Without an embedding,
// a case-insensitive substring match over title, content, and tags is used
// instead (every hit scored 1.0). typeFilter may be empty to search across
// all types.
func (a *Archive) SearchExperiences(ctx context.Context, query string, queryEmbedding []float64, typeFilter RecordType, limit int) ([]SearchResult, error) {
	if len(queryEmbedding) == 0 && a.Embedder != nil && query != "" {
		if vec, err := a.Embedder.Embed(ctx, query); err == nil {
			queryEmbedding = vec
		}
	}

	if a.Index != nil {
		if results, err := a.searchViaIndex(ctx, query, queryEmbedding, typeFilter, limit); err == nil {
			return results, nil
		}
	}

	records, err := a.loadAll(ctx, typeFilter)
	if err != nil {
		return nil, err
	}

	if len(queryEmbedding) == 0 {
		return substringSearch(records, query, limit), nil
	}
	return nearestNeighborSearch(records, queryEmbedding, limit), nil
}

func (a *Archive) searchViaIndex(ctx context.Context, query string, queryEmbedding []float64, typeFilter RecordType, limit int) ([]SearchResult, error) {
	candidates, err := a.Index.SearchByType(ctx, string(typeFilter), limit*4+limit)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, Record{
			Title: c.Title, Content: c.Content, Type: RecordType(c.Type),
			Tags: c.Tags, CreatedAt: c.CreatedAt, Metadata: c.Metadata, Embedding: c.Embedding,
		})
	}
	if len(queryEmbedding) == 0 {
		return substringSearch(records, query, limit), nil
	}
	return nearestNeighborSearch(records, queryEmbedding, limit), nil
}

func substringSearch(records []Record, query string, limit int) []SearchResult {
	q := strings.ToLower(query)
	var out []SearchResult
	for _, rec := range records {
		if q != "" && !matchesSubstring(rec, q) {
			continue
		}
		out = append(out, toResult(rec, 0, 1.0))
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func matchesSubstring(rec Record, q string) bool {
	if strings.Contains(strings.ToLower(rec.Title), q) || strings.Contains(strings.ToLower(rec.Content), q) {
		return true
	}
	for _, tag := range rec.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func nearestNeighborSearch(records []Record, queryEmbedding []float64, limit int) []SearchResult {
	var embedded [][]float64
	for _, rec := range records {
		if len(rec.Embedding) > 0 {
			embedded = append(embedded, rec.Embedding)
		}
	}
	epsilon := DefaultEpsilon
	if len(embedded) >= 2 {
		epsilon = mathengine.EstimateBandwidth(embedded, mathengine.PairwiseDistSq(embedded))
	}
	radius := EpsilonThreshold * epsilon

	type scored struct {
		rec Record
		d   float64
	}
	var candidates []scored
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			continue
		}
		d := euclidean(rec.Embedding, queryEmbedding)
		if d < radius {
			candidates = append(candidates, scored{rec, d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].d < candidates[j].d })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, toResult(c.rec, c.d, 1.0/(1.0+c.d)))
	}
	return out
}

func toResult(rec Record, distance, score float64) SearchResult {
	content := rec.Content
	if len(content) > contentPreviewLen {
		content = content[:contentPreviewLen]
	}
	return SearchResult{
		Title: rec.Title, Type: rec.Type, Content: content, Tags: rec.Tags,
		Distance: distance, Score: score,
	}
}

func euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
