// Package fulltext implements mnemo's inverted full-text index (spec
// §4.3): a single text field per memory id, BM25 ranking, staged writes
// that become visible only after Commit.
//
// No full-text search library (bleve, tantivy-equivalent, etc.) appears
// anywhere in the retrieved example pack, so this is a from-scratch
// implementation — see DESIGN.md. Tokenization is a simple
// language-agnostic lowercase/split-on-non-alphanumeric scheme, matching
// the "language-agnostic tokenizer" the spec calls for without pulling
// in a stemmer or language model.
package fulltext

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
)

// SearchResult pairs a memory id with its BM25 score (higher is more
// relevant).
type SearchResult struct {
	ID    string
	Score float64
}

// BM25 tuning constants, the conventional defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type document struct {
	tokens   []string
	termFreq map[string]int
	length   int
}

// Index is a staged inverted index: Add/Remove mutate a pending
// changeset, and Commit applies it atomically to the searchable state.
// This mirrors the "writes are staged, visible only after commit, with
// an on-commit searcher reload policy" contract the spec requires.
type Index struct {
	mu sync.RWMutex

	docs        map[string]document // committed, searchable
	avgDocLen   float64
	docFreq     map[string]int // committed term -> number of docs containing it

	pendingPuts    map[string]string // id -> content, staged
	pendingDeletes map[string]bool
}

// New creates an empty full-text index.
func New() *Index {
	return &Index{
		docs:           make(map[string]document),
		docFreq:        make(map[string]int),
		pendingPuts:    make(map[string]string),
		pendingDeletes: make(map[string]bool),
	}
}

// Add stages content for id. The change is not searchable until
// Commit.
func (idx *Index) Add(id, content string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.pendingDeletes, id)
	idx.pendingPuts[id] = content
}

// Remove stages removal of id. The id field is treated as a literal
// string so remove-by-id is exact, matching spec §4.3.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.pendingPuts, id)
	idx.pendingDeletes[id] = true
}

// Commit applies all staged Add/Remove calls, rebuilding document
// frequencies and the average document length used by BM25.
func (idx *Index) Commit() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for id := range idx.pendingDeletes {
		if d, ok := idx.docs[id]; ok {
			for term := range d.termFreq {
				idx.docFreq[term]--
				if idx.docFreq[term] <= 0 {
					delete(idx.docFreq, term)
				}
			}
			delete(idx.docs, id)
		}
	}
	for id, content := range idx.pendingPuts {
		if old, ok := idx.docs[id]; ok {
			for term := range old.termFreq {
				idx.docFreq[term]--
				if idx.docFreq[term] <= 0 {
					delete(idx.docFreq, term)
				}
			}
		}
		tokens := tokenize(content)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			idx.docFreq[term]++
		}
		idx.docs[id] = document{tokens: tokens, termFreq: tf, length: len(tokens)}
	}

	idx.pendingPuts = make(map[string]string)
	idx.pendingDeletes = make(map[string]bool)

	var total int
	for _, d := range idx.docs {
		total += d.length
	}
	if len(idx.docs) > 0 {
		idx.avgDocLen = float64(total) / float64(len(idx.docs))
	} else {
		idx.avgDocLen = 0
	}
	return nil
}

// Len reports the number of committed, searchable documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Search ranks committed documents against query by BM25, descending.
func (idx *Index) Search(query string, k int) []SearchResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := tokenize(query)
	if len(terms) == 0 || len(idx.docs) == 0 {
		return nil
	}
	n := float64(len(idx.docs))

	scores := make(map[string]float64)
	for id, d := range idx.docs {
		var score float64
		for _, term := range terms {
			df := idx.docFreq[term]
			if df == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
			tf := float64(d.termFreq[term])
			denom := tf + bm25K1*(1-bm25B+bm25B*float64(d.length)/maxFloat(idx.avgDocLen, 1))
			if denom == 0 {
				continue
			}
			score += idf * (tf * (bm25K1 + 1)) / denom
		}
		if score > 0 {
			scores[id] = score
		}
	}

	out := make([]SearchResult, 0, len(scores))
	for id, score := range scores {
		out = append(out, SearchResult{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// persisted is the on-disk representation of the committed index,
// written as a directory (spec §6) containing a single data file — the
// directory shape leaves room for future segment files without
// changing the public contract.
type persisted struct {
	AvgDocLen float64                       `json:"avg_doc_len"`
	Docs      map[string]persistedDocument  `json:"docs"`
}

type persistedDocument struct {
	Tokens   []string       `json:"tokens"`
	TermFreq map[string]int `json:"term_freq"`
	Length   int            `json:"length"`
}

const dataFileName = "index.json"

// Save persists the committed index to the directory at dir, creating
// it if necessary.
func (idx *Index) Save(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return mnemoerr.Storage("failed to create full-text index directory", err)
	}

	p := persisted{AvgDocLen: idx.avgDocLen, Docs: make(map[string]persistedDocument, len(idx.docs))}
	for id, d := range idx.docs {
		p.Docs[id] = persistedDocument{Tokens: d.tokens, TermFreq: d.termFreq, Length: d.length}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return mnemoerr.Internal("failed to marshal full-text index", err)
	}
	if err := os.WriteFile(filepath.Join(dir, dataFileName), data, 0o644); err != nil {
		return mnemoerr.Storage("failed to write full-text index", err)
	}
	return nil
}

// Load reads a full-text index directory previously written by Save.
func Load(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, dataFileName))
	if err != nil {
		return nil, mnemoerr.Storage("failed to read full-text index", err)
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, mnemoerr.Internal("failed to unmarshal full-text index", err)
	}

	idx := New()
	idx.avgDocLen = p.AvgDocLen
	for id, d := range p.Docs {
		idx.docs[id] = document{tokens: d.Tokens, termFreq: d.TermFreq, length: d.Length}
		for term := range d.TermFreq {
			idx.docFreq[term]++
		}
	}
	return idx, nil
}
