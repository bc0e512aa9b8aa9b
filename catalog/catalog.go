package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/search"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

// DefaultNamespace is the namespace tools are indexed under when
// Options.Namespace is empty.
const DefaultNamespace = "toolscript"

// DefaultSearchLimit caps search results when the caller passes a
// non-positive limit.
const DefaultSearchLimit = 20

// Kinds of tool implementations.
const (
	KindFunction = "function"
	KindShell    = "shell"
)

// Errors returned by the catalog.
var (
	ErrNameRequired = errors.New("catalog: tool name is required")
	ErrNotFound     = errors.New("catalog: tool not found")
)

// Entry is the metadata kept for one registered tool.
type Entry struct {
	// Name is the tool name scripts call.
	Name string

	// Description is a one-line description.
	Description string

	// Summary is a longer summary for documentation. Defaults to Description.
	Summary string

	// Notes holds usage notes.
	Notes string

	// Tags are search keywords. They are normalized on Add.
	Tags []string

	// Kind is KindFunction or KindShell. Defaults to KindFunction.
	Kind string

	// InputSchema is the JSON schema of the tool input. Defaults to an
	// object schema.
	InputSchema any
}

// Description is the documentation of one tool.
type Description struct {
	Entry

	// ID is the namespaced tool ID.
	ID string

	// Title is a display name derived from Name.
	Title string
}

// Options configures a Catalog.
type Options struct {
	// Namespace groups the catalog's tools in the index.
	// Default: DefaultNamespace
	Namespace string
}

// Catalog is a searchable set of tool metadata.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: unknown names yield ErrNotFound.
// - Ownership: returned entries are copies.
type Catalog struct {
	mu        sync.RWMutex
	namespace string
	entries   map[string]Entry
	idx       index.Index
	docs      *tooldoc.InMemoryStore

	// stale is set when an entry was removed or replaced. The index only
	// supports adding tools, so it is rebuilt before the next read.
	stale bool
}

// New creates an empty Catalog.
func New(opts Options) *Catalog {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	c := &Catalog{
		namespace: opts.Namespace,
		entries:   make(map[string]Entry),
	}
	c.idx, c.docs = newIndex()
	return c
}

func newIndex() (index.Index, *tooldoc.InMemoryStore) {
	idx := index.NewInMemoryIndex(index.IndexOptions{
		Searcher: search.NewBM25Searcher(search.BM25Config{}),
	})
	docs := tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: idx})
	return idx, docs
}

// Namespace returns the catalog's index namespace.
func (c *Catalog) Namespace() string { return c.namespace }

// ID returns the namespaced index ID for name.
func (c *Catalog) ID(name string) string { return c.namespace + ":" + name }

// Add inserts or replaces an entry.
func (c *Catalog) Add(e Entry) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return ErrNameRequired
	}
	e = normalize(e)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[e.Name]; exists {
		c.entries[e.Name] = e
		c.stale = true
		return nil
	}
	if !c.stale {
		if err := c.indexEntry(c.idx, c.docs, e); err != nil {
			return err
		}
	}
	c.entries[e.Name] = e
	return nil
}

// Remove deletes an entry and reports whether it existed.
func (c *Catalog) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; !ok {
		return false
	}
	delete(c.entries, name)
	c.stale = true
	return true
}

// Get returns the entry for name.
func (c *Catalog) Get(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// List returns all entries sorted by name.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Search returns entries matching query in rank order. An empty query
// lists entries by name.
func (c *Catalog) Search(query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if strings.TrimSpace(query) == "" {
		all := c.List()
		if len(all) > limit {
			all = all[:limit]
		}
		return all, nil
	}

	idx, _, err := c.current()
	if err != nil {
		return nil, err
	}
	hits, err := idx.Search(query, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(hits))
	for _, h := range hits {
		if h.Namespace != c.namespace {
			continue
		}
		if e, ok := c.entries[h.Name]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Describe returns the documentation for name.
func (c *Catalog) Describe(name string) (Description, error) {
	e, ok := c.Get(name)
	if !ok {
		return Description{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	_, docs, err := c.current()
	if err != nil {
		return Description{}, err
	}
	id := c.ID(name)
	doc, err := docs.DescribeTool(id, tooldoc.DetailFull)
	if err != nil {
		return Description{}, fmt.Errorf("catalog: describe %s: %w", id, err)
	}

	d := Description{Entry: e, ID: id, Title: Title(name)}
	if doc.Summary != "" {
		d.Summary = doc.Summary
	}
	if doc.Notes != "" {
		d.Notes = doc.Notes
	}
	if doc.Tool != nil && doc.Tool.Description != "" {
		d.Description = doc.Tool.Description
	}
	return d, nil
}

// current returns an up-to-date index, rebuilding it if entries were
// removed or replaced since it was built.
func (c *Catalog) current() (index.Index, *tooldoc.InMemoryStore, error) {
	c.mu.RLock()
	if !c.stale {
		idx, docs := c.idx, c.docs
		c.mu.RUnlock()
		return idx, docs, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stale {
		return c.idx, c.docs, nil
	}
	idx, docs := newIndex()
	for _, e := range c.entries {
		if err := c.indexEntry(idx, docs, e); err != nil {
			return nil, nil, err
		}
	}
	c.idx, c.docs, c.stale = idx, docs, false
	return idx, docs, nil
}

func (c *Catalog) indexEntry(idx index.Index, docs *tooldoc.InMemoryStore, e Entry) error {
	tool := model.Tool{
		Tool: mcp.Tool{
			Name:        e.Name,
			Title:       Title(e.Name),
			Description: e.Description,
			InputSchema: e.InputSchema,
		},
		Namespace: c.namespace,
		Tags:      e.Tags,
	}
	if err := idx.RegisterTool(tool, model.NewLocalBackend(e.Name)); err != nil {
		return fmt.Errorf("catalog: index %s: %w", e.Name, err)
	}
	if err := docs.RegisterDoc(c.ID(e.Name), tooldoc.DocEntry{Summary: e.Summary, Notes: e.Notes}); err != nil {
		return fmt.Errorf("catalog: document %s: %w", e.Name, err)
	}
	return nil
}

func normalize(e Entry) Entry {
	if e.Kind == "" {
		e.Kind = KindFunction
	}
	if e.Summary == "" {
		e.Summary = e.Description
	}
	if e.InputSchema == nil {
		e.InputSchema = map[string]any{"type": "object"}
	}
	e.Tags = model.NormalizeTags(append([]string{e.Kind}, e.Tags...))
	return e
}

// Title turns a tool name such as "get_weather" into "Get Weather".
func Title(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	return cases.Title(language.English).String(strings.Join(words, " "))
}
