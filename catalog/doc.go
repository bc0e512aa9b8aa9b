// Package catalog keeps searchable metadata for registered tools.
//
// Each [Entry] is indexed as a namespaced model.Tool in a tooldiscovery
// in-memory index with BM25 search, and documented in a tooldoc store.
// Tool IDs have the form "<namespace>:<name>".
//
// # Removal
//
// The index can only add tools, so removing or replacing an entry marks
// the index stale. It is rebuilt from the remaining entries on the next
// Search or Describe.
//
// # Usage
//
//	c := catalog.New(catalog.Options{})
//	_ = c.Add(catalog.Entry{Name: "get_weather", Description: "Weather forecast"})
//	hits, _ := c.Search("weather", 5)
//	doc, _ := c.Describe("get_weather") // doc.Title == "Get Weather"
package catalog
