// Package rope implements an immutable rope for UTF-8 text, organized
// as a B+ tree of bounded chunks with cached summaries.
//
// Every node caches a Summary holding the aggregate of each registered
// metric (bytes, runes, UTF-16 code units, newlines, grapheme
// clusters), so whole-document measures read in O(1) and positional
// conversions between metrics run in O(log n). Edits build new trees
// that share all untouched subtrees with their source, which makes a
// revision a cheap value: snapshot holders keep reading old trees
// while edits produce new ones, with no locking.
//
// Cursor answers boundary queries (is this position a line start, a
// cluster boundary) against any metric, distinguishing trailing from
// leading boundaries for metrics whose units have extent.
package rope
