package view

import "sync"

// SelectionStyle is the reserved style id for selection highlighting.
// It exists in every registry and cannot be replaced by clients.
const SelectionStyle = 0

// Style is a registered text style. Color fields are ARGB; nil means
// inherit.
type Style struct {
	ID      int     `json:"id"`
	FgColor *uint32 `json:"fg_color,omitempty"`
	BgColor *uint32 `json:"bg_color,omitempty"`
	Weight  *int    `json:"weight,omitempty"`
	Italic  *bool   `json:"italic,omitempty"`
}

// StyleRegistry tracks which style ids have been registered. A line
// may only reference ids registered beforehand; anything else is a
// protocol violation caught at encode time.
type StyleRegistry struct {
	mu     sync.RWMutex
	styles map[int]Style
}

// NewStyleRegistry creates a registry with the selection style seeded.
func NewStyleRegistry() *StyleRegistry {
	return &StyleRegistry{
		styles: map[int]Style{SelectionStyle: {ID: SelectionStyle}},
	}
}

// Register adds or replaces a style definition. The selection id and
// negative ids are rejected.
func (r *StyleRegistry) Register(s Style) error {
	if s.ID == SelectionStyle {
		return Protocolf("style id %d is reserved for selection", SelectionStyle)
	}
	if s.ID < 0 {
		return Protocolf("style id %d is negative", s.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.styles[s.ID] = s
	return nil
}

// Defined reports whether id has been registered.
func (r *StyleRegistry) Defined(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.styles[id]
	return ok
}

// Lookup returns the definition for id.
func (r *StyleRegistry) Lookup(id int) (Style, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.styles[id]
	return s, ok
}

// Validate checks every style id referenced by the spans.
func (r *StyleRegistry) Validate(spans []StyleSpan) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range spans {
		if _, ok := r.styles[s.ID]; !ok {
			return Protocolf("style id %d was never registered", s.ID)
		}
	}
	return nil
}
