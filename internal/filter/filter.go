// Package filter holds the operator's live list filter.
//
// The filter is re-encoded on every list-affecting request, so a request
// always carries the filter as it is when the request is built, never as it
// was when the triggering event arrived.
package filter

import (
	"net/url"
	"strings"
	"sync"
)

// Source supplies the serialized filter context.
type Source interface {
	Encode() string
}

// Values is a plain snapshot of the filter form.
type Values struct {
	Game        string `toml:"game"`
	Query       string `toml:"q"`
	ShowPicked  bool   `toml:"show_picked"`
	ShowMissing bool   `toml:"show_missing"`
	ShowAll     bool   `toml:"show_all"`
}

// Form is the mutable filter form shared by the UI and the sync core.
type Form struct {
	mu     sync.RWMutex
	values Values
}

// NewForm creates a form with the given initial values.
func NewForm(v Values) *Form {
	return &Form{values: v}
}

// Values returns a copy of the current form values.
func (f *Form) Values() Values {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values
}

// Set replaces every field of the form.
func (f *Form) Set(v Values) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = v
}

// Update applies fn to the current values under the form lock.
func (f *Form) Update(fn func(*Values)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.values)
}

// Encode serializes the form the way a browser serializes the filter form:
// unchecked boxes are omitted, text fields are always present.
func (f *Form) Encode() string {
	return f.Values().Encode()
}

// Encode serializes v as a query string.
func (v Values) Encode() string {
	q := url.Values{}
	q.Set("game", strings.TrimSpace(v.Game))
	q.Set("q", strings.TrimSpace(v.Query))
	if v.ShowPicked {
		q.Set("show_picked", "1")
	}
	if v.ShowMissing {
		q.Set("show_missing", "1")
	}
	if v.ShowAll {
		q.Set("show_all", "1")
	}
	return q.Encode()
}

// WithQuery appends the filter context to a path or URL.
func WithQuery(target string, src Source) string {
	if src == nil {
		return target
	}
	params := src.Encode()
	if params == "" {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + params
}
