package core

import "strings"

// TagSet is an insertion-ordered set of non-empty tags.
type TagSet struct {
	items []string
}

// NewTagSet builds a set from values, dropping blanks and duplicates.
func NewTagSet(values ...string) TagSet {
	var ts TagSet
	ts.Add(values...)
	return ts
}

// Add appends each non-empty value not already present.
func (ts *TagSet) Add(values ...string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || ts.Has(v) {
			continue
		}
		ts.items = append(ts.items, v)
	}
}

// Remove drops every listed value; unknown values are ignored.
func (ts *TagSet) Remove(values ...string) {
	if len(values) == 0 || len(ts.items) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(values))
	for _, v := range values {
		drop[strings.TrimSpace(v)] = struct{}{}
	}
	kept := ts.items[:0]
	for _, v := range ts.items {
		if _, ok := drop[v]; !ok {
			kept = append(kept, v)
		}
	}
	ts.items = kept
}

// Has reports membership.
func (ts TagSet) Has(v string) bool {
	for _, item := range ts.items {
		if item == v {
			return true
		}
	}
	return false
}

// HasAny reports whether at least one of values is a member.
func (ts TagSet) HasAny(values ...string) bool {
	for _, v := range values {
		if ts.Has(strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

// Len returns the number of tags.
func (ts TagSet) Len() int {
	return len(ts.items)
}

// Values returns a copy of the tags in insertion order.
func (ts TagSet) Values() []string {
	return append([]string(nil), ts.items...)
}

// SplitTags parses a comma-separated tag list as typed into a form.
func SplitTags(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
