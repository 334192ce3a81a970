package core

import (
	"fmt"
	"slices"
)

// Content maps a layout field name to either a string or a list of strings.
// Values decoded from JSON arrive as []any; both shapes are accepted.
type Content map[string]any

// Clone returns a deep copy of c. Lists are copied into fresh slices.
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	out := make(Content, len(c))
	for k, v := range c {
		switch val := v.(type) {
		case []string:
			out[k] = append([]string(nil), val...)
		case []any:
			out[k] = append([]any(nil), val...)
		default:
			out[k] = v
		}
	}
	return out
}

// Text returns the field as a string. Missing or non-text values yield "".
func (c Content) Text(field string) string {
	switch val := c[field].(type) {
	case string:
		return val
	case nil:
		return ""
	case []string, []any:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// List returns the field as a list of strings. A plain string becomes a
// one-element list; missing values yield nil.
func (c Content) List(field string) []string {
	switch val := c[field].(type) {
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}

// Has reports whether the field is present with a non-empty value.
func (c Content) Has(field string) bool {
	switch val := c[field].(type) {
	case nil:
		return false
	case string:
		return val != ""
	case []string:
		return len(val) > 0
	case []any:
		return len(val) > 0
	default:
		return true
	}
}

// ChangedFields lists the fields whose values differ between c and other.
func (c Content) ChangedFields(other Content) []string {
	var changed []string
	for k, v := range other {
		if !sameValue(c[k], v) {
			changed = append(changed, k)
		}
	}
	for k := range c {
		if _, ok := other[k]; !ok {
			changed = append(changed, k)
		}
	}
	return changed
}

func sameValue(a, b any) bool {
	as, aText := a.(string)
	bs, bText := b.(string)
	if aText || bText {
		return aText && bText && as == bs
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	_, aList := a.([]string)
	_, aAny := a.([]any)
	if !aList && !aAny {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	return slices.Equal(Content{"v": a}.List("v"), Content{"v": b}.List("v"))
}
