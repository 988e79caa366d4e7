// Package jsaction implements the delegation marker contract used by the
// event-capture layer.
//
// Interactive elements carry two attributes while their owning view is not yet
// hydrated:
//
//   - "jsaction" lists the event types the delegation system routes for the
//     element, as ordered "type:;" pairs (for example "click:;keydown:;").
//     Existing entries keep their position; new entries append.
//   - "ngb" names the deferred fragment the element belongs to, when any.
//
// The codec tolerates the long form "type:handler;" by truncating each entry
// at the first colon.
package jsaction

import "strings"

const (
	// Attribute is the delegation marker attribute.
	Attribute = "jsaction"

	// FragmentAttribute is the fragment marker attribute.
	FragmentAttribute = "ngb"
)

// Separator terminates each marker entry.
const Separator = ":;"

// ParseMarker returns the event types listed in a delegation marker, in
// order. Malformed or empty entries are skipped.
func ParseMarker(marker string) []string {
	if marker == "" {
		return nil
	}
	parts := strings.Split(marker, ";")
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i := strings.IndexByte(p, ':'); i >= 0 {
			p = p[:i]
		}
		if p != "" {
			types = append(types, p)
		}
	}
	return types
}

// FormatMarker serializes event types into marker form. Duplicates are
// dropped, keeping the first occurrence.
func FormatMarker(types []string) string {
	if len(types) == 0 {
		return ""
	}
	var sb strings.Builder
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		sb.WriteString(t)
		sb.WriteString(Separator)
	}
	return sb.String()
}

// AppendMarker merges event types into an existing marker, deduplicating
// against entries already present. Existing entries keep their positions; new
// entries append in the order given. Reports whether the marker changed.
func AppendMarker(existing string, types []string) (string, bool) {
	current := ParseMarker(existing)
	seen := make(map[string]struct{}, len(current)+len(types))
	for _, t := range current {
		seen[t] = struct{}{}
	}

	merged := current
	changed := false
	for _, t := range types {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
		changed = true
	}
	if !changed {
		return existing, false
	}
	return FormatMarker(merged), true
}
