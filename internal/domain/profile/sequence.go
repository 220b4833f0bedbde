package profile

import "strings"

// ToSequence normalizes a list-valued field read from storage.
//
//   - []string is returned as is.
//   - []any keeps its string elements in order.
//   - A string of the form "{a,b,c}" is split on "," with empty segments dropped.
//   - Anything else yields an empty sequence.
//
// Every store applies it on read before a merge appends to the list.
func ToSequence(value any) []string {
	switch v := value.(type) {
	case []string:
		if v == nil {
			return []string{}
		}
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if len(v) < 2 || !strings.HasPrefix(v, "{") || !strings.HasSuffix(v, "}") {
			return []string{}
		}
		out := []string{}
		for _, seg := range strings.Split(v[1:len(v)-1], ",") {
			if seg != "" {
				out = append(out, seg)
			}
		}
		return out
	default:
		return []string{}
	}
}

// FormatBraceArray renders items in the "{a,b,c}" form ToSequence accepts.
func FormatBraceArray(items []string) string {
	return "{" + strings.Join(items, ",") + "}"
}
