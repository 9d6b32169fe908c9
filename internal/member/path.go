package member

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a member path: a .name access or an [arg,...] indexer.
type Segment struct {
	Name string
	Args []interface{}
}

// IsIndexer reports whether the segment is an indexer.
func (s Segment) IsIndexer() bool {
	return s.Args != nil
}

func (s Segment) String() string {
	if !s.IsIndexer() {
		return s.Name
	}
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		parts[i] = fmt.Sprint(a)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParsePath splits a member path such as Orders[0].Lines["sku"].Qty into segments.
// Indexer arguments are integers when they parse as such, otherwise strings
// with optional single or double quotes removed.
func ParsePath(path string) ([]Segment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errEmptyPath
	}

	var segments []Segment
	var name strings.Builder
	flush := func() {
		if name.Len() > 0 {
			segments = append(segments, Segment{Name: name.String()})
			name.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		switch ch := path[i]; ch {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w in %q", errUnterminatedPath, path)
			}
			segments = append(segments, Segment{Args: parseArgs(path[i+1 : i+end])})
			i += end
		default:
			name.WriteByte(ch)
		}
	}
	flush()

	if len(segments) == 0 {
		return nil, errEmptyPath
	}
	return segments, nil
}

func parseArgs(s string) []interface{} {
	raw := strings.Split(s, ",")
	args := make([]interface{}, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if n, err := strconv.Atoi(r); err == nil {
			args = append(args, n)
			continue
		}
		if len(r) >= 2 && (r[0] == '\'' || r[0] == '"') && r[len(r)-1] == r[0] {
			r = r[1 : len(r)-1]
		}
		args = append(args, r)
	}
	return args
}
