package detectors

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseNames parses the "names" metadata entry exported with ultralytics
// models, a Python dict literal such as "{0: 'rust', 1: 'healthy'}", into a
// label table ordered by class index.
func ParseNames(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, errors.Errorf("names metadata is not a dict: %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, errors.New("names metadata is empty")
	}

	byIndex := make(map[int]string)
	for len(body) > 0 {
		colon := strings.IndexByte(body, ':')
		if colon < 0 {
			return nil, errors.Errorf("missing ':' in names metadata near %q", body)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(body[:colon]))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid class index in names metadata")
		}

		rest := strings.TrimSpace(body[colon+1:])
		if rest == "" || (rest[0] != '\'' && rest[0] != '"') {
			return nil, errors.Errorf("class %d has no quoted name", idx)
		}
		quote := rest[0]
		end := strings.IndexByte(rest[1:], quote)
		if end < 0 {
			return nil, errors.Errorf("unterminated name for class %d", idx)
		}
		if _, dup := byIndex[idx]; dup {
			return nil, errors.Errorf("duplicate class index %d", idx)
		}
		byIndex[idx] = rest[1 : end+1]

		body = strings.TrimSpace(rest[end+2:])
		body = strings.TrimSpace(strings.TrimPrefix(body, ","))
	}

	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	labels := make([]string, len(indices))
	for i, idx := range indices {
		if idx != i {
			return nil, errors.Errorf("class indices are not contiguous: missing %d", i)
		}
		labels[i] = byIndex[idx]
	}
	return labels, nil
}
