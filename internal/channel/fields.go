package channel

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nao1215/jobharvest/internal/normalize"
)

// FieldPaths are dotted JSON paths tried in order. The first path that
// leads to a non-empty scalar wins.
type FieldPaths []string

// String returns the first non-empty scalar found under the paths.
func (p FieldPaths) String(doc map[string]any) string {
	for _, path := range p {
		v, ok := lookupPath(doc, path)
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok && s != "" {
			return s
		}
	}
	return ""
}

// Array returns the first array of objects found under the paths.
func (p FieldPaths) Array(doc map[string]any) ([]map[string]any, bool) {
	for _, path := range p {
		v, ok := lookupPath(doc, path)
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, true
	}
	return nil, false
}

// Int returns the first integer found under the paths.
func (p FieldPaths) Int(doc map[string]any) (int, bool) {
	for _, path := range p {
		v, ok := lookupPath(doc, path)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), true
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i), true
			}
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}

func lookupPath(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok || v == nil {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) || node[i] == nil {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return normalize.CollapseSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "oui", true
		}
		return "non", true
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := scalarString(e); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), len(parts) > 0
	}
	return "", false
}
