package yamlschema

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemacheck/internal/schema"
)

// Decode reads a YAML document into plain maps, slices and scalars. Mapping
// keys keep their literal text, so a column attribute written as `null: false`
// arrives under the key "null".
func Decode(data []byte) (map[string]any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &schema.ParseError{Source: schema.SourceYAML, Line: yamlErrorLine(err), Msg: err.Error()}
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, &schema.ParseError{Source: schema.SourceYAML, Msg: "empty document"}
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, &schema.ParseError{Source: schema.SourceYAML, Line: doc.Line, Msg: "top level must be a mapping"}
	}
	v, err := nodeValue(doc)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, &schema.ParseError{Source: schema.SourceYAML, Line: key.Line, Msg: "mapping keys must be scalars"}
			}
			if key.Value == "<<" {
				merged, err := nodeValue(n.Content[i+1])
				if err != nil {
					return nil, err
				}
				if mm, ok := merged.(map[string]any); ok {
					for k, v := range mm {
						if _, exists := m[k]; !exists {
							m[k] = v
						}
					}
				}
				continue
			}
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[key.Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, &schema.ParseError{Source: schema.SourceYAML, Line: n.Line, Msg: err.Error()}
		}
		return v, nil
	}
	return nil, nil
}

// yamlErrorLine pulls "line N" out of a yaml.v3 error message.
func yamlErrorLine(err error) int {
	msg := err.Error()
	i := strings.Index(msg, "line ")
	if i < 0 {
		return 0
	}
	rest := msg[i+len("line "):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(rest[:end])
	return n
}

// Field access helpers. Documents come from Decode or from callers that built
// them by hand, so every accessor tolerates the common scalar shapes.

func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringField(m map[string]any, keys ...string) string {
	v, ok := lookup(m, keys...)
	if !ok {
		return ""
	}
	return scalarString(v)
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// boolField returns the value of the first present key and whether one was found.
func boolField(m map[string]any, keys ...string) (bool, bool, error) {
	v, ok := lookup(m, keys...)
	if !ok {
		return false, false, nil
	}
	switch x := v.(type) {
	case bool:
		return x, true, nil
	case int:
		return x != 0, true, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(x)) {
		case "TRUE", "YES", "Y", "1", "○", "◯":
			return true, true, nil
		case "FALSE", "NO", "N", "0", "×", "-", "":
			return false, true, nil
		}
		return false, true, fmt.Errorf("not a boolean: %q", x)
	}
	return false, true, fmt.Errorf("not a boolean: %v", v)
}

func intField(m map[string]any, keys ...string) (*int, error) {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil, nil
	}
	switch x := v.(type) {
	case int:
		return &x, nil
	case float64:
		n := int(x)
		return &n, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", x)
		}
		return &n, nil
	}
	return nil, fmt.Errorf("not an integer: %v", v)
}

// stringList accepts a YAML list or a comma-separated string.
func stringList(m map[string]any, keys ...string) []string {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), x...)
	case string:
		var out []string
		for _, part := range strings.Split(x, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{scalarString(v)}
}

func mapList(m map[string]any, keys ...string) ([]map[string]any, bool, error) {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil, false, nil
	}
	items, isList := v.([]any)
	if !isList {
		return nil, true, fmt.Errorf("expected a list")
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		mm, isMap := item.(map[string]any)
		if !isMap {
			return nil, true, fmt.Errorf("item %d is not a mapping", i+1)
		}
		out = append(out, mm)
	}
	return out, true, nil
}
