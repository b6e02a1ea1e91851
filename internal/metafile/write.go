package metafile

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/flarebyte/deltapack/internal/pkgmeta"
)

// Marshal renders a metadata document as canonical YAML: the top-level keys
// keep the JSON document order, nested mapping keys are sorted and the
// operations keep their discovery order. Values are exactly the JSON ones, so
// sizes and offsets stay decimal strings.
func Marshal(m *pkgmeta.Metadata) ([]byte, error) {
	raw, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	top := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range []string{"version", "package", "operations"} {
		top.Content = append(top.Content, scalarNode(key), canonicalNode(doc[key]))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(top); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	out = append(out, '\n')
	return out, nil
}

// Write renders m to w.
func Write(w io.Writer, m *pkgmeta.Metadata) error {
	b, err := Marshal(m)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func scalarFrom(v any) *yaml.Node {
	n := &yaml.Node{}
	_ = n.Encode(v)
	return n
}

func canonicalNode(v any) *yaml.Node {
	switch x := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.MappingNode}
	case map[string]any:
		return canonicalMapNode(x)
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, it := range x {
			n.Content = append(n.Content, canonicalNode(it))
		}
		return n
	case string:
		// quote strings that would otherwise read back as numbers or booleans
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: x}
	default:
		return scalarFrom(x)
	}
}

func canonicalMapNode(m map[string]any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	if len(m) == 0 {
		return n
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Content = append(n.Content, scalarNode(k), canonicalNode(m[k]))
	}
	return n
}
