package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// optionalVenueKeys are the omitempty keys of Venue. Save drops them from
// an entry when the typed value was cleared.
var optionalVenueKeys = []string{"logo", "ical", "sourceIcal"}

var errNotMapping = errors.New("registry must map venue ids to entries")

func decodeVenuesYAML(data []byte) (map[string]Venue, *yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, newMapping(), nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil, errNotMapping
	}
	entries := make(map[string]Venue)
	if err := root.Decode(&entries); err != nil {
		return nil, nil, err
	}
	return entries, root, nil
}

func decodeVenuesJSON(data []byte) (map[string]Venue, *yaml.Node, error) {
	entries := make(map[string]Venue)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := decodeJSONNode(dec)
	if err != nil {
		return nil, nil, err
	}
	if root.Kind != yaml.MappingNode {
		return nil, nil, errNotMapping
	}
	return entries, root, nil
}

// decodeJSONNode reads one JSON value into a node tree, keeping object
// key order.
func decodeJSONNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if t == '{' {
			n = newMapping()
		}
		for dec.More() {
			if n.Kind == yaml.MappingNode {
				key, err := dec.Token()
				if err != nil {
					return nil, err
				}
				name, _ := key.(string)
				n.Content = append(n.Content, stringNode(name))
			}
			child, err := decodeJSONNode(dec)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return n, nil
	case string:
		return stringNode(t), nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(t.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: t.String()}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(t)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

// encodeJSONNode renders n as two-space indented JSON with a trailing
// newline.
func encodeJSONNode(n *yaml.Node) ([]byte, error) {
	var compact bytes.Buffer
	if err := writeJSONNode(&compact, n); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeJSONNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSONNode(buf, n.Content[0])
	case yaml.AliasNode:
		return writeJSONNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, n.Content[i].Value); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSONNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, child := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONNode(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}

	if n.ShortTag() == "!!str" {
		return writeJSONString(buf, n.Value)
	}
	if json.Valid([]byte(n.Value)) {
		buf.WriteString(n.Value)
		return nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// syncRaw merges Entries into the raw document. Existing entries keep
// their position and unknown keys, new ones are appended in id order and
// entries missing from Entries are removed.
func (v *Venues) syncRaw() error {
	if v.raw == nil {
		v.raw = newMapping()
	}
	content := make([]*yaml.Node, 0, len(v.raw.Content))
	seen := make(map[string]bool, len(v.Entries))
	for i := 0; i+1 < len(v.raw.Content); i += 2 {
		key, val := v.raw.Content[i], v.raw.Content[i+1]
		venue, ok := v.Entries[key.Value]
		if !ok || seen[key.Value] {
			continue
		}
		seen[key.Value] = true

		fresh, err := encodeVenue(venue)
		if err != nil {
			return err
		}
		if val.Kind == yaml.MappingNode {
			mergeMapping(val, fresh, optionalVenueKeys)
		} else {
			val = fresh
		}
		content = append(content, key, val)
	}
	for _, id := range v.IDs() {
		if seen[id] {
			continue
		}
		fresh, err := encodeVenue(v.Entries[id])
		if err != nil {
			return err
		}
		content = append(content, stringNode(id), fresh)
	}
	v.raw.Content = content
	return nil
}

func encodeVenue(venue Venue) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(venue); err != nil {
		return nil, err
	}
	return &n, nil
}

// mergeMapping writes the values of src into dst. Unchanged values keep
// their node, keys only dst has are left alone unless listed in removable.
func mergeMapping(dst, src *yaml.Node, removable []string) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, val := src.Content[i], src.Content[i+1]
		j := mappingIndex(dst, key.Value)
		switch {
		case j < 0:
			if !isZeroNode(val) {
				dst.Content = append(dst.Content, key, val)
			}
		case dst.Content[j+1].Kind == yaml.MappingNode && val.Kind == yaml.MappingNode:
			mergeMapping(dst.Content[j+1], val, nil)
		case !sameValue(dst.Content[j+1], val):
			dst.Content[j+1] = val
		}
	}
	for _, key := range removable {
		if mappingIndex(src, key) >= 0 {
			continue
		}
		if j := mappingIndex(dst, key); j >= 0 {
			dst.Content = slices.Delete(dst.Content, j, j+2)
		}
	}
}

func mappingIndex(n *yaml.Node, key string) int {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func sameValue(a, b *yaml.Node) bool {
	if isZeroNode(a) && isZeroNode(b) {
		return true
	}
	return a.Kind == yaml.ScalarNode && b.Kind == yaml.ScalarNode &&
		a.Value == b.Value && a.ShortTag() == b.ShortTag()
}

// isZeroNode reports whether n decodes to the zero value of a Venue field.
func isZeroNode(n *yaml.Node) bool {
	switch n.Kind {
	case yaml.ScalarNode:
		tag := n.ShortTag()
		return tag == "!!null" || (tag == "!!str" && n.Value == "")
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			if !isZeroNode(n.Content[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
