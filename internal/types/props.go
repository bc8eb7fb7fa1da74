package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Properties is an insertion-ordered string-to-string map. Task and comment
// records must round-trip arbitrary property keys without reordering them,
// which rules out a plain map; the JSON codec below preserves the order keys
// first appeared in.
type Properties struct {
	keys []string
	vals map[string]string
}

// Get returns the value for key.
func (p Properties) Get(key string) (string, bool) {
	v, ok := p.vals[key]
	return v, ok
}

// GetDefault returns the value for key, or def when absent.
func (p Properties) GetDefault(key, def string) string {
	if v, ok := p.vals[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (p Properties) Has(key string) bool {
	_, ok := p.vals[key]
	return ok
}

// Set stores key=value. A new key is appended at the end; an existing key
// keeps its position and gets the new value.
func (p *Properties) Set(key, value string) {
	if p.vals == nil {
		p.vals = make(map[string]string)
	}
	if _, ok := p.vals[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = value
}

// Delete removes key. It reports whether the key was present.
func (p *Properties) Delete(key string) bool {
	if _, ok := p.vals[key]; !ok {
		return false
	}
	delete(p.vals, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of properties.
func (p Properties) Len() int { return len(p.keys) }

// Keys returns the property names in insertion order.
func (p Properties) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Clone returns an independent copy.
func (p Properties) Clone() Properties {
	out := Properties{}
	if p.keys != nil {
		out.keys = make([]string, len(p.keys))
		copy(out.keys, p.keys)
	}
	if p.vals != nil {
		out.vals = make(map[string]string, len(p.vals))
		for k, v := range p.vals {
			out.vals[k] = v
		}
	}
	return out
}

// MarshalJSON encodes the properties as a JSON object with keys in
// insertion order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, recording key order as it streams.
// Values must be strings; anything else is a malformed record.
func (p *Properties) UnmarshalJSON(data []byte) error {
	*p = Properties{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("properties: non-string key %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		val, ok := valTok.(string)
		if !ok {
			return fmt.Errorf("properties: value for %q must be a string, got %v", key, valTok)
		}
		p.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
