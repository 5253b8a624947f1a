package graph

import (
	"slices"
	"strconv"

	"github.com/goccy/go-json"
)

// Property keys understood by the client. Anything else is kept in Extra.
const (
	PropCode        = "code"
	PropTitle       = "title"
	PropAuthor      = "author"
	PropPublished   = "published"
	PropISBN        = "isbn"
	PropSubjects    = "subjects"
	PropDescription = "description"
	PropCover       = "cover"
)

// Properties is the structured form of a node's property bag. Known keys are
// lifted into typed fields; unknown keys, and known keys whose value has an
// unexpected type (including null), are kept verbatim in Extra. Known keys
// that were present on the wire are re-emitted exactly as received unless
// their field was changed, so a round trip through the client does not lose
// data.
type Properties struct {
	Code        string
	Title       string
	Author      string
	Published   string
	ISBN        string
	Subjects    []string
	Description string
	Cover       string

	Extra map[string]any

	// wire holds the received value of each known key that was lifted into
	// a field.
	wire map[string]any
}

var stringKeys = []string{PropCode, PropTitle, PropAuthor, PropPublished, PropISBN, PropDescription, PropCover}

// Clone returns a deep copy.
func (p Properties) Clone() Properties {
	out := p
	if p.Subjects != nil {
		out.Subjects = append([]string(nil), p.Subjects...)
	}
	if p.Extra != nil {
		out.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	if p.wire != nil {
		out.wire = make(map[string]any, len(p.wire))
		for k, v := range p.wire {
			out.wire[k] = v
		}
	}
	return out
}

// WithDescription returns a copy with description replaced and every other
// property preserved.
func (p Properties) WithDescription(description string) Properties {
	out := p.Clone()
	out.Description = description
	if out.Extra != nil {
		delete(out.Extra, PropDescription)
	}
	return out
}

// Map flattens the properties back into the wire representation.
func (p Properties) Map() map[string]any {
	m := make(map[string]any, len(p.Extra)+8)
	for k, v := range p.Extra {
		m[k] = v
	}
	for _, key := range stringKeys {
		value := *p.field(key)
		raw, received := p.wire[key]
		switch {
		case received:
			if prev, ok := stringValue(raw); ok && prev == value {
				m[key] = raw
			} else {
				m[key] = value
			}
		case value != "":
			m[key] = value
		}
	}

	raw, received := p.wire[PropSubjects]
	switch {
	case received:
		if prev, ok := toStrings(raw); ok && slices.Equal(prev, p.Subjects) {
			if list, isList := raw.([]string); isList {
				raw = append([]string(nil), list...)
			}
			m[PropSubjects] = raw
		} else {
			m[PropSubjects] = append([]string{}, p.Subjects...)
		}
	case p.Subjects != nil:
		m[PropSubjects] = append([]string(nil), p.Subjects...)
	}
	return m
}

// PropertiesFromMap builds structured properties from a loosely typed map.
func PropertiesFromMap(m map[string]any) Properties {
	var p Properties
	for k, v := range m {
		if !p.assign(k, v) {
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[k] = v
		}
	}
	return p
}

func (p *Properties) field(key string) *string {
	switch key {
	case PropCode:
		return &p.Code
	case PropTitle:
		return &p.Title
	case PropAuthor:
		return &p.Author
	case PropPublished:
		return &p.Published
	case PropISBN:
		return &p.ISBN
	case PropDescription:
		return &p.Description
	case PropCover:
		return &p.Cover
	}
	return nil
}

func (p *Properties) assign(key string, value any) bool {
	if key == PropSubjects {
		subjects, ok := toStrings(value)
		if !ok {
			return false
		}
		p.Subjects = subjects
		if list, isList := value.([]string); isList {
			value = append([]string(nil), list...)
		}
		p.remember(key, value)
		return true
	}

	target := p.field(key)
	if target == nil {
		return false
	}
	s, ok := stringValue(value)
	if !ok {
		return false
	}
	*target = s
	p.remember(key, value)
	return true
}

func (p *Properties) remember(key string, value any) {
	if p.wire == nil {
		p.wire = make(map[string]any)
	}
	p.wire[key] = value
}

func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		// Publication years occasionally arrive as bare numbers.
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

func toStrings(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string{}, v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		if v == "" {
			return []string{}, true
		}
		return []string{v}, true
	}
	return nil, false
}

// MarshalJSON encodes the flat wire map.
func (p Properties) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}

// UnmarshalJSON decodes a flat wire map. null decodes to empty properties.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*p = PropertiesFromMap(m)
	return nil
}
