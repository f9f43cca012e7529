package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// NotAvailable marks a record field the scraper could not resolve.
const NotAvailable = "N/A"

// QuestionSet is the ordered output of the question generation stage.
type QuestionSet []string

// QuerySet is the ordered output of the query generation stage.
type QuerySet []string

// RecordSet is the ordered output of the record scraping stage.
type RecordSet []Record

// Record is a single scraped systematic review.
type Record struct {
	Title          string `json:"title"`
	Authors        string `json:"authors"`
	ArticleURL     string `json:"article_url"`
	Pico           Pico   `json:"pico"`
	PicoURL        string `json:"pico_url"`
	CompleteReview string `json:"complete_review"`
}

// Excerpt returns at most n runes of the complete review.
func (r Record) Excerpt(n int) string {
	runes := []rune(r.CompleteReview)
	if n < 0 || len(runes) <= n {
		return r.CompleteReview
	}
	return string(runes[:n])
}

// HasPicoURL reports whether the record points at a PICO page.
func (r Record) HasPicoURL() bool {
	return r.PicoURL != "" && r.PicoURL != NotAvailable
}

// PicoField is one named PICO sub-field.
type PicoField struct {
	Name  string
	Value string
}

// PICO field names in their canonical order.
const (
	PicoPopulation   = "population"
	PicoIntervention = "intervention"
	PicoComparison   = "comparison"
	PicoOutcome      = "outcome"
)

// Pico holds either a flat text value or a set of named sub-fields.
// On the wire it is a JSON string or a JSON object of strings.
type Pico struct {
	Text   string
	Fields []PicoField

	structured bool
}

// PicoText builds a flat Pico value.
func PicoText(text string) Pico {
	return Pico{Text: text}
}

// PicoMap builds a structured Pico value from its fields.
func PicoMap(fields ...PicoField) Pico {
	return Pico{Fields: fields, structured: true}
}

// IsStructured reports whether the value is a map of sub-fields, possibly empty.
func (p Pico) IsStructured() bool {
	return p.structured || len(p.Fields) > 0
}

// Get returns the named sub-field.
func (p Pico) Get(name string) (string, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// String renders structured values joined by ", " in field order.
func (p Pico) String() string {
	if !p.IsStructured() {
		return p.Text
	}
	values := make([]string, 0, len(p.Fields))
	for _, f := range p.Fields {
		values = append(values, f.Value)
	}
	return strings.Join(values, ", ")
}

// MarshalJSON emits a string or an object, preserving field order.
func (p Pico) MarshalJSON() ([]byte, error) {
	if !p.IsStructured() {
		return json.Marshal(p.Text)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts either a string or an object of strings.
func (p *Pico) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = Pico{}
		return nil
	}

	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("pico text: %w", err)
		}
		*p = Pico{Text: text}
		return nil
	case '{':
		fields, err := decodeOrderedFields(data)
		if err != nil {
			return fmt.Errorf("pico fields: %w", err)
		}
		*p = PicoMap(fields...)
		return nil
	default:
		return fmt.Errorf("pico: unsupported json value %q", string(data))
	}
}

func decodeOrderedFields(data []byte) ([]PicoField, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var fields []PicoField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		fields = append(fields, PicoField{Name: name, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}
