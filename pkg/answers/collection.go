// Package answers implements the answer collection shared across the steps of
// a work session, and its XML wire format.
package answers

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const answerSetVersion = "1.1"

type xmlAnswerSet struct {
	XMLName xml.Name    `xml:"AnswerSet"`
	Title   string      `xml:"title,attr"`
	Version string      `xml:"version,attr,omitempty"`
	Answers []xmlAnswer `xml:"Answer"`
}

type xmlAnswer struct {
	Name  string `xml:"name,attr"`
	Value Value  `xml:",any"`
}

// Collection is a mutable set of answers keyed by variable name. Insertion
// order is kept so serialization is stable.
//
// A Collection is not safe for concurrent mutation.
type Collection struct {
	Title  string
	values map[string]Value
	order  []string
}

func New() *Collection {
	return &Collection{values: make(map[string]Value)}
}

// Parse reads an answer set from its XML form. An empty string yields an empty collection.
func Parse(answerXML string) (*Collection, error) {
	c := New()
	if err := c.ReadXML(strings.NewReader(answerXML)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection) Len() int { return len(c.order) }

// Names returns the variable names in insertion order.
func (c *Collection) Names() []string {
	return append([]string(nil), c.order...)
}

func (c *Collection) Get(name string) (Value, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Set adds or replaces an answer. A replaced answer keeps its position.
func (c *Collection) Set(name string, v Value) {
	if _, exists := c.values[name]; !exists {
		c.order = append(c.order, name)
	}
	c.values[name] = v.clone()
}

func (c *Collection) Remove(name string) {
	if _, exists := c.values[name]; !exists {
		return
	}
	delete(c.values, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear removes every answer.
func (c *Collection) Clear() {
	c.values = make(map[string]Value)
	c.order = nil
}

// Clone returns a deep copy.
func (c *Collection) Clone() *Collection {
	out := New()
	out.Title = c.Title
	for _, name := range c.order {
		out.Set(name, c.values[name])
	}
	return out
}

// Overlay copies every answer of other into c. For a name present in both,
// other's value wins; names only in c are kept.
func (c *Collection) Overlay(other *Collection) {
	if other == nil {
		return
	}
	for _, name := range other.order {
		c.Set(name, other.values[name])
	}
	if other.Title != "" {
		c.Title = other.Title
	}
}

// ReadXML overlays the answers read from r onto c. Empty input is a no-op.
func (c *Collection) ReadXML(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading answers: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var set xmlAnswerSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("parsing answers: %w", err)
	}

	incoming := New()
	incoming.Title = set.Title
	for _, a := range set.Answers {
		if a.Name == "" {
			return fmt.Errorf("parsing answers: answer without a name")
		}
		incoming.Set(a.Name, a.Value)
	}
	c.Overlay(incoming)
	return nil
}

// Replace discards the current content and reads answerXML in its place.
// On a parse error c is left unchanged.
func (c *Collection) Replace(answerXML string) error {
	fresh, err := Parse(answerXML)
	if err != nil {
		return err
	}
	c.Title = fresh.Title
	c.values = fresh.values
	c.order = fresh.order
	return nil
}

// WriteXML writes the collection as an <AnswerSet> document.
func (c *Collection) WriteXML(w io.Writer) error {
	set := xmlAnswerSet{Title: c.Title, Version: answerSetVersion}
	for _, name := range c.order {
		set.Answers = append(set.Answers, xmlAnswer{Name: name, Value: c.values[name]})
	}
	if _, err := io.WriteString(w, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+"\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("encoding answers: %w", err)
	}
	return enc.Flush()
}

// XML returns the serialized collection.
func (c *Collection) XML() (string, error) {
	var buf bytes.Buffer
	if err := c.WriteXML(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Merge overlays each reader's answers in order: later readers win for the
// same variable name.
func Merge(readers ...io.Reader) (*Collection, error) {
	out := New()
	for i, r := range readers {
		if r == nil {
			continue
		}
		if err := out.ReadXML(r); err != nil {
			return nil, fmt.Errorf("answer set %d: %w", i, err)
		}
	}
	return out, nil
}
