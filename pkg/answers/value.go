package answers

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind is the type of an answer value.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
	KindDate
	KindTrueFalse
	KindMultipleChoice
	KindRepeat
)

var kindElements = map[ValueKind]string{
	KindText:           "TextValue",
	KindNumber:         "NumValue",
	KindDate:           "DateValue",
	KindTrueFalse:      "TFValue",
	KindMultipleChoice: "MCValue",
	KindRepeat:         "RptValue",
}

func (k ValueKind) String() string {
	return strings.TrimSuffix(kindElements[k], "Value")
}

func kindFromElement(name string) (ValueKind, bool) {
	for k, el := range kindElements {
		if el == name {
			return k, true
		}
	}
	return 0, false
}

// Value is a single answer value. Repeated answers nest values in Items.
type Value struct {
	Kind       ValueKind
	Text       string
	Selections []string
	Items      []Value
	Unanswered bool
}

func Text(s string) Value { return Value{Kind: KindText, Text: s} }

func Number(f float64) Value {
	return Value{Kind: KindNumber, Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Date holds a date in the engine's textual form.
func Date(s string) Value { return Value{Kind: KindDate, Text: s} }

func Bool(b bool) Value { return Value{Kind: KindTrueFalse, Text: strconv.FormatBool(b)} }

func MultipleChoice(selections ...string) Value {
	return Value{Kind: KindMultipleChoice, Selections: selections}
}

func Repeat(items ...Value) Value { return Value{Kind: KindRepeat, Items: items} }

func Unanswered(kind ValueKind) Value { return Value{Kind: kind, Unanswered: true} }

// Float parses a number value.
func (v Value) Float() (float64, error) {
	if v.Kind != KindNumber || v.Unanswered {
		return 0, fmt.Errorf("value is not an answered number")
	}
	return strconv.ParseFloat(v.Text, 64)
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Unanswered != o.Unanswered || v.Text != o.Text {
		return false
	}
	if len(v.Selections) != len(o.Selections) || len(v.Items) != len(o.Items) {
		return false
	}
	for i := range v.Selections {
		if v.Selections[i] != o.Selections[i] {
			return false
		}
	}
	for i := range v.Items {
		if !v.Items[i].Equal(o.Items[i]) {
			return false
		}
	}
	return true
}

func (v Value) clone() Value {
	out := v
	if v.Selections != nil {
		out.Selections = append([]string(nil), v.Selections...)
	}
	if v.Items != nil {
		out.Items = make([]Value, len(v.Items))
		for i, it := range v.Items {
			out.Items[i] = it.clone()
		}
	}
	return out
}

func (v Value) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: kindElements[v.Kind]}}
	if v.Unanswered {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "unans"}, Value: "true"})
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		return e.EncodeToken(start.End())
	}

	switch v.Kind {
	case KindMultipleChoice:
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		for _, sel := range v.Selections {
			if err := e.EncodeElement(sel, xml.StartElement{Name: xml.Name{Local: "SelValue"}}); err != nil {
				return err
			}
		}
		return e.EncodeToken(start.End())
	case KindRepeat:
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		for _, item := range v.Items {
			if err := item.MarshalXML(e, xml.StartElement{}); err != nil {
				return err
			}
		}
		return e.EncodeToken(start.End())
	default:
		return e.EncodeElement(v.Text, start)
	}
}

func (v *Value) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	kind, ok := kindFromElement(start.Name.Local)
	if !ok {
		return fmt.Errorf("unknown answer value element <%s>", start.Name.Local)
	}
	*v = Value{Kind: kind}
	for _, a := range start.Attr {
		if a.Name.Local == "unans" && strings.EqualFold(a.Value, "true") {
			v.Unanswered = true
		}
	}

	switch kind {
	case KindMultipleChoice, KindRepeat:
		for {
			tok, err := d.Token()
			if err != nil {
				return err
			}
			switch t := tok.(type) {
			case xml.StartElement:
				if kind == KindMultipleChoice {
					if t.Name.Local != "SelValue" {
						if err := d.Skip(); err != nil {
							return err
						}
						continue
					}
					var sel string
					if err := d.DecodeElement(&sel, &t); err != nil {
						return err
					}
					v.Selections = append(v.Selections, sel)
					continue
				}
				var item Value
				if err := item.UnmarshalXML(d, t); err != nil {
					return err
				}
				v.Items = append(v.Items, item)
			case xml.EndElement:
				return nil
			}
		}
	default:
		var s string
		if err := d.DecodeElement(&s, &start); err != nil {
			return err
		}
		v.Text = s
		return nil
	}
}
