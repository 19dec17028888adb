// Package template identifies document templates and the facts derived from
// their file name and switches.
package template

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/pkg/document"
)

// Type is the kind of template, derived from its file extension.
type Type int

const (
	TypeUnknown Type = iota
	TypeInterviewOnly
	TypeWordDOCX
	TypeWordRTF
	TypeWordPerfect
	TypeHotDocsPDF
	TypeHotDocsHFD
	TypePlainText
)

var typeByExt = map[string]Type{
	".cmp":  TypeInterviewOnly,
	".docx": TypeWordDOCX,
	".rtf":  TypeWordRTF,
	".wpt":  TypeWordPerfect,
	".hpt":  TypeHotDocsPDF,
	".hft":  TypeHotDocsHFD,
	".ttx":  TypePlainText,
}

// switches that suppress the interview
var noInterviewSwitches = []string{"/nw", "/naw", "/ni"}

// Template identifies a template file at a location, plus command-line
// style switches. It is immutable; share it freely.
type Template struct {
	fileName string
	switches string
	title    string
	location Location
}

// New returns a Template. title may be empty, in which case Title falls back
// to the file name without extension.
func New(fileName string, location Location, switches, title string) (*Template, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, errors.NewInvalidArgumentError("fileName", "template file name is required", "")
	}
	if location == nil {
		return nil, errors.NewInvalidArgumentError("location", "template location is required", "")
	}
	return &Template{
		fileName: fileName,
		switches: switches,
		title:    title,
		location: location,
	}, nil
}

// NewPending builds the template named by a pending assembly. It lives at the
// same location as the template whose assembly reported it.
func NewPending(parent *Template, fileName, switches string) (*Template, error) {
	if parent == nil {
		return nil, errors.NewInvalidArgumentError("parent", "pending assembly needs a parent template", "")
	}
	return New(fileName, parent.location, switches, "")
}

func (t *Template) FileName() string   { return t.fileName }
func (t *Template) Switches() string   { return t.switches }
func (t *Template) Location() Location { return t.location }

func (t *Template) Title() string {
	if t.title != "" {
		return t.title
	}
	return strings.TrimSuffix(t.fileName, filepath.Ext(t.fileName))
}

func (t *Template) Type() Type {
	return typeByExt[strings.ToLower(filepath.Ext(t.fileName))]
}

// HasInterview is false when the switches suppress the user interface.
func (t *Template) HasInterview() bool {
	sw := strings.ToLower(t.switches)
	for _, s := range noInterviewSwitches {
		if containsSwitch(sw, s) {
			return false
		}
	}
	return true
}

func containsSwitch(switches, sw string) bool {
	for _, field := range strings.Fields(switches) {
		if field == sw {
			return true
		}
	}
	return false
}

// GeneratesDocument is false only for interview-only templates.
func (t *Template) GeneratesDocument() bool {
	return t.Type() != TypeInterviewOnly
}

// NativeDocumentType is the document type assembly produces by default.
func (t *Template) NativeDocumentType() document.DocumentType {
	switch t.Type() {
	case TypeWordDOCX:
		return document.WordDOCX
	case TypeWordRTF:
		return document.WordRTF
	case TypeWordPerfect:
		return document.WordPerfect
	case TypeHotDocsPDF:
		return document.PDF
	case TypeHotDocsHFD:
		return document.HFD
	case TypePlainText:
		return document.PlainText
	}
	return document.Unknown
}

func (t *Template) String() string {
	return fmt.Sprintf("%s (%s)", t.fileName, t.location.Describe())
}

// locatorFields is the JSON body of a locator. Each field is kept whole, so
// no character in a name, title or payload is special.
type locatorFields struct {
	FileName string `json:"f"`
	Switches string `json:"s,omitempty"`
	Title    string `json:"t,omitempty"`
	Kind     string `json:"k"`
	Payload  string `json:"p"`
}

// Locator encodes the template as an opaque string that FromLocator turns
// back into an equal Template.
func (t *Template) Locator() string {
	raw, _ := json.Marshal(locatorFields{
		FileName: t.fileName,
		Switches: t.switches,
		Title:    t.title,
		Kind:     t.location.Kind(),
		Payload:  t.location.Payload(),
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// FromLocator rebuilds a Template from Locator output.
func FromLocator(locator string) (*Template, error) {
	raw, err := base64.RawURLEncoding.DecodeString(locator)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("locator", "locator is not valid base64: "+err.Error(), "")
	}
	var f locatorFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.NewInvalidArgumentError("locator", "locator is malformed: "+err.Error(), "")
	}
	if f.Kind == "" {
		return nil, errors.NewInvalidArgumentError("locator", "locator has no location kind", "")
	}
	loc, err := decodeLocation(f.Kind, f.Payload)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("locator", err.Error(), "")
	}
	return New(f.FileName, loc, f.Switches, f.Title)
}

// Equal reports whether two templates have the same locator.
func (t *Template) Equal(o *Template) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Locator() == o.Locator()
}
