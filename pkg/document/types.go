// Package document holds assembled output documents and the format enums
// exchanged with the assembly engine.
package document

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DocumentType identifies the concrete type of an assembled document.
type DocumentType int

const (
	Unknown DocumentType = iota
	// Native asks the engine for the template's own output type.
	Native
	WordDOCX
	WordRTF
	WordDOC
	WordPerfect
	PDF
	HPD
	HFD
	HTML
	HTMLwDataURIs
	MHTML
	PlainText
	XML
)

var documentTypeNames = map[DocumentType]string{
	Unknown:       "Unknown",
	Native:        "Native",
	WordDOCX:      "WordDOCX",
	WordRTF:       "WordRTF",
	WordDOC:       "WordDOC",
	WordPerfect:   "WordPerfect",
	PDF:           "PDF",
	HPD:           "HPD",
	HFD:           "HFD",
	HTML:          "HTML",
	HTMLwDataURIs: "HTMLwDataURIs",
	MHTML:         "MHTML",
	PlainText:     "PlainText",
	XML:           "XML",
}

func (t DocumentType) String() string {
	if s, ok := documentTypeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// ParseDocumentType is the inverse of String; unrecognized names are Unknown.
func ParseDocumentType(s string) DocumentType {
	for t, name := range documentTypeNames {
		if strings.EqualFold(name, s) {
			return t
		}
	}
	return Unknown
}

var extensionTypes = map[string]DocumentType{
	".docx":  WordDOCX,
	".rtf":   WordRTF,
	".doc":   WordDOC,
	".wpd":   WordPerfect,
	".pdf":   PDF,
	".hpd":   HPD,
	".hfd":   HFD,
	".htm":   HTML,
	".html":  HTML,
	".mht":   MHTML,
	".mhtml": MHTML,
	".txt":   PlainText,
	".xml":   XML,
}

// TypeFromFileName resolves a document type from a file name extension.
func TypeFromFileName(name string) DocumentType {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return Unknown
}

// Extension returns the conventional file extension (with dot) for t.
func (t DocumentType) Extension() string {
	switch t {
	case WordDOCX:
		return ".docx"
	case WordRTF:
		return ".rtf"
	case WordDOC:
		return ".doc"
	case WordPerfect:
		return ".wpd"
	case PDF:
		return ".pdf"
	case HPD:
		return ".hpd"
	case HFD:
		return ".hfd"
	case HTML, HTMLwDataURIs:
		return ".htm"
	case MHTML:
		return ".mht"
	case PlainText:
		return ".txt"
	case XML:
		return ".xml"
	}
	return ""
}

// OutputFormat is the engine's bitflag set of output part formats. The
// numeric values and names are part of the wire protocol.
type OutputFormat uint32

const (
	FormatNone          OutputFormat = 0
	FormatAnswers       OutputFormat = 1 << 0
	FormatJPEG          OutputFormat = 1 << 1
	FormatPNG           OutputFormat = 1 << 2
	FormatDOCX          OutputFormat = 1 << 3
	FormatRTF           OutputFormat = 1 << 4
	FormatWPD           OutputFormat = 1 << 5
	FormatPDF           OutputFormat = 1 << 6
	FormatHPD           OutputFormat = 1 << 7
	FormatHFD           OutputFormat = 1 << 8
	FormatHTML          OutputFormat = 1 << 9
	FormatHTMLwDataURIs OutputFormat = 1 << 10
	FormatMHTML         OutputFormat = 1 << 11
	FormatPlainText     OutputFormat = 1 << 12
	FormatXML           OutputFormat = 1 << 13
	// FormatNative means the request did not pin a format.
	FormatNative OutputFormat = 1 << 14
)

var formatNames = []struct {
	f    OutputFormat
	name string
}{
	{FormatAnswers, "Answers"},
	{FormatJPEG, "JPEG"},
	{FormatPNG, "PNG"},
	{FormatDOCX, "DOCX"},
	{FormatRTF, "RTF"},
	{FormatWPD, "WPD"},
	{FormatPDF, "PDF"},
	{FormatHPD, "HPD"},
	{FormatHFD, "HFD"},
	{FormatHTML, "HTML"},
	{FormatHTMLwDataURIs, "HTMLwDataURIs"},
	{FormatMHTML, "MHTML"},
	{FormatPlainText, "PlainText"},
	{FormatXML, "XML"},
	{FormatNative, "Native"},
}

// String renders the flag set as the space separated names used on the wire.
func (f OutputFormat) String() string {
	if f == FormatNone {
		return "None"
	}
	var parts []string
	for _, n := range formatNames {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseOutputFormat accepts space or comma separated flag names. Unknown names are ignored.
func ParseOutputFormat(s string) OutputFormat {
	var f OutputFormat
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' }) {
		for _, n := range formatNames {
			if strings.EqualFold(n.name, tok) {
				f |= n.f
			}
		}
	}
	return f
}

// MarshalText implements encoding.TextMarshaler with the wire names.
func (f OutputFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText accepts wire names or a decimal flag value.
func (f *OutputFormat) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		*f = OutputFormat(n)
		return nil
	}
	if strings.EqualFold(s, "None") || s == "" {
		*f = FormatNone
		return nil
	}
	parsed := ParseOutputFormat(s)
	if parsed == FormatNone {
		return fmt.Errorf("unknown output format %q", s)
	}
	*f = parsed
	return nil
}

// Has reports whether all flags in o are set in f.
func (f OutputFormat) Has(o OutputFormat) bool {
	return o != 0 && f&o == o
}

// IsImage reports whether f denotes an image part.
func (f OutputFormat) IsImage() bool {
	return f == FormatJPEG || f == FormatPNG
}

// FormatForType maps a document type onto the output format flag requested from the engine.
func FormatForType(t DocumentType) OutputFormat {
	switch t {
	case Native:
		return FormatNative
	case WordDOCX:
		return FormatDOCX
	case WordRTF, WordDOC:
		return FormatRTF
	case WordPerfect:
		return FormatWPD
	case PDF:
		return FormatPDF
	case HPD:
		return FormatHPD
	case HFD:
		return FormatHFD
	case HTML:
		return FormatHTML
	case HTMLwDataURIs:
		return FormatHTMLwDataURIs
	case MHTML:
		return FormatMHTML
	case PlainText:
		return FormatPlainText
	case XML:
		return FormatXML
	}
	return FormatNone
}

// TypeForFormat is the inverse of FormatForType for single document formats.
func TypeForFormat(f OutputFormat) DocumentType {
	switch f {
	case FormatNative:
		return Native
	case FormatDOCX:
		return WordDOCX
	case FormatRTF:
		return WordRTF
	case FormatWPD:
		return WordPerfect
	case FormatPDF:
		return PDF
	case FormatHPD:
		return HPD
	case FormatHFD:
		return HFD
	case FormatHTML:
		return HTML
	case FormatHTMLwDataURIs:
		return HTMLwDataURIs
	case FormatMHTML:
		return MHTML
	case FormatPlainText:
		return PlainText
	case FormatXML:
		return XML
	}
	return Unknown
}

// FormatFromFileName guesses a part's format from its extension.
func FormatFromFileName(name string) OutputFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".anx":
		return FormatAnswers
	}
	return FormatForType(TypeFromFileName(name))
}
