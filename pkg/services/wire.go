package services

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"docassembly-sdk/pkg/document"
)

// BinaryObject is the engine's file container. Its bytes arrive either
// inline in Data (see DataEncoding) or as a separate multipart attachment
// whose id matches FileName.
type BinaryObject struct {
	FileName     string                `xml:"FileName" json:"fileName"`
	DataEncoding string                `xml:"DataEncoding,omitempty" json:"dataEncoding,omitempty"`
	Format       document.OutputFormat `xml:"Format" json:"format"`
	Data         string                `xml:"Data,omitempty" json:"data,omitempty"`

	// Attachment holds bytes delivered out of band.
	Attachment []byte `xml:"-" json:"-"`
}

// Content returns the object's bytes.
func (b *BinaryObject) Content() ([]byte, error) {
	if b.Attachment != nil {
		return b.Attachment, nil
	}
	switch strings.ToLower(b.DataEncoding) {
	case "", "utf-8", "utf8", "text":
		return []byte(b.Data), nil
	case "base64":
		out, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b.Data))
		if err != nil {
			return nil, fmt.Errorf("binary object %s: %w", b.FileName, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("binary object %s: unsupported data encoding %q", b.FileName, b.DataEncoding)
}

// PendingAssembly names a template that must be assembled after the one
// that reported it.
type PendingAssembly struct {
	TemplateName string `xml:"TemplateName" json:"templateName"`
	Switches     string `xml:"Switches,omitempty" json:"switches,omitempty"`
}

// AssemblyResult is the metadata part of an assembly response.
type AssemblyResult struct {
	XMLName             xml.Name          `xml:"AssemblyResult" json:"-"`
	Documents           []BinaryObject    `xml:"Documents>BinaryObject" json:"documents"`
	PendingAssemblies   []PendingAssembly `xml:"PendingAssemblies>PendingAssembly" json:"pendingAssemblies,omitempty"`
	UnansweredVariables []string          `xml:"UnansweredVariables>string" json:"unansweredVariables,omitempty"`
}

// BinaryObjectList is the metadata part of interview, component-info and
// answer responses.
type BinaryObjectList struct {
	XMLName xml.Name       `xml:"ArrayOfBinaryObject"`
	Items   []BinaryObject `xml:"BinaryObject"`
}

// Find returns the first object whose format includes f.
func (l *BinaryObjectList) Find(f document.OutputFormat) (*BinaryObject, bool) {
	if l == nil {
		return nil, false
	}
	for i := range l.Items {
		if l.Items[i].Format.Has(f) {
			return &l.Items[i], true
		}
	}
	return nil, false
}
