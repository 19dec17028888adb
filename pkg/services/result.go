package services

import (
	"path/filepath"

	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/pkg/document"
	"docassembly-sdk/pkg/template"
)

// AssembleDocumentResult is the decoded outcome of one assembly. It owns its
// Document until ExtractDocument hands it over.
type AssembleDocumentResult struct {
	doc        *document.Document
	answersXML string
	pending    []*template.Template
	unanswered []string
	closed     bool
}

// NewAssembleDocumentResult builds a result that takes ownership of doc.
func NewAssembleDocumentResult(doc *document.Document, answersXML string, pending []*template.Template, unanswered []string) *AssembleDocumentResult {
	return &AssembleDocumentResult{
		doc:        doc,
		answersXML: answersXML,
		pending:    pending,
		unanswered: unanswered,
	}
}

// FromAssemblyResult classifies the parts of a decoded assembly response.
// The answers part becomes the post-assembly answer XML, JPEG and PNG parts
// become supporting files, and the first remaining part is the document
// content. Further non-image parts are kept as supporting files.
func FromAssemblyResult(res *AssemblyResult, tpl *template.Template, settings AssembleDocumentSettings) (*AssembleDocumentResult, error) {
	if res == nil {
		return nil, errors.NewInvalidArgumentError("result", "assembly result is nil", "")
	}
	if tpl == nil {
		return nil, errors.NewInvalidArgumentError("template", "template is nil", "")
	}

	var (
		answersXML string
		primary    *BinaryObject
		content    []byte
		supporting []*document.NamedStream
	)
	for i := range res.Documents {
		bo := &res.Documents[i]
		data, err := bo.Content()
		if err != nil {
			document.CloseStreams(supporting)
			return nil, errors.NewDecodeFailedError("assembly part", err)
		}
		switch {
		case bo.Format.Has(document.FormatAnswers):
			answersXML = string(data)
		case bo.Format.IsImage(), primary != nil:
			supporting = append(supporting, document.NewNamedStream(bo.FileName, data))
		default:
			primary = bo
			content = data
		}
	}

	docType := settings.Format
	if primary != nil && (docType == document.Native || docType == document.Unknown) {
		docType = document.TypeFromFileName(primary.FileName)
		if docType == document.Unknown {
			docType = document.TypeForFormat(primary.Format)
		}
	}
	if docType == document.Native || docType == document.Unknown {
		docType = tpl.NativeDocumentType()
	}
	fileName := tpl.Title() + docType.Extension()
	if primary != nil && primary.FileName != "" {
		fileName = primary.FileName
	}

	doc := document.New(tpl.FileName(), docType, filepath.Base(fileName), content, supporting)
	doc.UnansweredVariables = append([]string(nil), res.UnansweredVariables...)

	pending := make([]*template.Template, 0, len(res.PendingAssemblies))
	for _, p := range res.PendingAssemblies {
		child, err := template.NewPending(tpl, p.TemplateName, p.Switches)
		if err != nil {
			_ = doc.Close()
			return nil, err
		}
		pending = append(pending, child)
	}

	return NewAssembleDocumentResult(doc, answersXML, pending, doc.UnansweredVariables), nil
}

// Document returns the owned document without transferring it, or nil after
// extraction.
func (r *AssembleDocumentResult) Document() *document.Document { return r.doc }

// ExtractDocument transfers ownership of the document to the caller. Only
// the first call returns it; later calls return nil and false.
func (r *AssembleDocumentResult) ExtractDocument() (*document.Document, bool) {
	if r == nil || r.doc == nil {
		return nil, false
	}
	doc := r.doc
	r.doc = nil
	return doc, true
}

// AnswersXML is the complete answer set after assembly.
func (r *AssembleDocumentResult) AnswersXML() string { return r.answersXML }

func (r *AssembleDocumentResult) PendingAssemblies() []*template.Template { return r.pending }

func (r *AssembleDocumentResult) UnansweredVariables() []string { return r.unanswered }

// Close releases the document unless it was extracted. Idempotent.
func (r *AssembleDocumentResult) Close() error {
	if r == nil || r.closed {
		return nil
	}
	r.closed = true
	if r.doc != nil {
		err := r.doc.Close()
		r.doc = nil
		return err
	}
	return nil
}

// InterviewResult is a rendered interview fragment and the files it references.
type InterviewResult struct {
	HTML  string
	Files []*document.NamedStream
}

func (r *InterviewResult) Close() error {
	if r == nil {
		return nil
	}
	document.CloseStreams(r.Files)
	return nil
}

// VariableInfo describes one template variable.
type VariableInfo struct {
	Name string `xml:"Name,attr" json:"name"`
	Type string `xml:"Type,attr" json:"type"`
}

// DialogInfo lists the variables asked by one dialog.
type DialogInfo struct {
	Name      string   `xml:"Name,attr" json:"name"`
	Variables []string `xml:"Item" json:"variables"`
}

// ComponentInfo is template metadata. It has no effect on sessions.
type ComponentInfo struct {
	Variables []VariableInfo `xml:"Variables>Variable" json:"variables"`
	Dialogs   []DialogInfo   `xml:"Dialogs>Dialog" json:"dialogs,omitempty"`
}

// IsDefined reports whether the template defines a variable called name.
func (c *ComponentInfo) IsDefined(name string) bool {
	for _, v := range c.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}
