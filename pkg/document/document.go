package document

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by reads on released content.
var ErrClosed = errors.New("document: content closed")

// Content is an in-memory byte stream that must be released with Close.
// After Close every read fails with ErrClosed.
type Content struct {
	mu     sync.Mutex
	r      *bytes.Reader
	closed bool
}

// NewContent takes ownership of b.
func NewContent(b []byte) *Content {
	return &Content{r: bytes.NewReader(b)}
}

func (c *Content) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	return c.r.Read(p)
}

func (c *Content) Seek(offset int64, whence int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	return c.r.Seek(offset, whence)
}

// Len is the total size of the content, independent of the read position.
func (c *Content) Len() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	return c.r.Size()
}

// Bytes returns a copy of the whole content without moving the read position.
func (c *Content) Bytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	buf := make([]byte, c.r.Size())
	_, err := c.r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// Close releases the content. Closing twice is a no-op.
func (c *Content) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.r = bytes.NewReader(nil)
	return nil
}

func (c *Content) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// NamedStream is an ancillary file of a document, e.g. an image referenced
// by an HTML document.
type NamedStream struct {
	Name    string
	Content *Content
}

func NewNamedStream(name string, data []byte) *NamedStream {
	return &NamedStream{Name: name, Content: NewContent(data)}
}

func (s *NamedStream) Close() error {
	if s == nil || s.Content == nil {
		return nil
	}
	return s.Content.Close()
}

// Document is one assembled output. It owns its content and supporting
// files; the holder must Close it.
type Document struct {
	// TemplateName is the file name of the template the document was assembled from.
	TemplateName    string
	Type            DocumentType
	FileName        string
	Content         *Content
	SupportingFiles []*NamedStream
	// UnansweredVariables lists variables the engine reported as unanswered.
	UnansweredVariables []string
}

// New builds a Document owning content and supporting files.
func New(templateName string, docType DocumentType, fileName string, content []byte, supporting []*NamedStream) *Document {
	return &Document{
		TemplateName:    templateName,
		Type:            docType,
		FileName:        fileName,
		Content:         NewContent(content),
		SupportingFiles: supporting,
	}
}

// SupportingFile finds a supporting file by name.
func (d *Document) SupportingFile(name string) (*NamedStream, bool) {
	for _, s := range d.SupportingFiles {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Close releases the content and every supporting file. Idempotent.
func (d *Document) Close() error {
	if d == nil {
		return nil
	}
	if d.Content != nil {
		_ = d.Content.Close()
	}
	for _, s := range d.SupportingFiles {
		_ = s.Close()
	}
	return nil
}

// CloseStreams closes every stream in streams.
func CloseStreams(streams []*NamedStream) {
	for _, s := range streams {
		_ = s.Close()
	}
}

// CloseAll closes every document in docs.
func CloseAll(docs []*Document) {
	for _, d := range docs {
		_ = d.Close()
	}
}
