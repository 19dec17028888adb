package multipart

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
)

// Writer builds a response in the engine's multipart layout. The metadata
// part is always written first.
type Writer struct {
	mw *multipart.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{mw: multipart.NewWriter(w)}
}

// FormDataContentType is the Content-Type header value for the body.
func (w *Writer) FormDataContentType() string {
	return "multipart/mixed; boundary=" + w.mw.Boundary()
}

func (w *Writer) Boundary() string { return w.mw.Boundary() }

// WriteMeta marshals v as the metadata part.
func (w *Writer) WriteMeta(v interface{}) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return w.WritePart(MetaContentID, MetaFileName, "text/xml", buf.Bytes())
}

// WritePart adds a part identified by content-id and file name.
func (w *Writer) WritePart(contentID, fileName, contentType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	if contentID != "" {
		h.Set("Content-ID", "<"+contentID+">")
	}
	if fileName != "" {
		h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, fileName))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	pw, err := w.mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = pw.Write(data)
	return err
}

func (w *Writer) Close() error { return w.mw.Close() }
