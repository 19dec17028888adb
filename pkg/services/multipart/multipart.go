// Package multipart decodes the engine's multipart MIME responses. One part
// carries the call's structured metadata; the others are files keyed by
// content-id or file name.
package multipart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"docassembly-sdk/internal/common/errors"
)

// Reserved ids of the metadata part, matched case-insensitively.
const (
	MetaContentID = "XML0"
	MetaFileName  = "meta0.xml"
)

// Part is one supplementary part of a response.
type Part struct {
	// Name is the content-id without angle brackets, or else the file name.
	Name string
	// ContentID and FileName are the raw keys; either may be empty.
	ContentID   string
	FileName    string
	ContentType string
	Data        []byte
}

// Is reports whether the part answers to name by content-id, file name or
// form name, ignoring case.
func (p *Part) Is(name string) bool {
	if name == "" {
		return false
	}
	return strings.EqualFold(p.ContentID, name) ||
		strings.EqualFold(p.FileName, name) ||
		strings.EqualFold(p.Name, name)
}

// Message is a decoded response. Meta is nil when the response had no
// metadata part or the part was empty.
type Message struct {
	Meta  []byte
	Parts []Part
}

// Part finds a part by name, ignoring case.
func (m *Message) Part(name string) ([]byte, bool) {
	for i := range m.Parts {
		if m.Parts[i].Is(name) {
			return m.Parts[i].Data, true
		}
	}
	return nil, false
}

// DecodeResponse reads the boundary from contentType and decodes body.
func DecodeResponse(contentType string, body io.Reader) (*Message, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, errors.NewDecodeFailedError("content type", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, errors.NewDecodeFailedError("content type", fmt.Errorf("%s is not multipart", mediaType))
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.NewDecodeFailedError("content type", fmt.Errorf("no boundary in %q", contentType))
	}
	return Decode(body, boundary)
}

// Decode splits a multipart body into its metadata and named parts.
func Decode(r io.Reader, boundary string) (*Message, error) {
	mr := multipart.NewReader(r, boundary)
	msg := &Message{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewDecodeFailedError("multipart body", err)
		}

		part := Part{
			ContentID:   stripBrackets(p.Header.Get("Content-ID")),
			FileName:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
		}
		part.Name = partName(part, p.FormName())
		data, err := readPart(p)
		_ = p.Close()
		if err != nil {
			return nil, errors.NewDecodeFailedError("part "+part.Name, err)
		}

		if isMeta(part) {
			if len(bytes.TrimSpace(data)) > 0 {
				msg.Meta = data
			}
			continue
		}
		part.Data = data
		msg.Parts = append(msg.Parts, part)
	}
	return msg, nil
}

func partName(p Part, formName string) string {
	if p.ContentID != "" {
		return p.ContentID
	}
	if p.FileName != "" {
		return p.FileName
	}
	return formName
}

func stripBrackets(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	return strings.TrimSuffix(id, ">")
}

func isMeta(p Part) bool {
	return p.Is(MetaContentID) || p.Is(MetaFileName)
}

func readPart(p *multipart.Part) ([]byte, error) {
	var src io.Reader = p
	if strings.EqualFold(strings.TrimSpace(p.Header.Get("Content-Transfer-Encoding")), "base64") {
		src = base64.NewDecoder(base64.StdEncoding, newlineStripper{p})
	}
	return io.ReadAll(src)
}

// newlineStripper drops CR and LF so line-wrapped base64 decodes.
type newlineStripper struct{ r io.Reader }

func (n newlineStripper) Read(p []byte) (int, error) {
	for {
		c, err := n.r.Read(p)
		j := 0
		for _, b := range p[:c] {
			if b != '\r' && b != '\n' {
				p[j] = b
				j++
			}
		}
		if j > 0 || err != nil {
			return j, err
		}
	}
}
