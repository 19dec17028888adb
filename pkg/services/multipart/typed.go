package multipart

import (
	"encoding/xml"
	"fmt"
	"io"

	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/pkg/document"
	"docassembly-sdk/pkg/services"
	"docassembly-sdk/pkg/template"
)

// DecodeAssemblyResult decodes an assembly response. The result is nil, with
// no error, when the response carries no metadata part.
func DecodeAssemblyResult(r io.Reader, boundary string) (*services.AssemblyResult, error) {
	msg, err := Decode(r, boundary)
	if err != nil {
		return nil, err
	}
	return AssemblyResultFrom(msg)
}

// AssemblyResultFrom unmarshals msg's metadata and attaches the parts its
// documents refer to by file name. Parts nobody refers to are appended as
// extra documents with a format guessed from their name.
func AssemblyResultFrom(msg *Message) (*services.AssemblyResult, error) {
	if msg == nil || msg.Meta == nil {
		return nil, nil
	}
	var res services.AssemblyResult
	if err := xml.Unmarshal(msg.Meta, &res); err != nil {
		return nil, errors.NewDecodeFailedError("assembly result", err)
	}
	docs, err := attach(res.Documents, msg.Parts)
	if err != nil {
		return nil, err
	}
	res.Documents = docs
	return &res, nil
}

// DecodeBinaryObjects decodes an interview, component-info or answers
// response. The result is nil, with no error, when there is no metadata part.
func DecodeBinaryObjects(r io.Reader, boundary string) (*services.BinaryObjectList, error) {
	msg, err := Decode(r, boundary)
	if err != nil {
		return nil, err
	}
	return BinaryObjectsFrom(msg)
}

func BinaryObjectsFrom(msg *Message) (*services.BinaryObjectList, error) {
	if msg == nil || msg.Meta == nil {
		return nil, nil
	}
	var list services.BinaryObjectList
	if err := xml.Unmarshal(msg.Meta, &list); err != nil {
		return nil, errors.NewDecodeFailedError("binary objects", err)
	}
	items, err := attach(list.Items, msg.Parts)
	if err != nil {
		return nil, err
	}
	list.Items = items
	return &list, nil
}

// DecodeAssembleDocumentResult decodes an assembly response straight into a
// host-facing result for tpl. Nil, with no error, when there is no metadata.
func DecodeAssembleDocumentResult(r io.Reader, boundary string, tpl *template.Template, settings services.AssembleDocumentSettings) (*services.AssembleDocumentResult, error) {
	res, err := DecodeAssemblyResult(r, boundary)
	if err != nil || res == nil {
		return nil, err
	}
	return services.FromAssemblyResult(res, tpl, settings)
}

// attach gives every object without inline data the part that its file name
// refers to, by content-id or file name. An object left with no bytes at all
// is a DECODE_FAILED error.
func attach(objs []services.BinaryObject, parts []Part) ([]services.BinaryObject, error) {
	used := make([]bool, len(parts))
	for i := range objs {
		if objs[i].Data != "" {
			continue
		}
		for j := range parts {
			if !used[j] && parts[j].Is(objs[i].FileName) {
				objs[i].Attachment = parts[j].Data
				used[j] = true
				break
			}
		}
		if objs[i].Attachment == nil {
			return nil, errors.NewDecodeFailedError("binary object "+objs[i].FileName,
				fmt.Errorf("no inline data and no part with that content-id or file name"))
		}
	}
	for j, p := range parts {
		if used[j] {
			continue
		}
		name := p.FileName
		if name == "" {
			name = p.Name
		}
		objs = append(objs, services.BinaryObject{
			FileName:   name,
			Format:     document.FormatFromFileName(name),
			Attachment: p.Data,
		})
	}
	return objs, nil
}
