package http

import (
	"os"
	"strconv"
	"strings"
)

// FileAttachment is a local file prepared for a multipart upload.
type FileAttachment struct {
	Path     string
	PostName string
	MimeType string
}

// NewFileAttachment returns an attachment for path. The post name and MIME
// type may be left empty.
func NewFileAttachment(path, postName, mimeType string) *FileAttachment {
	return &FileAttachment{
		Path:     path,
		PostName: postName,
		MimeType: mimeType,
	}
}

// FileEntry is one element of a SetFiles collection. An empty PostName means
// the entry is positional and gets a generated name.
type FileEntry struct {
	PostName string
	Source   any
}

// File returns a positional entry.
func File(source any) FileEntry {
	return FileEntry{Source: source}
}

// NamedFile returns an entry posted under postName. A nil source removes
// postName from the params.
func NamedFile(postName string, source any) FileEntry {
	return FileEntry{PostName: postName, Source: source}
}

// Files returns the attachments currently held, in insertion order.
func (p *Params) Files() []*FileAttachment {
	if p.mode != ParamsMapping {
		return nil
	}
	var files []*FileAttachment
	for pair := p.values.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.IsFile() {
			files = append(files, pair.Value.File)
		}
	}
	return files
}

// AddFile attaches a file. source may be a path string, a []string of
// {path, postName, mimeType} (trailing elements optional), a *FileAttachment
// or an *os.File. A nil source removes postName instead.
//
// Sources that do not name an existing regular file are ignored without
// error; callers needing strict validation must stat the path first.
//
// When postName is empty or numeric the name falls back to the one carried
// by an existing attachment, then to "file" + (1 + number of attachments
// already present).
func (p *Params) AddFile(source any, postName, mimeType string) *Params {
	next := "file" + strconv.Itoa(len(p.Files())+1)

	if postName != "" && !isNumeric(postName) {
		postName = strings.TrimSpace(postName)
	} else {
		postName = ""
		if fa, ok := source.(*FileAttachment); ok && fa != nil {
			postName = fa.PostName
		}
		if postName == "" || isNumeric(postName) {
			postName = next
		}
	}

	if isNilSource(source) {
		p.remove(postName)
		return p
	}

	var att *FileAttachment
	switch src := source.(type) {
	case *FileAttachment:
		if isRegularFile(src.Path) {
			cp := *src
			cp.PostName = postName
			att = &cp
		}
	case *os.File:
		if isRegularFile(src.Name()) {
			att = &FileAttachment{Path: src.Name(), PostName: postName}
		}
	case []string:
		if len(src) > 0 {
			path := strings.TrimSpace(src[0])
			if path != "" && isRegularFile(path) {
				att = &FileAttachment{Path: path, PostName: postName}
				if len(src) > 1 && strings.TrimSpace(src[1]) != "" {
					att.PostName = strings.TrimSpace(src[1])
				}
				if len(src) > 2 && strings.TrimSpace(src[2]) != "" {
					mimeType = strings.TrimSpace(src[2])
				}
			}
		}
	case string:
		if src != "" && isRegularFile(src) {
			att = &FileAttachment{Path: src, PostName: postName}
		}
	}

	if att == nil {
		return p
	}
	if mimeType != "" {
		att.MimeType = mimeType
	}

	p.toMapping()
	p.values.Set(att.PostName, ParamValue{File: att})
	return p
}

// SetFiles adds every entry in order. Existing attachments are kept.
func (p *Params) SetFiles(entries ...FileEntry) *Params {
	for _, e := range entries {
		p.AddFile(e.Source, e.PostName, "")
	}
	return p
}

// RemoveFile drops the entry posted under postName.
func (p *Params) RemoveFile(postName string) *Params {
	if postName == "" {
		return p
	}
	p.remove(postName)
	return p
}

func isNilSource(source any) bool {
	switch src := source.(type) {
	case nil:
		return true
	case *FileAttachment:
		return src == nil
	case *os.File:
		return src == nil
	}
	return false
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
