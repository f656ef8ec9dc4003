package http

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func postNames(files []*FileAttachment) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.PostName
	}
	return names
}

func TestParams_AddFileGeneratesNames(t *testing.T) {
	a := writeTempFile(t, "a.txt", "a")
	b := writeTempFile(t, "b.txt", "b")
	c := writeTempFile(t, "c.txt", "c")

	p := NewParams()
	p.AddFile(a, "", "").AddFile(b, "", "").AddFile(c, "", "")

	assert.Equal(t, []string{"file1", "file2", "file3"}, postNames(p.Files()))
	assert.Equal(t, ParamsMapping, p.Mode())
}

func TestParams_AddFileCustomName(t *testing.T) {
	a := writeTempFile(t, "a.txt", "a")
	b := writeTempFile(t, "b.txt", "b")

	p := NewParams()
	p.AddFile(a, "custom", "text/plain").AddFile(b, "", "")

	files := p.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "custom", files[0].PostName)
	assert.Equal(t, "text/plain", files[0].MimeType)
	assert.Equal(t, "file2", files[1].PostName)
}

func TestParams_AddFileIgnoresMissingSources(t *testing.T) {
	dir := t.TempDir()

	p := NewParams()
	p.AddFile(filepath.Join(dir, "missing.txt"), "", "")
	p.AddFile(dir, "", "")
	p.AddFile("", "", "")

	assert.Empty(t, p.Files())
	assert.Equal(t, ParamsUnset, p.Mode())
}

func TestParams_AddFileConvertsRawToMapping(t *testing.T) {
	a := writeTempFile(t, "a.txt", "a")

	p := NewParams()
	p.Merge("x=1&y=2")
	p.AddFile(a, "", "")

	assert.Equal(t, ParamsMapping, p.Mode())
	assert.Equal(t, []string{"x", "y", "file1"}, p.Keys())
	assert.Equal(t, "x=1&y=2", p.Encode())
}

func TestParams_AddFileSources(t *testing.T) {
	a := writeTempFile(t, "a.txt", "a")

	f, err := os.Open(a)
	require.NoError(t, err)
	defer f.Close()

	p := NewParams()
	p.AddFile(f, "handle", "")
	p.AddFile([]string{a, "listed", "text/csv"}, "", "")
	p.AddFile(NewFileAttachment(a, "attachment", "image/png"), "", "")

	files := p.Files()
	require.Len(t, files, 3)
	assert.Equal(t, "handle", files[0].PostName)
	assert.Equal(t, "listed", files[1].PostName)
	assert.Equal(t, "text/csv", files[1].MimeType)
	assert.Equal(t, "attachment", files[2].PostName)
	assert.Equal(t, "image/png", files[2].MimeType)
}

func TestParams_FileReferenceInParams(t *testing.T) {
	a := writeTempFile(t, "a.txt", "a")

	p := NewParams()
	p.Apply(KV("upload", "@"+a), Fragment("@"+a))

	assert.Equal(t, []string{"upload", "file2"}, postNames(p.Files()))
}

func TestParams_SetFilesAndRemove(t *testing.T) {
	a := writeTempFile(t, "a.txt", "a")
	b := writeTempFile(t, "b.txt", "b")

	p := NewParams()
	p.SetFiles(File(a), NamedFile("doc", b))
	assert.Equal(t, []string{"file1", "doc"}, postNames(p.Files()))

	p.SetFiles(NamedFile("doc", nil))
	assert.Equal(t, []string{"file1"}, postNames(p.Files()))

	p.RemoveFile("file1")
	assert.Empty(t, p.Files())
}

func TestParams_CloneCopiesAttachments(t *testing.T) {
	a := writeTempFile(t, "a.txt", "a")

	p := NewParams()
	p.AddFile(a, "", "")

	c := p.Clone()
	c.Files()[0].MimeType = "text/plain"

	assert.Empty(t, p.Files()[0].MimeType)
}
