package blob

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/logging"
)

const baseURL = "https://acct.blob.core.windows.net/agents"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestStore() (*Store, *MemoryBackend) {
	backend := NewMemoryBackend()
	return New(backend, baseURL, "HRAgent", WithLogger(logging.NewNoop())), backend
}

func TestPaths(t *testing.T) {
	s, _ := newTestStore()
	assert.Equal(t, "hragent/public_docs/Additional Documents/policy.pdf", s.PublicDocPath("policy.pdf"))
	assert.Equal(t, "hragent/users_docs/a@b.com", s.UserDocsPrefix("a@b.com", ""))
	assert.Equal(t, "hragent/users_docs/a@b.com/d1/file.pdf", s.UserDocPath("a@b.com", "d1", "file.pdf"))
	assert.Equal(t, "hragent/users_images/a@b.com/s1", s.UserImagesPrefix("a@b.com", "s1"))
	assert.Equal(t, "hragent/users_generated_docs/a@b.com/s1", s.GeneratedDocsPrefix("a@b.com", "s1"))
}

func TestURLRoundTrip(t *testing.T) {
	s, _ := newTestStore()
	name := s.PublicDocPath("leave policy.pdf")
	u := s.URL(name)
	assert.Equal(t, baseURL+"/hragent/public_docs/Additional%20Documents/leave%20policy.pdf", u)

	back, err := s.Name(u)
	require.NoError(t, err)
	assert.Equal(t, name, back)

	_, err = s.Name("https://elsewhere.example.com/agents/x.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDetect(t *testing.T) {
	var docx bytes.Buffer
	zw := zip.NewWriter(&docx)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte("<w:document/>"))
	require.NoError(t, zw.Close())

	tests := []struct {
		name string
		data []byte
		ext  string
		typ  string
	}{
		{"png", pngHeader, ".png", "image/png"},
		{"jpeg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), ".jpg", "image/jpeg"},
		{"pdf", []byte("%PDF-1.7\n"), ".pdf", "application/pdf"},
		{"docx", docx.Bytes(), ".docx", docxContentType},
		{"text", []byte("hello world"), ".txt", "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, typ := Detect(tt.data)
			assert.Equal(t, tt.ext, ext)
			assert.Equal(t, tt.typ, typ)
		})
	}
}

func TestUploadUserImageAndDownload(t *testing.T) {
	s, backend := newTestStore()
	ctx := context.Background()

	u, err := s.UploadUserImage(ctx, "a@b.com", "s1", base64.StdEncoding.EncodeToString(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, baseURL+"/hragent/users_images/a@b.com/s1/"))
	assert.True(t, strings.HasSuffix(u, ".png"))

	name, err := s.Name(u)
	require.NoError(t, err)
	assert.Equal(t, "image/png", backend.ContentType(name))

	img, err := s.DownloadImage(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "png", img.MediaType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngHeader), img.Data)

	_, err = s.UploadUserImage(ctx, "a@b.com", "s1", "not base64!!")
	assert.Error(t, err)
}

func TestDownloadImageRejectsDocuments(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	u, err := s.UploadGenerated(ctx, "a@b.com", "s1", []byte("%PDF-1.7\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u, ".pdf"))

	_, err = s.DownloadImage(ctx, u)
	assert.ErrorContains(t, err, "not an image")
}

type failingDelete struct {
	*MemoryBackend
	fail string
}

func (f failingDelete) Delete(ctx context.Context, name string) error {
	if name == f.fail {
		return errors.New("locked")
	}
	return f.MemoryBackend.Delete(ctx, name)
}

func TestDeleteByPrefix(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		s, _ := newTestStore()
		report, err := s.DeleteByPrefix(ctx, s.UserDocsPrefix("a@b.com", ""))
		require.NoError(t, err)
		assert.Equal(t, 0, report.Total)
		require.Len(t, report.Errors, 1)
		assert.Equal(t, "Not Found", report.Errors[0].Error)
	})

	t.Run("partial failure", func(t *testing.T) {
		backend := NewMemoryBackend()
		s := New(failingDelete{MemoryBackend: backend, fail: "hragent/users_docs/a@b.com/d2/b.pdf"}, baseURL, "hragent", WithLogger(logging.NewNoop()))
		for _, name := range []string{"hragent/users_docs/a@b.com/d1/a.pdf", "hragent/users_docs/a@b.com/d2/b.pdf", "hragent/users_docs/c@d.com/d3/c.pdf"} {
			require.NoError(t, backend.Upload(ctx, name, []byte("%PDF"), "application/pdf"))
		}

		report, err := s.DeleteByPrefix(ctx, s.UserDocsPrefix("a@b.com", ""))
		require.NoError(t, err)
		assert.Equal(t, 2, report.Total)
		assert.Equal(t, 1, report.Successful)
		assert.Equal(t, 1, report.Unsuccessful)
		assert.Equal(t, []string{"hragent/users_docs/a@b.com/d1/a.pdf"}, report.DeletedBlobs)
		require.Len(t, report.Errors, 1)
		assert.Equal(t, "locked", report.Errors[0].Error)

		remaining, _ := backend.List(ctx, "hragent/users_docs/c@d.com")
		assert.Len(t, remaining, 1)
	})
}

func TestDeleteExact(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore()
	for _, name := range []string{s.PublicDocPath("report.pdf"), s.PublicDocPath("report.pdf.bak")} {
		require.NoError(t, backend.Upload(ctx, name, []byte("%PDF"), "application/pdf"))
	}

	report, err := s.DeleteExact(ctx, s.PublicDocPath("report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, []string{s.PublicDocPath("report.pdf")}, report.DeletedBlobs)

	remaining, err := backend.List(ctx, s.PublicDocPath("report"))
	require.NoError(t, err)
	assert.Equal(t, []string{s.PublicDocPath("report.pdf.bak")}, remaining)

	report, err = s.DeleteExact(ctx, s.PublicDocPath("report.pdf"))
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "Not Found", report.Errors[0].Error)
}
