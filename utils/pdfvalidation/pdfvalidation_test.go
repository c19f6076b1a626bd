package pdfvalidation

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a well-formed PDF with the given number of empty pages
func minimalPDF(pages int) []byte {
	var objs []string
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	objs = append(objs, "<< /Type /Catalog /Pages 2 0 R >>")
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestValidateUpload_PDF(t *testing.T) {
	result, err := ValidateUpload("Syllabus.PDF", minimalPDF(2))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.MimeType)
	assert.Equal(t, 2, result.PageCount)
}

func TestValidateUpload_TrailingGarbage(t *testing.T) {
	content := append(minimalPDF(1), []byte("garbage after eof")...)
	result, err := ValidateUpload("s.pdf", content)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
}

func TestValidateUpload_Image(t *testing.T) {
	result, err := ValidateUpload("photo.png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", result.MimeType)
	assert.Equal(t, 1, result.PageCount)

	jpeg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	result, err = ValidateUpload("scan.jpeg", jpeg)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.MimeType)
}

func TestValidateUpload_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content []byte
		want    error
	}{
		{"empty", "a.pdf", nil, ErrEmptyFile},
		{"too large", "a.pdf", make([]byte, MaxUploadBytes+1), ErrFileTooLarge},
		{"bad extension", "notes.docx", minimalPDF(1), ErrUnsupportedType},
		{"extension mismatch", "photo.pdf", pngHeader, ErrUnsupportedType},
		{"broken pdf", "broken.pdf", []byte("%PDF-1.4\nthis is not a pdf body"), ErrUnreadablePDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUpload(tt.file, tt.content)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
