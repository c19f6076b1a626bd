package pdfvalidation

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// MaxUploadBytes is the largest syllabus file accepted
const MaxUploadBytes = 10 * 1024 * 1024

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the 10MB limit")
	ErrUnsupportedType = errors.New("only PDF, JPEG and PNG files are supported")
	ErrUnreadablePDF   = errors.New("PDF could not be read")
)

// allowed maps a lowercase extension to the sniffed content type it must carry
var allowed = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ValidationResult describes an accepted upload
type ValidationResult struct {
	MimeType  string
	PageCount int
	FileSize  int64
}

// ValidateUpload checks size, extension and sniffed content type, and for PDFs that the document
// parses and has pages. Images report a page count of 1.
func ValidateUpload(fileName string, content []byte) (*ValidationResult, error) {
	size := int64(len(content))
	if size == 0 {
		return nil, ErrEmptyFile
	}
	if size > MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	want, ok := allowed[strings.ToLower(filepath.Ext(fileName))]
	if !ok {
		return nil, ErrUnsupportedType
	}
	detected := mimetype.Detect(content)
	if !detected.Is(want) {
		return nil, fmt.Errorf("%w: %s content is %s", ErrUnsupportedType, filepath.Ext(fileName), detected.String())
	}

	result := &ValidationResult{MimeType: want, FileSize: size, PageCount: 1}
	if want != "application/pdf" {
		return result, nil
	}

	pages, err := PageCount(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrUnreadablePDF)
	}
	result.PageCount = pages
	return result, nil
}

// sanitizePDF removes trailing garbage after the last %%EOF marker
func sanitizePDF(content []byte) []byte {
	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)
	if lastEOF == -1 {
		return content
	}

	pdfEnd := lastEOF + len(eofMarker)
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}
	return content[:pdfEnd]
}

// PageCount returns the number of pages in a PDF
func PageCount(content []byte) (int, error) {
	content = sanitizePDF(content)
	reader := bytes.NewReader(content)

	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}

	return pdfReader.NumPage(), nil
}
