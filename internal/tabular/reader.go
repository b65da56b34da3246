// Package tabular reads uploaded spreadsheets into raw tables and renders prediction results.
package tabular

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/clusterizer/internal/models"
)

// ErrUnsupportedFormat is returned for file extensions other than .csv and .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// SupportedExtensions lists the input extensions Read accepts.
var SupportedExtensions = []string{".csv", ".xlsx"}

// Reader parses spreadsheet files.
type Reader struct{}

// NewReader returns a new Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read parses the file at path according to its extension.
func (r *Reader) Read(path string) (*models.RawTable, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return r.ReadBytes(content, filepath.Ext(path))
}

// ReadBytes parses content based on the given extension. ext should include the leading dot.
// The first row is the header; header names are trimmed.
func (r *Reader) ReadBytes(content []byte, ext string) (*models.RawTable, error) {
	var (
		t   *models.RawTable
		err error
	)
	switch strings.ToLower(ext) {
	case ".csv":
		t, err = readCSV(content)
	case ".xlsx":
		t, err = readExcel(content)
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions, ", "))
	}
	if err != nil {
		return nil, err
	}
	for i, c := range t.Columns {
		t.Columns[i] = strings.TrimSpace(c)
	}
	return t, nil
}

// IsSupported reports whether path has a readable extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
