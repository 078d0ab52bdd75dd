package fs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var spaceRun = regexp.MustCompile(`[ \x{00A0}]{2,}`)

// NormalizeText unifies line endings, turns tabs into spaces, collapses
// runs of spaces and no-break spaces, and trims.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\t", " ")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ReadDocumentFile extracts text from a PDF or reads a UTF-8 text file,
// then normalizes it.
func ReadDocumentFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := ReadPDF(path)
		if err != nil {
			return "", err
		}
		return NormalizeText(text), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return NormalizeText(string(data)), nil
}

// ReadPDF returns the plain text of every page.
func ReadPDF(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}
