package chunking

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ExtractPDFPages pulls plain text out of a PDF, one string per page.
// Pages with no extractable text come back empty and are skipped by the
// caller.
func ExtractPDFPages(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}
	total := r.NumPage()
	out := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			out = append(out, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			out = append(out, "")
			continue
		}
		out = append(out, CollapseWhitespace(text))
	}
	return out, nil
}

// ExtractPDFText flattens the whole document into one string.
func ExtractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return CollapseWhitespace(string(b)), nil
}

var htmlTagRe = regexp.MustCompile(`(?s)<[^>]*>`)

// StripHTML removes tags and common entities from markup that arrives
// labeled as text.
func StripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	return CollapseWhitespace(s)
}

func CollapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// LooksLikeHTML sniffs for markup so mislabeled text attachments still
// extract cleanly.
func LooksLikeHTML(b []byte) bool {
	head := strings.ToLower(string(b[:min(len(b), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
