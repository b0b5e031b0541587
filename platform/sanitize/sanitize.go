// Package sanitize cleans free text submitted by recruiters before it is
// stored or pushed to the CRM.
package sanitize

import (
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Text drops markup, keeps the text content, and collapses whitespace runs
// to single spaces. Line breaks survive so multi-line notes stay readable.
func Text(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(norm.NFC.String(s))
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return ""
			}
			return collapse(norm.NFC.String(b.String()))
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawText(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawText(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// TextPtr applies Text to an optional field.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := Text(*s)
	return &out
}

func isRawText(tag []byte) bool {
	switch string(tag) {
	case "script", "style":
		return true
	}
	return false
}

func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '\n':
			// Trim trailing blanks on the previous line.
			out := strings.TrimRight(b.String(), " ")
			b.Reset()
			b.WriteString(out)
			b.WriteRune('\n')
			space = false
		case unicode.IsSpace(r):
			if !space && !strings.HasSuffix(b.String(), "\n") {
				b.WriteRune(' ')
			}
			space = true
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}
