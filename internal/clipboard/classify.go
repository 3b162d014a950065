package clipboard

import (
	"net/url"
	"strings"
)

// ContentType is the semantic category assigned to a capture. Exactly one
// type is decided at capture time and never changes afterwards.
type ContentType string

const (
	TypeText  ContentType = "text"
	TypeCode  ContentType = "code"
	TypeLink  ContentType = "link"
	TypeColor ContentType = "color"
	TypeImage ContentType = "image"
	TypeFile  ContentType = "file"
)

var linkSchemePrefixes = []string{"ftp://", "mailto:", "tel:", "sms:"}

var codeKeywords = []string{"func ", "class ", "import ", "let ", "var ", "def ", "function "}

// Classify maps plain text to a content type. The decision order is
// load-bearing: link checks run before color so that short strings that
// resemble truncated domains are not misread, and the keyword scan is a
// coarse heuristic that tolerates false negatives.
func Classify(text string) ContentType {
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		return TypeLink
	}
	for _, prefix := range linkSchemePrefixes {
		if strings.HasPrefix(text, prefix) {
			return TypeLink
		}
	}
	if looksLikeBareDomain(text) {
		return TypeLink
	}
	if parsed, err := url.Parse(text); err == nil &&
		parsed.Scheme != "" && parsed.Scheme != "file" && parsed.Host != "" {
		return TypeLink
	}
	if isHexColor(text) {
		return TypeColor
	}
	for _, keyword := range codeKeywords {
		if strings.Contains(text, keyword) {
			return TypeCode
		}
	}
	return TypeText
}

// looksLikeBareDomain accepts strings such as "www.example.com": a www.
// prefix, no whitespace, and at least one further dot-separated label that
// is non-empty and not purely numeric.
func looksLikeBareDomain(text string) bool {
	if !strings.HasPrefix(text, "www.") {
		return false
	}
	if strings.ContainsAny(text, " \t\n\r") {
		return false
	}
	labels := strings.Split(strings.TrimPrefix(text, "www."), ".")
	if len(labels) < 2 {
		return false
	}
	first := labels[0]
	if first == "" || isAllDigits(first) {
		return false
	}
	for _, label := range labels[1:] {
		if label == "" {
			return false
		}
	}
	return true
}

func isAllDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHexColor(text string) bool {
	if len(text) != 7 || text[0] != '#' {
		return false
	}
	for i := 1; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
