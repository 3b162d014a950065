package clipboard

import "testing"

func TestClassifyKnownShapes(t *testing.T) {
	cases := []struct {
		input string
		want  ContentType
	}{
		{"https://example.com", TypeLink},
		{"http://example.com/path?q=1", TypeLink},
		{"ftp://host/file", TypeLink},
		{"mailto:someone@example.com", TypeLink},
		{"tel:+15551234567", TypeLink},
		{"sms:+15551234567", TypeLink},
		{"www.example.com", TypeLink},
		{"www.123.456", TypeText},
		{"www.example com", TypeText},
		{"custom://host/resource", TypeLink},
		{"file:///tmp/report.pdf", TypeText},
		{"#1A2B3C", TypeColor},
		{"#1a2b3c", TypeColor},
		{"#1A2B3", TypeText},
		{"#1A2B3G", TypeText},
		{"func foo() {}", TypeCode},
		{"import \"fmt\"", TypeCode},
		{"def greet():", TypeCode},
		{"hello world", TypeText},
		{"", TypeText},
	}
	for _, tc := range cases {
		if got := Classify(tc.input); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	inputs := []string{"https://example.com", "#1A2B3C", "func main() {}", "plain"}
	for _, input := range inputs {
		first := Classify(input)
		second := Classify(input)
		if first != second {
			t.Fatalf("Classify(%q) not stable: %q then %q", input, first, second)
		}
	}
}

func TestClassifyColorRunsAfterLink(t *testing.T) {
	// A seven-character string with a scheme must stay a link even though
	// the color check would otherwise never see it.
	if got := Classify("#abcdef"); got != TypeColor {
		t.Fatalf("expected color, got %q", got)
	}
	if got := Classify("https:/"); got == TypeColor {
		t.Fatalf("seven character non-color misclassified as color")
	}
}

func TestContentHashStability(t *testing.T) {
	first := ContentHash("  hello  ", nil)
	second := ContentHash("hello", nil)
	if first != second {
		t.Fatalf("hash should normalize surrounding whitespace")
	}
	withImage := ContentHash("", []byte{1, 2, 3})
	if withImage == first {
		t.Fatalf("image bytes must contribute to the digest")
	}
	if withImage != ContentHash("", []byte{1, 2, 3}) {
		t.Fatalf("hash not deterministic for image bytes")
	}
}
