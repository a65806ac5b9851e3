package mail

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text", "already plain text", "already plain text"},
		{"strips tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"br becomes newline", "line one<br>line two", "line one\nline two"},
		{"entities", "Ben &amp; Jerry &lt;3", "Ben & Jerry <3"},
		{"collapses spaces", "too   many\t\tspaces", "too many spaces"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeDropsScriptAndStyle(t *testing.T) {
	in := `<html><head><title>x</title></head><body>
<style>.a { color: red; }</style>
<script>alert("hi")</script>
<p>Visible content</p>
</body></html>`
	got := Normalize(in)
	if strings.Contains(got, "alert") || strings.Contains(got, "color") {
		t.Errorf("script/style leaked into output: %q", got)
	}
	if !strings.Contains(got, "Visible content") {
		t.Errorf("body text missing: %q", got)
	}
}

func TestNormalizeBlockBoundaries(t *testing.T) {
	in := "<div>first</div><div>second</div>"
	got := Normalize(in)
	if got != "first\n\nsecond" {
		t.Errorf("Normalize() = %q, want paragraph break between blocks", got)
	}
}

func TestNormalizeCollapsesBlankRuns(t *testing.T) {
	in := "a\n\n\n\n\nb"
	if got := Normalize(in); got != "a\n\nb" {
		t.Errorf("Normalize() = %q, want at most one blank line", got)
	}
}
