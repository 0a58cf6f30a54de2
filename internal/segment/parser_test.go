package segment

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"
)

func newTestParser(t *testing.T, markers ...string) *Parser {
	t.Helper()
	p, err := NewParser(markers, 400, 600, WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}
	return p
}

// reconstruct 把片段按类型还原为原文，用于验证覆盖全文、无缝隙。
func reconstruct(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		switch s.Kind {
		case Text:
			b.WriteString(s.Text)
		case Pause:
			b.WriteString(Ellipsis)
		case Sound:
			b.WriteString(s.Marker)
		}
	}
	return b.String()
}

func TestParse_Scenario(t *testing.T) {
	p := newTestParser(t, "*coughs*")
	segments := p.Parse("Hello... *coughs* world")

	var kinds []Kind
	var nonBlank []Segment
	for _, s := range segments {
		kinds = append(kinds, s.Kind)
		if !s.Blank() {
			nonBlank = append(nonBlank, s)
		}
	}

	if len(nonBlank) != 4 {
		t.Fatalf("expected 4 non-blank segments, got %d: %v", len(nonBlank), segments)
	}
	if nonBlank[0].Kind != Text || nonBlank[0].Text != "Hello" {
		t.Errorf("segment 0 = %v, want Text:\"Hello\"", nonBlank[0])
	}
	if nonBlank[1].Kind != Pause {
		t.Errorf("segment 1 = %v, want pause", nonBlank[1])
	}
	if d := nonBlank[1].Pause; d < 400*time.Millisecond || d > 600*time.Millisecond {
		t.Errorf("pause duration %v outside [400ms, 600ms]", d)
	}
	if nonBlank[2].Kind != Sound || nonBlank[2].Marker != "*coughs*" {
		t.Errorf("segment 2 = %v, want Sound:\"*coughs*\"", nonBlank[2])
	}
	if nonBlank[3].Kind != Text || nonBlank[3].Text != " world" {
		t.Errorf("segment 3 = %v, want Text:\" world\"", nonBlank[3])
	}

	// 省略号与音效之间的空格保留为空白 Text 片段
	want := []Kind{Text, Pause, Text, Sound, Text}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
	if !segments[2].Blank() {
		t.Errorf("segment %v should be blank", segments[2])
	}
}

func TestParse_ReconstructsInput(t *testing.T) {
	p := newTestParser(t, "*coughs*", "*sighs*", "[laugh]")
	inputs := []string{
		"",
		"plain text",
		"...",
		"......",
		"*coughs**sighs*",
		"a...b...c",
		"  leading and trailing  ",
		"[laugh] mixed...*sighs* 中文文本... end",
		"*cough* is not a marker",
		"..",
	}
	for _, in := range inputs {
		got := reconstruct(p.Parse(in))
		if got != in {
			t.Errorf("reconstruct(Parse(%q)) = %q", in, got)
		}
	}
}

func TestParse_NoZeroLengthText(t *testing.T) {
	p := newTestParser(t, "*coughs*")
	for _, s := range p.Parse("*coughs*...*coughs*") {
		if s.Kind == Text && s.Text == "" {
			t.Fatalf("unexpected zero-length text segment in %v", s)
		}
	}
}

func TestParse_LongestMarkerAtSamePosition(t *testing.T) {
	p := newTestParser(t, "*cough*", "*cough*s*")
	segments := p.Parse("x*cough*s*y")
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %v", segments)
	}
	if segments[1].Marker != "*cough*s*" {
		t.Errorf("expected longest marker, got %q", segments[1].Marker)
	}
}

func TestParse_LeftmostWins(t *testing.T) {
	// "ab" 与 "bc" 重叠时取最左边的匹配
	p := newTestParser(t, "ab", "bc")
	segments := p.Parse("abc")
	if len(segments) != 2 || segments[0].Marker != "ab" || segments[1].Text != "c" {
		t.Fatalf("unexpected segments: %v", segments)
	}
}

func TestParse_EllipsisIndependentDraws(t *testing.T) {
	p := newTestParser(t)
	seen := map[time.Duration]bool{}
	for _, s := range p.Parse(strings.Repeat("x...", 50)) {
		if s.Kind != Pause {
			continue
		}
		if s.Pause < 400*time.Millisecond || s.Pause > 600*time.Millisecond {
			t.Fatalf("pause %v outside range", s.Pause)
		}
		seen[s.Pause] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected independent random draws, got %d distinct durations", len(seen))
	}
}

func TestParse_MarkersAreLiteral(t *testing.T) {
	p := newTestParser(t, "(.*)")
	segments := p.Parse("a(.*)b and abc")
	if len(segments) != 3 || segments[1].Marker != "(.*)" {
		t.Fatalf("regex metacharacters should be literal, got %v", segments)
	}
}

func TestNewParser_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		markers []string
		min     int
		max     int
	}{
		{"empty marker", []string{"*coughs*", ""}, 400, 600},
		{"padded marker", []string{" *coughs*"}, 400, 600},
		{"inverted range", nil, 600, 400},
		{"zero min", nil, 0, 400},
	}
	for _, tt := range tests {
		_, err := NewParser(tt.markers, tt.min, tt.max)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%s: expected ParseError, got %v", tt.name, err)
		}
	}
}

func TestHasSpeech(t *testing.T) {
	if HasSpeech([]Segment{{Kind: Text, Text: "  "}, {Kind: Pause, Pause: time.Second}, {Kind: Sound, Marker: "x"}}) {
		t.Error("blank text, pause and sound should not count as speech")
	}
	if !HasSpeech([]Segment{{Kind: Text, Text: " hi "}}) {
		t.Error("non-blank text should count as speech")
	}
}
