package segment

import (
	"fmt"
	"strings"
	"time"
)

// Kind 片段类型。
type Kind int

const (
	// Text 需要语音合成的文字。
	Text Kind = iota
	// Pause 一段静音。
	Pause
	// Sound 预录音效标记。
	Sound
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Pause:
		return "pause"
	case Sound:
		return "sound"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Segment 是拼接的最小单元，按原文从左到右的顺序产生。
type Segment struct {
	Kind Kind
	// Text 为 Text 片段的原文。
	Text string
	// Pause 为 Pause 片段的静音时长。
	Pause time.Duration
	// Marker 为 Sound 片段的标记原文，如 "*coughs*"。
	Marker string
}

// Blank 报告 Text 片段是否只有空白，空白片段不会送去合成。
func (s Segment) Blank() bool {
	return s.Kind == Text && strings.TrimSpace(s.Text) == ""
}

func (s Segment) String() string {
	switch s.Kind {
	case Text:
		return fmt.Sprintf("Text:%q", s.Text)
	case Pause:
		return fmt.Sprintf("Pause:%dms", s.Pause.Milliseconds())
	case Sound:
		return fmt.Sprintf("Sound:%q", s.Marker)
	default:
		return s.Kind.String()
	}
}

// ParseError 标记表本身无效（空标记、无法编译）时返回。
type ParseError struct {
	Marker string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Marker != "" {
		return fmt.Sprintf("[segment] 标记 %q 无效: %v", e.Marker, e.Err)
	}
	return fmt.Sprintf("[segment] 标记表无效: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
