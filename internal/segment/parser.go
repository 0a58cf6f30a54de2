package segment

import (
	"errors"
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Ellipsis 省略号标记，解析为随机时长的停顿。
const Ellipsis = "..."

// Parser 将带行内标记的文本切分为有序片段。
// 可被多个请求并发使用。
type Parser struct {
	re       *regexp.Regexp
	pauseMin int // ms
	pauseMax int // ms

	mu  sync.Mutex
	rng *rand.Rand
}

// Option 配置 Parser。
type Option func(*Parser)

// WithRand 指定停顿时长的随机源，测试中用固定种子。
func WithRand(r *rand.Rand) Option {
	return func(p *Parser) { p.rng = r }
}

// NewParser 根据音效标记列表和停顿时长范围（毫秒，闭区间）创建解析器。
// 省略号总是被识别，无需出现在 markers 中。
func NewParser(markers []string, pauseMinMs, pauseMaxMs int, opts ...Option) (*Parser, error) {
	if pauseMinMs <= 0 || pauseMinMs > pauseMaxMs {
		return nil, &ParseError{Err: errors.New("停顿时长范围无效")}
	}

	seen := map[string]bool{Ellipsis: true}
	literals := []string{Ellipsis}
	for _, m := range markers {
		if m == "" {
			return nil, &ParseError{Marker: m, Err: errors.New("标记不能为空")}
		}
		if strings.TrimSpace(m) != m {
			return nil, &ParseError{Marker: m, Err: errors.New("标记两端不能有空白")}
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		literals = append(literals, m)
	}

	// 同一起点上长标记优先：Go 的正则按备选项顺序匹配，先按长度降序排列。
	sort.SliceStable(literals, func(i, j int) bool {
		return len(literals[i]) > len(literals[j])
	})
	quoted := make([]string, len(literals))
	for i, lit := range literals {
		quoted[i] = regexp.QuoteMeta(lit)
	}

	re, err := regexp.Compile(strings.Join(quoted, "|"))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	p := &Parser{
		re:       re,
		pauseMin: pauseMinMs,
		pauseMax: pauseMaxMs,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Parse 单次从左到右扫描 text，返回覆盖全文、互不重叠的片段序列。
// 标记之间的原文（包括纯空白）成为 Text 片段，零长度的间隙不产生片段。
func (p *Parser) Parse(text string) []Segment {
	var segments []Segment
	last := 0
	for _, loc := range p.re.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Kind: Text, Text: text[last:loc[0]]})
		}
		marker := text[loc[0]:loc[1]]
		if marker == Ellipsis {
			segments = append(segments, Segment{Kind: Pause, Pause: p.pauseDuration()})
		} else {
			segments = append(segments, Segment{Kind: Sound, Marker: marker})
		}
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Kind: Text, Text: text[last:]})
	}
	return segments
}

// pauseDuration 每次独立地在 [pauseMin, pauseMax] 内均匀取值。
func (p *Parser) pauseDuration() time.Duration {
	span := p.pauseMax - p.pauseMin + 1
	var n int
	if p.rng != nil {
		p.mu.Lock()
		n = p.rng.IntN(span)
		p.mu.Unlock()
	} else {
		n = rand.IntN(span)
	}
	return time.Duration(p.pauseMin+n) * time.Millisecond
}

// HasSpeech 报告片段中是否存在需要合成的非空白文字。
func HasSpeech(segments []Segment) bool {
	for _, s := range segments {
		if s.Kind == Text && !s.Blank() {
			return true
		}
	}
	return false
}
