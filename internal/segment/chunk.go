package segment

import (
	"strings"
	"unicode/utf8"
)

// sentenceEnders 句末标点，中英文都识别。
var sentenceEnders = []rune{'。', '！', '？', '；', '.', '!', '?', '\n'}

// Chunk 把超过 maxChars 个字符的 Text 片段按句拆成多个 Text 片段，其余片段原样保留，顺序不变。
// 云端 TTS 对单次文本长度有限制（腾讯云中文约 150 字），maxChars <= 0 表示不拆分。
func Chunk(segments []Segment, maxChars int) []Segment {
	if maxChars <= 0 {
		return segments
	}
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.Kind != Text || s.Blank() || utf8.RuneCountInString(s.Text) <= maxChars {
			out = append(out, s)
			continue
		}
		for _, c := range mergeSentences(s.Text, maxChars) {
			out = append(out, Segment{Kind: Text, Text: c})
		}
	}
	return out
}

// extractSentence 尝试从文本中提取第一个完整句子。
func extractSentence(text string) (string, string, bool) {
	for i, r := range text {
		for _, ender := range sentenceEnders {
			if r == ender {
				splitAt := i + utf8.RuneLen(r)
				return text[:splitAt], text[splitAt:], true
			}
		}
	}
	return "", text, false
}

// mergeSentences 将文本按句分割后合并为大段，每段不超过 maxChars 个字符。
// 单句本身超长时保留为一段，由后端自行处理。
func mergeSentences(text string, maxChars int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentLen = 0
	}
	add := func(s string) {
		n := utf8.RuneCountInString(s)
		// 段内句子之间补一个空格
		if currentLen > 0 && currentLen+1+n > maxChars {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(s)
		currentLen += n
	}

	remaining := text
	for {
		sentence, rest, found := extractSentence(remaining)
		if !found {
			if r := strings.TrimSpace(remaining); r != "" {
				add(r)
			}
			break
		}
		remaining = rest
		if sentence = strings.TrimSpace(sentence); sentence != "" {
			add(sentence)
		}
	}
	flush()
	return chunks
}
