package sentiment

import (
	"strings"
	"unicode"
)

// Scorer 把文本映射为实数情感分，纯函数、确定性。
type Scorer interface {
	Score(text string) float64
}

// AFINN 词表求和打分器，前一个词是否定词时翻转符号。
type AFINN struct{}

// Score 返回所有命中词的分值之和。
func (AFINN) Score(text string) float64 {
	tokens := tokenize(text)
	total := 0
	for i, tok := range tokens {
		v, ok := afinn[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if _, neg := negators[tokens[i-1]]; neg {
				v = -v
			}
		}
		total += v
	}
	return float64(total)
}

// tokenize 小写化并按非字母（保留撇号）切词。
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}
