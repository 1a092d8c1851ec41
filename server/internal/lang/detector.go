package lang

import (
	"log"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"

	"bella/server/internal/model"
)

// Detector 把输入文本归类到语言代码。
type Detector interface {
	Detect(text string) model.Language
}

// WhatlangDetector 基于 whatlanggo 的三元组统计做语言识别。
// 过短、置信度不足或无法映射到 ISO 639-1 的结果一律按中轴语言处理。
type WhatlangDetector struct {
	minLength     int
	minConfidence float64
}

// NewDetector 创建检测器
func NewDetector(minLength int, minConfidence float64) *WhatlangDetector {
	if minLength <= 0 {
		minLength = 3
	}
	return &WhatlangDetector{minLength: minLength, minConfidence: minConfidence}
}

// Detect 返回检测结果，永不失败。
func (d *WhatlangDetector) Detect(text string) (out model.Language) {
	out = model.PivotLanguage
	if utf8.RuneCountInString(text) < d.minLength {
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Lang] detection panicked, falling back to pivot: %v", r)
			out = model.PivotLanguage
		}
	}()

	info := whatlanggo.Detect(text)
	if info.Confidence < d.minConfidence {
		return model.PivotLanguage
	}
	code, tag := info.Lang.Iso6393(), info.Lang.Iso6391()
	if code == "" || tag == "" {
		return model.PivotLanguage
	}
	return model.Language{Code: code, Tag: tag}
}

// Fixed 总是返回同一语言，用于关闭检测或测试。
type Fixed model.Language

func (f Fixed) Detect(string) model.Language { return model.Language(f) }
