package character

import (
	"regexp"

	"bella/server/internal/model"
)

var (
	tsunderePattern   = regexp.MustCompile(`(?i)sassy|tsundere|cyberpunk`)
	flirtyPattern     = regexp.MustCompile(`(?i)sweet|flirty|idol`)
	supportivePattern = regexp.MustCompile(`(?i)caring|supportive|gentle`)
)

// ParseTraits 从描述中提取人设权重。未命中的维度归零，整体替换旧人设。
func ParseTraits(prompt string) model.PersonalityProfile {
	var p model.PersonalityProfile
	if tsunderePattern.MatchString(prompt) {
		p.Tsundere = 0.8
	}
	if flirtyPattern.MatchString(prompt) {
		p.Flirty = 0.8
	}
	if supportivePattern.MatchString(prompt) {
		p.Supportive = 1.0
	}
	return p
}
