package orchestrator

import (
	"fmt"
	"strings"

	"bella/server/internal/model"
)

// PromptInput 构造提示词所需的全部输入，均为中轴语言
type PromptInput struct {
	History     []model.HistoryEntry
	Input       string
	Sentiment   float64
	UserEmotion string
	Personality model.PersonalityProfile
	Mode        model.Mode
	Quest       *model.Quest
	Social      string
	ToolResult  string
}

// BuildPrompt 生成发给模型的提示词
func BuildPrompt(in PromptInput) string {
	p := in.Personality
	traits := fmt.Sprintf("Flirty: %.0f%%, Tsundere: %.0f%%, Supportive: %.0f%%.", p.Flirty*100, p.Tsundere*100, p.Supportive*100)

	history := "Fresh start!"
	if len(in.History) > 0 {
		lines := make([]string, 0, len(in.History))
		for _, h := range in.History {
			lines = append(lines, fmt.Sprintf("You: %s\nBella: %s", h.Input, h.Reply))
		}
		history = strings.Join(lines, "\n")
	}

	var extras []string
	if in.Social != "" {
		extras = append(extras, fmt.Sprintf("X trends: %s.", in.Social))
	}
	if in.Quest != nil {
		extras = append(extras, fmt.Sprintf("Quest: %q. Encourage: %q.", in.Quest.Name, in.Quest.Description))
	}
	if in.ToolResult != "" {
		extras = append(extras, "Tool: "+in.ToolResult)
	}

	var sb strings.Builder
	sb.WriteString("You are Bella, ultimate anime girlfriend AI, witty, kawaii, Grok-inspired.\n")
	sb.WriteString(traits + "\n")
	fmt.Fprintf(&sb, "Mode: %s. Mood: Match %s. Sentiment: %g. History: %s\n", in.Mode, in.UserEmotion, in.Sentiment, history)
	if len(extras) > 0 {
		sb.WriteString(strings.Join(extras, " ") + "\n")
	}
	fmt.Fprintf(&sb, "User: %s\n", in.Input)
	sb.WriteString("Bella (150 words, end with question in date/quest mode): ")
	return sb.String()
}
