package affect

import (
	"log"
	"math"
	"regexp"

	"bella/server/internal/model"
)

const (
	happyBonus = 2.0
	focusBonus = 5.0
	minGain    = 1.0
)

// Outcome 一轮对话结束后用于更新状态的输入。
type Outcome struct {
	Sentiment   float64
	UserEmotion string
	Mode        model.Mode
	// Quest 为本轮激活的任务，nil 表示无
	Quest *model.Quest
	// PivotInput 是中轴语言的用户输入，用于任务完成判定
	PivotInput string
}

// Result 状态更新结果。
type Result struct {
	State          model.AffectState
	Gain           float64
	Rule           string
	CompletedQuest *model.Quest
}

// Apply 是纯函数：先加好感，再迁移情绪，最后判定任务完成。
func Apply(state model.AffectState, o Outcome) Result {
	gain := AffinityGain(o)
	next := state
	next.Affinity = math.Max(0, state.Affinity) + gain

	emotion, rule := NextEmotion(Trigger{Sentiment: o.Sentiment, UserEmotion: o.UserEmotion})
	next.Emotion = emotion

	res := Result{State: next, Gain: gain, Rule: rule}
	if o.Quest != nil && !o.Quest.Completed && QuestMatches(*o.Quest, o.PivotInput) {
		done := *o.Quest
		done.Completed = true
		res.CompletedQuest = &done
	}
	return res
}

// AffinityGain 计算本轮好感增量，恒 >= 1。
func AffinityGain(o Outcome) float64 {
	bonus := 0.0
	if o.UserEmotion == model.UserEmotionHappy {
		bonus = happyBonus
	}
	gain := math.Max(minGain, o.Sentiment/10+bonus)
	if o.Mode == model.ModeDate || o.Quest != nil {
		gain += focusBonus
	}
	return gain
}

// QuestMatches 判定输入是否满足任务完成条件。
func QuestMatches(q model.Quest, input string) bool {
	pattern := q.Pattern
	if pattern == "" {
		pattern = model.DefaultQuestPattern
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		log.Printf("[Affect] invalid quest pattern for quest %d: %v", q.ID, err)
		return false
	}
	return re.MatchString(input)
}
