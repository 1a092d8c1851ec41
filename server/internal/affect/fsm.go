package affect

import "bella/server/internal/model"

// Trigger 是情绪迁移的输入信号。
type Trigger struct {
	Sentiment   float64
	UserEmotion string
}

// Transition 是迁移表中的一行：Match 命中即迁移到 Next。
type Transition struct {
	Name  string
	Match func(Trigger) bool
	Next  model.Emotion
}

// VeryNegative 低于该情感分视为强烈负面。
const VeryNegative = -2

// EmotionTable 按优先级排列，首个命中的行生效；最后一行兜底，保证迁移是全函数。
var EmotionTable = []Transition{
	{
		Name: "sad_or_very_negative",
		Match: func(t Trigger) bool {
			return t.UserEmotion == model.UserEmotionSad || t.Sentiment < VeryNegative
		},
		Next: model.EmotionCaring,
	},
	{
		Name:  "excited",
		Match: func(t Trigger) bool { return t.UserEmotion == model.UserEmotionExcited },
		Next:  model.EmotionPlayful,
	},
	{
		Name:  "default",
		Match: func(Trigger) bool { return true },
		Next:  model.EmotionHappy,
	},
}

// NextEmotion 查表得到下一情绪，同时返回命中的行名。
func NextEmotion(t Trigger) (model.Emotion, string) {
	for _, row := range EmotionTable {
		if row.Match(t) {
			return row.Next, row.Name
		}
	}
	return model.EmotionHappy, "default"
}
