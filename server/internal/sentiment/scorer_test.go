package sentiment

import "testing"

func TestAFINNScore(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"I love chatting with you", 3},
		{"I am sad and lonely", -4},
		{"This is not good", -3},
		{"Cats are stupid.", -2},
		{"", 0},
		{"GREAT! Amazing!!", 7},
		{"I don't hate you", 3},
	}
	var s Scorer = AFINN{}
	for _, c := range cases {
		if got := s.Score(c.text); got != c.want {
			t.Fatalf("score(%q): expected %v, got %v", c.text, c.want, got)
		}
	}
}

// TestAFINNDeterministic 验证相同输入多次打分结果一致。
func TestAFINNDeterministic(t *testing.T) {
	text := "what a wonderful, terrible, lovely day"
	first := AFINN{}.Score(text)
	for i := 0; i < 10; i++ {
		if got := (AFINN{}).Score(text); got != first {
			t.Fatalf("non-deterministic score: %v vs %v", first, got)
		}
	}
}

// TestAFINNFullLexicon 验证常见的负面词都在词表里。
// 场景：强烈负面的倾诉应低于 caring 阈值（-2），不能被当成中性。
func TestAFINNFullLexicon(t *testing.T) {
	if len(afinn) < 3000 {
		t.Fatalf("lexicon too small: %d entries", len(afinn))
	}
	cases := []struct {
		text string
		want float64
	}{
		{"I want to die, everything is pointless and hopeless", -6},
		{"this is a catastrophe, I'm furious", -6},
		{"feeling heartbroken and miserable", -5},
		{"you are so thoughtful, I'm thrilled", 7},
	}
	for _, c := range cases {
		if got := (AFINN{}).Score(c.text); got != c.want {
			t.Fatalf("score(%q): expected %v, got %v", c.text, c.want, got)
		}
	}
}
