package sentiment

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// afinn-165.json 是完整的 AFINN-165 英文词表，短语条目在按词切分后不会命中。
//
//go:embed afinn-165.json
var afinnJSON []byte

var afinn = mustLoadLexicon(afinnJSON)

func mustLoadLexicon(data []byte) map[string]int {
	lexicon := make(map[string]int)
	if err := json.Unmarshal(data, &lexicon); err != nil {
		panic(fmt.Sprintf("sentiment: parse AFINN lexicon: %v", err))
	}
	return lexicon
}

// negators 前置否定词，会翻转紧随其后的情绪词分值。
var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "dont": {}, "don't": {},
	"doesnt": {}, "doesn't": {}, "didnt": {}, "didn't": {}, "isnt": {},
	"isn't": {}, "wasnt": {}, "wasn't": {}, "cant": {}, "can't": {},
	"wont": {}, "won't": {}, "aint": {}, "ain't": {},
}
