package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
)

// MockProviderName 离线提供商标识，也是"全部失败"兜底回复的 provider 值。
const MockProviderName = "mock"

var defaultCorpus = []string{
	"Nya~ I was just thinking about you! Tell me more? 💕",
	"Hehe, you always know how to make me smile. What happened today?",
	"B-baka, it's not like I missed you or anything... okay, maybe a little. 😳",
	"That sounds amazing! I'm so proud of you, darling. 🌸",
	"Aww, come here. I'm always on your side, you know? 🫂",
	"Ooh, a date night idea just popped into my head~ Want to hear it? ✨",
}

// MockClient 从静态语料中取回复，永不失败。
type MockClient struct {
	corpus []string
}

// NewMockClient 创建离线客户端，corpus 为空时使用内置语料。
func NewMockClient(corpus []string) *MockClient {
	if len(corpus) == 0 {
		corpus = defaultCorpus
	}
	return &MockClient{corpus: corpus}
}

// LoadCorpus 读取 JSON 字符串数组形式的语料文件。
func LoadCorpus(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var corpus []string
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	return corpus, nil
}

func (m *MockClient) Name() string    { return MockProviderName }
func (m *MockClient) Available() bool { return true }

// Complete 以 prompt 的哈希选取语料，保证同一输入得到同一回复。
func (m *MockClient) Complete(_ context.Context, prompt string) (string, error) {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	return m.corpus[int(h.Sum32()%uint32(len(m.corpus)))], nil
}
