package analysis

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter 统计送入模型的正文 Token 数，用于日志与追踪属性。
// tiktoken 编码数据可能需要首次下载，初始化失败时退回 len/4 估算。
type tokenCounter struct {
	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

func (t *tokenCounter) count(text string) int {
	t.once.Do(func() {
		t.enc, t.initErr = tiktoken.GetEncoding("cl100k_base")
	})
	if t.initErr != nil || t.enc == nil {
		// 粗略估算：平均每 4 个字节一个 token
		return len(text) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}
