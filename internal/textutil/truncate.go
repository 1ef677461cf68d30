// Package textutil 提供文本截断与分块的小工具。
package textutil

// Truncate 按字符数截断字符串，不会切断 UTF-8 字符。
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// TruncateWithEllipsis 截断并在结尾追加省略号。
func TruncateWithEllipsis(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return Truncate(s, n) + "..."
}

// SplitChunks 把文本按 size 个字符分块，相邻块之间保留 overlap 个字符的重叠。
// size 必须大于 overlap，否则返回整个文本作为单块。
func SplitChunks(s string, size, overlap int) []string {
	runes := []rune(s)
	if size <= 0 || overlap >= size || len(runes) <= size {
		return []string{s}
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
