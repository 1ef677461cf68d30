package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xichengpro/SourceMind/types"
)

func TestTranslation(t *testing.T) {
	msgs := Translation("Attention is all you need.")
	require.Len(t, msgs, 1)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Attention is all you need.")
	assert.Contains(t, msgs[0].Content, "中文翻译")
}

func TestFullTranslation_CarriesGlossary(t *testing.T) {
	msgs := FullTranslation("| Transformer | 变换器 |", "The Transformer architecture...")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "| Transformer | 变换器 |")
	assert.Contains(t, msgs[0].Content, "The Transformer architecture...")
}

func TestRelatedWork(t *testing.T) {
	msgs := RelatedWork("BERT", "result 1\nresult 2")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, `论文 "BERT"`)
	assert.Contains(t, msgs[0].Content, "result 1")
}

func TestReport_AllSections(t *testing.T) {
	msgs := Report(ReportInput{
		Source:      "arxiv:1706.03762",
		Translation: "翻译内容",
		KeyPoints:   "要点内容",
		Experiments: "实验内容",
		Terms:       "术语内容",
		RelatedWork: "相关工作内容",
	})
	require.Len(t, msgs, 1)
	body := msgs[0].Content
	assert.Contains(t, body, "arxiv:1706.03762 深度研读报告")
	assert.Contains(t, body, "翻译内容")
	assert.Contains(t, body, "要点内容")
	assert.Contains(t, body, "实验内容")
	assert.Contains(t, body, "术语内容")
	assert.Contains(t, body, "相关工作内容")
	assert.Contains(t, body, "附录：关键术语速查")
}

func TestVLMPage(t *testing.T) {
	msgs := VLMPage("aGVsbG8=")
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Equal(t, types.RoleUser, msgs[1].Role)
	require.Len(t, msgs[1].Images, 1)
	assert.Equal(t, "base64", msgs[1].Images[0].Type)
	assert.Equal(t, "aGVsbG8=", msgs[1].Images[0].Data)
	assert.Contains(t, msgs[1].Content, "LaTeX")
}

func TestDiscussionRoles(t *testing.T) {
	t.Run("moderator", func(t *testing.T) {
		msgs := Moderator("GPT-4 Technical Report", "请开场", "开始")
		require.Len(t, msgs, 2)
		assert.Contains(t, msgs[0].Content, "《GPT-4 Technical Report》")
		assert.Contains(t, msgs[0].Content, "请开场")
	})

	t.Run("critic gets report", func(t *testing.T) {
		msgs := Critic("这是报告", "请提问")
		require.Len(t, msgs, 2)
		assert.Contains(t, msgs[0].Content, "这是报告")
		assert.Equal(t, "请提问", msgs[1].Content)
	})

	t.Run("practitioner gets report", func(t *testing.T) {
		msgs := Practitioner("这是报告", "请提问")
		assert.Contains(t, msgs[0].Content, "这是报告")
	})

	t.Run("author gets full document", func(t *testing.T) {
		msgs := Author("论文全文", "请回应质疑")
		assert.Contains(t, msgs[0].Content, "论文全文")
	})

	t.Run("simple author for dialogue", func(t *testing.T) {
		msgs := SimpleAuthor("论文全文", "这篇论文的贡献是什么？")
		assert.Contains(t, msgs[0].Content, "论文全文")
		assert.Equal(t, "这篇论文的贡献是什么？", msgs[1].Content)
	})

	t.Run("reader", func(t *testing.T) {
		msgs := Reader("报告内容")
		require.Len(t, msgs, 2)
		assert.Contains(t, msgs[0].Content, "初学者")
	})
}

func TestQA(t *testing.T) {
	msgs := QA("论文片段", "实验用了哪些数据集？")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "论文片段")
	assert.Contains(t, msgs[0].Content, "用户提问：实验用了哪些数据集？")
	assert.Contains(t, msgs[0].Content, "如果论文中没有提到，请明确告知")
}
