package analysis

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xichengpro/SourceMind/config"
	"github.com/xichengpro/SourceMind/llm"
	"github.com/xichengpro/SourceMind/search"
	"github.com/xichengpro/SourceMind/types"
)

// fakeModel 把 Complete 委托给注入的函数。
type fakeModel struct {
	completeFn func(ctx context.Context, msgs []types.Message) (string, error)
}

func (f *fakeModel) Complete(ctx context.Context, msgs []types.Message) (string, error) {
	return f.completeFn(ctx, msgs)
}

func (f *fakeModel) Stream(ctx context.Context, msgs []types.Message) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}

// fakeModels 按任务类别返回假模型。
type fakeModels map[types.TaskCategory]llm.ChatModel

func (f fakeModels) ChatModel(cat types.TaskCategory) (llm.ChatModel, error) {
	m, ok := f[cat]
	if !ok {
		return nil, types.NewError(types.ErrConfiguration, "no model for "+string(cat))
	}
	return m, nil
}

// echoModel 原样返回最后一条用户消息，便于断言提示词内容。
func echoModel() *fakeModel {
	return &fakeModel{completeFn: func(_ context.Context, msgs []types.Message) (string, error) {
		return msgs[len(msgs)-1].Content, nil
	}}
}

func constModel(out string) *fakeModel {
	return &fakeModel{completeFn: func(context.Context, []types.Message) (string, error) {
		return out, nil
	}}
}

func failingModel(err error) *fakeModel {
	return &fakeModel{completeFn: func(context.Context, []types.Message) (string, error) {
		return "", err
	}}
}

// fakeSearcher 记录收到的标题并返回固定结果。
type fakeSearcher struct {
	result    string
	err       error
	lastTitle atomic.Value
}

func (f *fakeSearcher) HasProviders() bool { return true }

func (f *fakeSearcher) SearchPaper(_ context.Context, title string) (string, error) {
	f.lastTitle.Store(title)
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func testCfg() config.AnalysisConfig {
	return config.AnalysisConfig{
		MaxRetries:     1,
		MaxInputChars:  100000,
		ChunkSize:      4000,
		ChunkOverlap:   200,
		MaxConcurrency: 5,
	}
}

func allConst(out string) fakeModels {
	return fakeModels{
		types.TaskCore:        constModel(out),
		types.TaskTranslation: constModel(out),
		types.TaskRelatedWork: constModel(out),
	}
}

func TestRunAllNodesSucceed(t *testing.T) {
	models := fakeModels{
		types.TaskCore:        echoModel(),
		types.TaskTranslation: constModel("译文内容"),
		types.TaskRelatedWork: constModel("相关工作综述"),
	}
	searcher := &fakeSearcher{result: "### Tavily Search Results (English)\n- **url**: hit"}
	g := New(models, searcher, testCfg(), nil)

	st := NewState("2301.00001", "Arxiv", "2301.00001", "Paper X", "Paper X abstract...")
	require.NoError(t, g.Run(context.Background(), st, Options{}))

	assert.Equal(t, RunDone, st.Status())
	for _, name := range NodeOrder {
		r := st.Node(name)
		assert.Equal(t, NodeDone, r.Status, "node %s", name)
		assert.NotEmpty(t, r.Output, "node %s", name)
	}

	// 汇聚报告携带各小节的产出
	report := st.Report()
	assert.NotEmpty(t, report)
	assert.Contains(t, report, "译文内容")
	assert.Contains(t, report, "相关工作综述")
	assert.NotContains(t, report, sectionUnavailable)
	assert.Equal(t, "Paper X", searcher.lastTitle.Load())
}

func TestNodeFailureIndependence(t *testing.T) {
	boom := types.NewError(types.ErrInvalidRequest, "prompt rejected")
	models := fakeModels{
		types.TaskCore:        echoModel(),
		types.TaskTranslation: failingModel(boom),
		types.TaskRelatedWork: constModel("综述"),
	}
	g := New(models, &fakeSearcher{result: "hits"}, testCfg(), nil)

	st := NewState("p.pdf", "PDF", "p.pdf", "Paper X", "Paper X abstract...")
	require.NoError(t, g.Run(context.Background(), st, Options{}))

	assert.Equal(t, RunDonePartial, st.Status())
	assert.Equal(t, NodeFailed, st.Node(NodeTranslation).Status)
	assert.Contains(t, st.Node(NodeTranslation).Error, "prompt rejected")

	// 其余节点不受影响
	for _, name := range []NodeName{NodeKeyPoints, NodeExperiments, NodeTerms, NodeRelatedWork} {
		assert.Equal(t, NodeDone, st.Node(name).Status, "node %s", name)
	}

	// 失败小节在报告输入中标记为不可用
	assert.Contains(t, st.Report(), sectionUnavailable)
}

func TestRunAllNodesFail(t *testing.T) {
	boom := types.NewError(types.ErrUnauthorized, "invalid key")
	models := fakeModels{
		types.TaskCore:        failingModel(boom),
		types.TaskTranslation: failingModel(boom),
		types.TaskRelatedWork: failingModel(boom),
	}
	g := New(models, &fakeSearcher{err: boom}, testCfg(), nil)

	st := NewState("p.pdf", "PDF", "p.pdf", "Paper X", "text")
	err := g.Run(context.Background(), st, Options{})
	require.Error(t, err)

	assert.Equal(t, types.ErrNodeFailed, types.GetErrorCode(err))
	assert.Equal(t, RunFailed, st.Status())
	assert.Empty(t, st.Report())
}

func TestRelatedWorkRetryExhaustion(t *testing.T) {
	transient := types.NewError(types.ErrUpstreamError, "all search queries failed").WithRetryable(true)
	g := New(allConst("ok"), &fakeSearcher{err: transient}, testCfg(), nil)

	st := NewState("p.pdf", "PDF", "p.pdf", "Paper X", "Paper X abstract...")
	require.NoError(t, g.Run(context.Background(), st, Options{}))

	assert.Equal(t, RunDonePartial, st.Status())
	assert.Equal(t, NodeFailed, st.Node(NodeRelatedWork).Status)
	for _, name := range []NodeName{NodeTranslation, NodeKeyPoints, NodeExperiments, NodeTerms} {
		assert.Equal(t, NodeDone, st.Node(name).Status, "node %s", name)
	}
}

func TestReportFallbackAssembly(t *testing.T) {
	// 核心模型只在生成报告时失败，五个节点全部成功
	core := &fakeModel{completeFn: func(_ context.Context, msgs []types.Message) (string, error) {
		if strings.Contains(msgs[len(msgs)-1].Content, "深度研读报告") {
			return "", types.NewError(types.ErrModelOverloaded, "overloaded")
		}
		return "节点产出", nil
	}}
	models := fakeModels{
		types.TaskCore:        core,
		types.TaskTranslation: constModel("译文"),
		types.TaskRelatedWork: constModel("综述"),
	}
	g := New(models, &fakeSearcher{result: "hits"}, testCfg(), nil)

	st := NewState("p.pdf", "PDF", "p.pdf", "Paper X", "Paper X abstract...")
	require.NoError(t, g.Run(context.Background(), st, Options{}))

	report := st.Report()
	require.NotEmpty(t, report)

	// 退回拼装：固定小节顺序
	idx := make([]int, 0, len(NodeOrder))
	for _, name := range NodeOrder {
		pos := strings.Index(report, "## "+sectionTitles[name])
		require.GreaterOrEqual(t, pos, 0, "section %s missing", name)
		idx = append(idx, pos)
	}
	for i := 1; i < len(idx); i++ {
		assert.Greater(t, idx[i], idx[i-1], "sections out of order")
	}
	assert.Contains(t, report, "译文")
	assert.Equal(t, RunDone, st.Status())
}

func TestFullTranslation(t *testing.T) {
	var chunkCalls atomic.Int64
	translation := &fakeModel{completeFn: func(_ context.Context, msgs []types.Message) (string, error) {
		content := msgs[len(msgs)-1].Content
		if !strings.Contains(content, "待翻译内容") {
			return "TERM | 译名", nil
		}
		chunkCalls.Add(1)
		return "块译文", nil
	}}
	models := fakeModels{
		types.TaskCore:        echoModel(),
		types.TaskTranslation: translation,
		types.TaskRelatedWork: constModel("综述"),
	}
	g := New(models, &fakeSearcher{result: "hits"}, testCfg(), nil)

	// 正文超过一个分块，强制分块翻译
	text := "Paper X\n" + strings.Repeat("sentence about methods. ", 400)
	st := NewState("p.pdf", "PDF", "p.pdf", "Paper X", text)
	require.NoError(t, g.Run(context.Background(), st, Options{FullTranslation: true}))

	out := st.Node(NodeTranslation).Output
	assert.True(t, strings.HasPrefix(out, "### 术语对照表 (Glossary)\n"))
	assert.Contains(t, out, "### 全文翻译")
	assert.Contains(t, out, "块译文")
	assert.Greater(t, chunkCalls.Load(), int64(1), "expected multiple chunk translations")
}

func TestRelatedWorkTitleFallback(t *testing.T) {
	searcher := &fakeSearcher{result: "hits"}
	g := New(allConst("ok"), searcher, testCfg(), nil)

	longFirstLine := strings.Repeat("标题", 80) + "\nrest of text"
	st := NewState("p.pdf", "PDF", "p.pdf", "", longFirstLine)
	require.NoError(t, g.Run(context.Background(), st, Options{}))

	got, _ := searcher.lastTitle.Load().(string)
	assert.Len(t, []rune(got), 100)
	assert.False(t, strings.Contains(got, "\n"))
}

func TestRelatedWorkNoSearcher(t *testing.T) {
	g := New(allConst("ok"), nil, testCfg(), nil)

	st := NewState("p.pdf", "PDF", "p.pdf", "Paper X", "text")
	require.NoError(t, g.Run(context.Background(), st, Options{}))

	assert.Equal(t, NodeDone, st.Node(NodeRelatedWork).Status)
	assert.Contains(t, st.Node(NodeRelatedWork).Output, "Please configure")
}

func TestRelatedWorkEmptySearchSkipsSummarization(t *testing.T) {
	var relatedCalls atomic.Int64
	models := fakeModels{
		types.TaskCore:        constModel("ok"),
		types.TaskTranslation: constModel("ok"),
		types.TaskRelatedWork: &fakeModel{completeFn: func(context.Context, []types.Message) (string, error) {
			relatedCalls.Add(1)
			return "summary", nil
		}},
	}
	g := New(models, &fakeSearcher{result: search.NoResultsMessage}, testCfg(), nil)

	st := NewState("p.pdf", "PDF", "p.pdf", "Paper X", "text")
	require.NoError(t, g.Run(context.Background(), st, Options{}))

	// 一无所获时直接返回提示文案，不走汇总模型
	assert.Equal(t, NodeDone, st.Node(NodeRelatedWork).Status)
	assert.Equal(t, search.NoResultsMessage, st.Node(NodeRelatedWork).Output)
	assert.Zero(t, relatedCalls.Load())
}

func TestStateSnapshotRoundTrip(t *testing.T) {
	st := NewState("2301.00001", "Arxiv", "2301.00001", "Paper X", "text")
	st.setNodeDone(NodeTranslation, "译文")
	st.setNodeFailed(NodeTerms, types.NewError(types.ErrUpstreamError, "boom"))
	st.setReport("report body")
	st.setStatus(RunDonePartial)
	st.AppendExchange("这篇论文的贡献是什么？", "贡献是……")

	restored := RestoreState(st.Snapshot())

	assert.Equal(t, st.ID, restored.ID)
	assert.Equal(t, RunDonePartial, restored.Status())
	assert.Equal(t, "译文", restored.Node(NodeTranslation).Output)
	assert.Equal(t, NodeFailed, restored.Node(NodeTerms).Status)
	assert.Equal(t, "report body", restored.Report())
	require.Len(t, restored.Exchanges(), 1)
	assert.Equal(t, "这篇论文的贡献是什么？", restored.Exchanges()[0].Question)
}
