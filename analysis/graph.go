package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xichengpro/SourceMind/config"
	"github.com/xichengpro/SourceMind/internal/textutil"
	"github.com/xichengpro/SourceMind/llm"
	"github.com/xichengpro/SourceMind/llm/retry"
	"github.com/xichengpro/SourceMind/prompts"
	"github.com/xichengpro/SourceMind/search"
	"github.com/xichengpro/SourceMind/types"
)

// 失败小节在报告中的占位文案
const sectionUnavailable = "（该部分生成失败，内容不可用）"

// RelatedWorkSearcher 是相关工作节点依赖的检索接口。
type RelatedWorkSearcher interface {
	SearchPaper(ctx context.Context, title string) (string, error)
	HasProviders() bool
}

// Options 控制一次分析运行。
type Options struct {
	// FullTranslation 启用全文翻译（术语表 + 分块翻译）而不是摘要翻译
	FullTranslation bool
}

// Graph 是分析流水线：五个独立节点并发执行，汇聚节点聚合报告。
type Graph struct {
	models   llm.ModelSource
	searcher RelatedWorkSearcher
	cfg      config.AnalysisConfig
	retryer  retry.Retryer
	logger   *zap.Logger
	tracer   trace.Tracer
	tokens   tokenCounter
}

// New 创建分析流水线。searcher 可以为 nil，此时相关工作节点
// 返回未配置提示而不是失败。
func New(models llm.ModelSource, searcher RelatedWorkSearcher, cfg config.AnalysisConfig, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}

	return &Graph{
		models:   models,
		searcher: searcher,
		cfg:      cfg,
		retryer:  retry.NewBackoffRetryer(policy, logger),
		logger:   logger,
		tracer:   otel.Tracer("sourcemind/analysis"),
	}
}

type nodeFunc func(ctx context.Context) (string, error)

type nodeOutcome struct {
	name NodeName
	err  error
}

// Run 执行整个分析流水线并把结果写入 st。
// 单个节点失败不影响其余节点；只要有节点成功就会生成报告。
// 所有节点都失败时返回错误，st.Status() 为 failed。
func (g *Graph) Run(ctx context.Context, st *State, opts Options) error {
	ctx, span := g.tracer.Start(ctx, "analysis.run",
		trace.WithAttributes(
			attribute.String("analysis.id", st.ID),
			attribute.String("analysis.source", st.SourceName),
			attribute.Bool("analysis.full_translation", opts.FullTranslation),
		))
	defer span.End()

	st.setStatus(RunRunning)
	start := time.Now()

	g.logger.Info("分析流水线启动",
		zap.String("id", st.ID),
		zap.String("title", st.Title),
		zap.Int("input_tokens", g.tokens.count(st.Text)))

	nodes := map[NodeName]nodeFunc{
		NodeTranslation: func(ctx context.Context) (string, error) { return g.translate(ctx, st, opts) },
		NodeKeyPoints:   func(ctx context.Context) (string, error) { return g.extract(ctx, st, types.TaskCore, prompts.KeyPoints) },
		NodeExperiments: func(ctx context.Context) (string, error) { return g.extract(ctx, st, types.TaskCore, prompts.Experiments) },
		NodeTerms:       func(ctx context.Context) (string, error) { return g.extract(ctx, st, types.TaskCore, prompts.Terms) },
		NodeRelatedWork: func(ctx context.Context) (string, error) { return g.relatedWork(ctx, st) },
	}

	// 并发执行所有节点，结果经通道收集
	outcomeCh := make(chan nodeOutcome, len(nodes))
	var wg sync.WaitGroup
	for name, fn := range nodes {
		wg.Add(1)
		go func(name NodeName, fn nodeFunc) {
			defer wg.Done()
			outcomeCh <- nodeOutcome{name: name, err: g.runNode(ctx, st, name, fn)}
		}(name, fn)
	}

	go func() {
		wg.Wait()
		close(outcomeCh)
	}()

	var failed int
	for outcome := range outcomeCh {
		if outcome.err != nil {
			failed++
		}
	}

	if failed == len(nodes) {
		st.setStatus(RunFailed)
		span.SetStatus(codes.Error, "all nodes failed")
		return types.NewError(types.ErrNodeFailed, "all analysis nodes failed")
	}

	// 汇聚：从成功的小节生成最终报告
	report := g.generateReport(ctx, st)
	st.setReport(report)

	if failed > 0 {
		st.setStatus(RunDonePartial)
	} else {
		st.setStatus(RunDone)
	}

	span.SetAttributes(attribute.Int("analysis.failed_nodes", failed))
	g.logger.Info("分析流水线完成",
		zap.String("id", st.ID),
		zap.String("status", string(st.Status())),
		zap.Int("failed_nodes", failed),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// runNode 执行单个节点：记录状态、限定超时、打追踪 span。
func (g *Graph) runNode(ctx context.Context, st *State, name NodeName, fn nodeFunc) error {
	ctx, span := g.tracer.Start(ctx, "analysis.node."+string(name))
	defer span.End()

	if g.cfg.NodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.NodeTimeout)
		defer cancel()
	}

	st.setNodeRunning(name)
	output, err := fn(ctx)
	if err != nil {
		st.setNodeFailed(name, err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("分析节点失败",
			zap.String("node", string(name)),
			zap.Error(err))
		return err
	}

	st.setNodeDone(name, output)
	g.logger.Debug("分析节点完成", zap.String("node", string(name)))
	return nil
}

// complete 解析任务类别对应的模型并带重试地调用。
func (g *Graph) complete(ctx context.Context, cat types.TaskCategory, msgs []types.Message) (string, error) {
	model, err := g.models.ChatModel(cat)
	if err != nil {
		return "", err
	}
	return retry.DoWithResult(g.retryer, ctx, func() (string, error) {
		return model.Complete(ctx, msgs)
	})
}

// extract 是要点/实验/术语三个节点共用的模板：截断正文，一次模型调用。
func (g *Graph) extract(ctx context.Context, st *State, cat types.TaskCategory, prompt func(string) []types.Message) (string, error) {
	if st.Text == "" {
		return "No content to analyze.", nil
	}
	text := textutil.Truncate(st.Text, g.cfg.MaxInputChars)
	return g.complete(ctx, cat, prompt(text))
}

// translate 摘要翻译，或在 FullTranslation 下走术语表＋分块翻译。
func (g *Graph) translate(ctx context.Context, st *State, opts Options) (string, error) {
	if st.Text == "" {
		return "No content to translate.", nil
	}
	if opts.FullTranslation {
		return g.fullTranslation(ctx, st.Text)
	}
	text := textutil.Truncate(st.Text, g.cfg.MaxInputChars)
	return g.complete(ctx, types.TaskTranslation, prompts.Translation(text))
}

// fullTranslation 全文翻译：先从开头抽取术语对照表保证译名一致，
// 再分块并发翻译，最后拼装。
func (g *Graph) fullTranslation(ctx context.Context, text string) (string, error) {
	glossary, err := g.complete(ctx, types.TaskTranslation,
		prompts.Glossary(textutil.Truncate(text, 10000)))
	if err != nil {
		return "", fmt.Errorf("glossary extraction failed: %w", err)
	}

	chunks := textutil.SplitChunks(text, g.cfg.ChunkSize, g.cfg.ChunkOverlap)
	translated := make([]string, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.MaxConcurrency)
	for i, chunk := range chunks {
		eg.Go(func() error {
			out, err := g.complete(egCtx, types.TaskTranslation, prompts.FullTranslation(glossary, chunk))
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			translated[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", fmt.Errorf("full translation failed: %w", err)
	}

	return fmt.Sprintf("### 术语对照表 (Glossary)\n%s\n\n---\n\n### 全文翻译\n\n%s",
		glossary, strings.Join(translated, "\n\n")), nil
}

// relatedWork 检索论文的相关解读与代码实现，再交给模型汇总。
func (g *Graph) relatedWork(ctx context.Context, st *State) (string, error) {
	title := st.Title
	if title == "" {
		if st.Text == "" {
			return "No title or content to search for.", nil
		}
		// 退而求其次：拿正文第一行当标题
		title = textutil.Truncate(strings.SplitN(st.Text, "\n", 2)[0], 100)
	}

	if g.searcher == nil || !g.searcher.HasProviders() {
		return "No search results found. Please configure Tavily, Exa, or SerpAPI Key.", nil
	}

	raw, err := retry.DoWithResult(g.retryer, ctx, func() (string, error) {
		return g.searcher.SearchPaper(ctx, title)
	})
	if err != nil {
		return "", fmt.Errorf("related work search failed: %w", err)
	}
	if raw == search.NoResultsMessage {
		// 查询都执行了但一无所获，没有内容可供汇总
		return raw, nil
	}

	processed, err := g.complete(ctx, types.TaskRelatedWork, prompts.RelatedWork(title, raw))
	if err != nil {
		// 汇总失败时退回原始检索结果
		return fmt.Sprintf("Error processing search results: %v\n\nRaw Results:\n%s", err, raw), nil
	}
	return processed, nil
}

// generateReport 汇聚节点：把各小节交给模型生成深度研读报告，
// 模型调用失败时退回确定性的分节拼装。失败小节一律标记为不可用。
func (g *Graph) generateReport(ctx context.Context, st *State) string {
	ctx, span := g.tracer.Start(ctx, "analysis.report")
	defer span.End()

	section := func(name NodeName) string {
		r := st.Node(name)
		if r.Status != NodeDone {
			return sectionUnavailable
		}
		return r.Output
	}

	in := prompts.ReportInput{
		Source:      st.SourceName,
		Translation: section(NodeTranslation),
		KeyPoints:   section(NodeKeyPoints),
		Experiments: section(NodeExperiments),
		Terms:       section(NodeTerms),
		RelatedWork: section(NodeRelatedWork),
	}

	report, err := g.complete(ctx, types.TaskCore, prompts.Report(in))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("报告生成模型调用失败，退回分节拼装", zap.Error(err))
		return g.assembleReport(st)
	}
	return report
}

// assembleReport 无模型参与的报告拼装，保证报告总能产出。
func (g *Graph) assembleReport(st *State) string {
	var sb strings.Builder
	title := st.Title
	if title == "" {
		title = st.SourceName
	}
	fmt.Fprintf(&sb, "# %s 深度研读报告\n", title)

	for _, name := range NodeOrder {
		fmt.Fprintf(&sb, "\n## %s\n\n", sectionTitles[name])
		r := st.Node(name)
		if r.Status == NodeDone {
			sb.WriteString(r.Output)
		} else {
			sb.WriteString(sectionUnavailable)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
