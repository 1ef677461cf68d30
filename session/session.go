// Package session 管理单个活动的分析会话：启动分析、发起/停止讨论、
// 受控的追问问答。同一时刻只有一个分析在运行；讨论进行中时问答
// 返回忙碌错误而不是排队。
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xichengpro/SourceMind/analysis"
	"github.com/xichengpro/SourceMind/config"
	"github.com/xichengpro/SourceMind/discussion"
	"github.com/xichengpro/SourceMind/docload"
	"github.com/xichengpro/SourceMind/internal/textutil"
	"github.com/xichengpro/SourceMind/llm"
	"github.com/xichengpro/SourceMind/prompts"
	"github.com/xichengpro/SourceMind/types"
)

// Loader 加载论文文档。
type Loader interface {
	Load(ctx context.Context, source string, opts docload.Options) (*docload.Document, error)
}

// Runner 执行分析流水线。
type Runner interface {
	Run(ctx context.Context, st *analysis.State, opts analysis.Options) error
}

// Archiver 持久化分析快照与讨论转写。
type Archiver interface {
	Archive(snap analysis.Snapshot, transcript string) error
}

// AnalyzeOptions 控制一次分析。
type AnalyzeOptions struct {
	// UseVLM 启用视觉模型逐页转写
	UseVLM bool
	// PageImages 预渲染的页面 PNG（base64）
	PageImages []string
	// FullTranslation 启用全文翻译
	FullTranslation bool
}

// Session 是单个活动会话。
type Session struct {
	loader   Loader
	graph    Runner
	models   llm.ModelSource
	archiver Archiver // 可为 nil
	cfg      config.DiscussionConfig
	logger   *zap.Logger

	mu      sync.Mutex
	st      *analysis.State
	engine  *discussion.Engine
	running bool
}

// New 创建会话。archiver 可为 nil，此时结果不落历史库。
func New(loader Loader, graph Runner, models llm.ModelSource, archiver Archiver, cfg config.DiscussionConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		loader:   loader,
		graph:    graph,
		models:   models,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
	}
}

// State 返回当前分析状态，尚未分析过时为 nil。
func (s *Session) State() *analysis.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Analyze 加载论文并同步执行分析流水线。
// 已有分析或讨论在运行时返回 BUSY。
func (s *Session) Analyze(ctx context.Context, source string, opts AnalyzeOptions) (*analysis.State, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, types.NewError(types.ErrBusy, "analysis already running")
	}
	if s.engine != nil && !s.engine.Status().Terminal() {
		s.mu.Unlock()
		return nil, types.NewError(types.ErrBusy, "discussion in progress")
	}
	s.running = true
	s.engine = nil
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	doc, err := s.loader.Load(ctx, source, docload.Options{
		UseVLM:     opts.UseVLM,
		PageImages: opts.PageImages,
	})
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	st := analysis.NewState(doc.Source, string(doc.SourceType), doc.SourceName, doc.Title, doc.Text)
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()

	if err := s.graph.Run(ctx, st, analysis.Options{FullTranslation: opts.FullTranslation}); err != nil {
		return st, err
	}

	if err := s.archive(st, ""); err != nil {
		return st, err
	}
	return st, nil
}

// StartDiscussion 对当前分析结果发起讨论，返回事件通道。
// 讨论结束后自动把转写归档到历史库。
func (s *Session) StartDiscussion(ctx context.Context, mode discussion.Mode) (<-chan discussion.Event, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, types.NewError(types.ErrBusy, "analysis in progress")
	}
	if s.engine != nil && !s.engine.Status().Terminal() {
		s.mu.Unlock()
		return nil, types.NewError(types.ErrBusy, "discussion already running")
	}
	st := s.st
	s.mu.Unlock()

	if st == nil {
		return nil, types.NewError(types.ErrNotReady, "no analysis to discuss")
	}

	engine := discussion.NewEngine(s.models, s.cfg, s.logger)
	events, err := engine.Start(ctx, st, mode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()

	// 转发事件；讨论到达终态后归档转写
	out := make(chan discussion.Event, 16)
	go func() {
		defer close(out)
		for ev := range events {
			out <- ev
		}
		if err := s.archive(st, engine.TranscriptMarkdown()); err != nil {
			s.logger.Warn("讨论转写归档失败", zap.Error(err))
		}
	}()
	return out, nil
}

// StopDiscussion 请求停止当前讨论，在发言边界生效。
func (s *Session) StopDiscussion() {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine != nil {
		engine.Stop()
	}
}

// Discussion 返回当前讨论引擎，从未讨论过时为 nil。
func (s *Session) Discussion() *discussion.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Ask 基于论文内容回答追问。分析完成前返回 NOT_READY，
// 分析或讨论进行中返回 BUSY。问答记录追加到分析状态。
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return "", types.NewError(types.ErrBusy, "analysis in progress")
	}
	if s.engine != nil && !s.engine.Status().Terminal() {
		s.mu.Unlock()
		return "", types.NewError(types.ErrBusy, "discussion in progress")
	}
	st := s.st
	s.mu.Unlock()

	if st == nil || !st.Status().Terminal() || st.Status() == analysis.RunFailed {
		return "", types.NewError(types.ErrNotReady, "analysis not completed")
	}

	model, err := s.models.ChatModel(types.TaskCore)
	if err != nil {
		return "", err
	}

	doc := textutil.Truncate(st.Text, s.cfg.DocLimit)
	answer, err := model.Complete(ctx, prompts.QA(doc, question))
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}

	st.AppendExchange(question, answer)
	if err := s.archive(st, ""); err != nil {
		s.logger.Warn("问答归档失败", zap.Error(err))
	}
	return answer, nil
}

func (s *Session) archive(st *analysis.State, transcript string) error {
	if s.archiver == nil {
		return nil
	}
	if err := s.archiver.Archive(st.Snapshot(), transcript); err != nil {
		return types.NewError(types.ErrPersistence, "archive analysis state").WithCause(err)
	}
	return nil
}
