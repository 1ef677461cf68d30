// Package discussion 实现论文评审讨论引擎。
// 圆桌模式由主持人、论文作者、方法论专家、应用实践者四个角色
// 按固定议程辩论；对话模式由读者与作者进行多轮问答。
// 每条发言经事件通道流式输出；Stop 在发言边界生效，
// 转写记录只追加、永不截断。
package discussion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xichengpro/SourceMind/analysis"
	"github.com/xichengpro/SourceMind/config"
	"github.com/xichengpro/SourceMind/internal/textutil"
	"github.com/xichengpro/SourceMind/llm"
	"github.com/xichengpro/SourceMind/types"
)

// Mode 是讨论模式。
type Mode string

const (
	// ModeRoundtable 四角色圆桌辩论
	ModeRoundtable Mode = "roundtable"
	// ModeDialogue 读者/作者双角色问答
	ModeDialogue Mode = "dialogue"
)

// Status 是讨论引擎的状态。
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusStopped  Status = "stopped"
	StatusFailed   Status = "failed"
)

// Terminal 报告该状态是否为终态。
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusStopped || s == StatusFailed
}

// Turn 是一条完整发言。
type Turn struct {
	Speaker string    `json:"speaker"` // 展示标签，如 "🎓 主持人 (Moderator)"
	Role    string    `json:"role"`    // moderator / critic / practitioner / author / reader
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// EventType 是流式事件类型。
type EventType string

const (
	// EventPhase 进入新议程阶段
	EventPhase EventType = "phase"
	// EventChunk 当前发言的增量片段
	EventChunk EventType = "chunk"
	// EventTurn 一条发言完成并已写入转写记录
	EventTurn EventType = "turn"
	// EventDone 讨论到达终态
	EventDone EventType = "done"
	// EventError 讨论因错误终止
	EventError EventType = "error"
)

// Event 是讨论过程中推送给消费者的事件。
type Event struct {
	Type   EventType
	Phase  string
	Chunk  string
	Turn   *Turn
	Status Status
	Err    error
}

// 在 turn 边界响应停止请求的内部哨兵
var errStopRequested = errors.New("stop requested")

// Engine 驱动一次讨论。一个 Engine 只能 Start 一次。
type Engine struct {
	models llm.ModelSource
	cfg    config.DiscussionConfig
	logger *zap.Logger
	tracer trace.Tracer

	mu         sync.RWMutex
	status     Status
	transcript []Turn

	stopRequested atomic.Bool
	events        chan Event
}

// NewEngine 创建讨论引擎。
func NewEngine(models llm.ModelSource, cfg config.DiscussionConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		models: models,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("sourcemind/discussion"),
		status: StatusIdle,
	}
}

// Status 返回引擎当前状态。
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// Transcript 返回转写记录的副本。
func (e *Engine) Transcript() []Turn {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Turn, len(e.transcript))
	copy(out, e.transcript)
	return out
}

// TranscriptMarkdown 把转写记录格式化为 Markdown。
func (e *Engine) TranscriptMarkdown() string {
	turns := e.Transcript()
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, fmt.Sprintf("**%s:**\n%s", t.Speaker, t.Text))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Stop 请求停止讨论。当前发言会完整结束，之后不再安排新的发言。
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
}

// Start 启动讨论并返回事件通道。分析未完成或报告为空时拒绝启动。
// mode 为空时使用配置中的默认模式。
func (e *Engine) Start(ctx context.Context, st *analysis.State, mode Mode) (<-chan Event, error) {
	if !st.Status().Terminal() || st.Report() == "" {
		return nil, types.NewError(types.ErrNotReady, "无法进行对话评审：未生成最终报告。")
	}
	if mode == "" {
		mode = Mode(e.cfg.Mode)
	}
	if mode != ModeRoundtable && mode != ModeDialogue {
		return nil, types.NewError(types.ErrConfiguration, fmt.Sprintf("unknown discussion mode %q", mode))
	}

	e.mu.Lock()
	if e.status != StatusIdle {
		e.mu.Unlock()
		return nil, types.NewError(types.ErrBusy, "discussion already started")
	}
	e.status = StatusRunning
	e.events = make(chan Event, 16)
	e.mu.Unlock()

	title := st.Title
	if title == "" {
		title = "Untitled Paper"
	}
	report := textutil.Truncate(st.Report(), e.cfg.ReportLimit)
	doc := textutil.Truncate(st.Text, e.cfg.DocLimit)

	go e.run(ctx, mode, title, report, doc)
	return e.events, nil
}

func (e *Engine) run(ctx context.Context, mode Mode, title, report, doc string) {
	defer close(e.events)

	ctx, span := e.tracer.Start(ctx, "discussion.run",
		trace.WithAttributes(attribute.String("discussion.mode", string(mode))))
	defer span.End()

	e.logger.Info("讨论开始",
		zap.String("mode", string(mode)),
		zap.String("title", title))

	var err error
	if mode == ModeRoundtable {
		err = e.runRoundtable(ctx, title, report, doc)
	} else {
		err = e.runDialogue(ctx, report, doc)
	}

	switch {
	case errors.Is(err, errStopRequested):
		e.setStatus(StatusStopped)
	case err != nil:
		e.setStatus(StatusFailed)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("讨论失败", zap.Error(err))
		e.emit(Event{Type: EventError, Err: types.NewError(types.ErrDiscussionFailed, "discussion turn failed").WithCause(err)})
	default:
		e.setStatus(StatusFinished)
	}

	e.emit(Event{Type: EventDone, Status: e.Status()})
	e.logger.Info("讨论结束",
		zap.String("status", string(e.Status())),
		zap.Int("turns", len(e.Transcript())))
}

func (e *Engine) emit(ev Event) {
	e.events <- ev
}

func (e *Engine) phase(header string) {
	e.emit(Event{Type: EventPhase, Phase: header})
}

// speak 产出一条发言：流式调用模型、转发增量片段、发言完成后
// 追加到转写记录。停止请求在这里（即 turn 边界）生效。
func (e *Engine) speak(ctx context.Context, role, label string, cat types.TaskCategory, msgs []types.Message) (string, error) {
	if e.stopRequested.Load() {
		return "", errStopRequested
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	ctx, span := e.tracer.Start(ctx, "discussion.turn",
		trace.WithAttributes(attribute.String("discussion.role", role)))
	defer span.End()

	model, err := e.models.ChatModel(cat)
	if err != nil {
		return "", err
	}

	ch, err := model.Stream(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%s turn failed: %w", role, err)
	}

	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", fmt.Errorf("%s turn failed: %w", role, chunk.Err)
		}
		if chunk.Delta.Content == "" {
			continue
		}
		sb.WriteString(chunk.Delta.Content)
		e.emit(Event{Type: EventChunk, Chunk: chunk.Delta.Content})
	}

	text := sb.String()
	turn := Turn{Speaker: label, Role: role, Text: text, At: time.Now()}

	e.mu.Lock()
	e.transcript = append(e.transcript, turn)
	e.mu.Unlock()

	e.emit(Event{Type: EventTurn, Turn: &turn})
	return text, nil
}
