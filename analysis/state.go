// Package analysis 实现论文分析流水线：五个相互独立的分析节点并发
// 执行，汇聚节点把成功的部分聚合成 Markdown 研读报告。
package analysis

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// NodeName 标识一个分析节点。
type NodeName string

const (
	NodeTranslation NodeName = "translation"
	NodeKeyPoints   NodeName = "key_points"
	NodeExperiments NodeName = "experiments"
	NodeTerms       NodeName = "terms"
	NodeRelatedWork NodeName = "related_work"
)

// NodeOrder 是报告中各节的固定顺序。
var NodeOrder = []NodeName{
	NodeTranslation,
	NodeKeyPoints,
	NodeExperiments,
	NodeTerms,
	NodeRelatedWork,
}

// sectionTitles 每个节点在报告中的小节标题
var sectionTitles = map[NodeName]string{
	NodeTranslation: "摘要翻译 (Translation)",
	NodeKeyPoints:   "核心要点 (Key Points)",
	NodeExperiments: "实验分析 (Experiments)",
	NodeTerms:       "术语解释 (Terms)",
	NodeRelatedWork: "相关研究情报 (Related Work)",
}

// NodeStatus 是单个节点的执行状态。
type NodeStatus string

const (
	NodePending NodeStatus = "pending"
	NodeRunning NodeStatus = "running"
	NodeDone    NodeStatus = "done"
	NodeFailed  NodeStatus = "failed"
)

// RunStatus 是整个分析运行的状态。
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	// RunDone 所有节点都成功
	RunDone RunStatus = "done"
	// RunDonePartial 部分节点失败，报告仍然生成
	RunDonePartial RunStatus = "done_with_partial_failure"
	// RunFailed 所有节点都失败，没有可用内容
	RunFailed RunStatus = "failed"
)

// Terminal 报告该状态是否为终态。
func (s RunStatus) Terminal() bool {
	return s == RunDone || s == RunDonePartial || s == RunFailed
}

// NodeResult 是一个节点的输出与状态。
type NodeResult struct {
	Status     NodeStatus `json:"status"`
	Output     string     `json:"output"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

// Exchange 是一轮追问问答。
type Exchange struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// State 是一次论文分析运行的全部状态。
// 节点各自写入自己的结果槽位，互不依赖；UI 侧可以在运行过程中
// 并发读取任意小节，因此所有访问都经过内部锁。
type State struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	SourceType string    `json:"source_type"`
	SourceName string    `json:"source_name"`
	Title      string    `json:"title"`
	Text       string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`

	mu        sync.RWMutex
	status    RunStatus
	nodes     map[NodeName]*NodeResult
	report    string
	exchanges []Exchange
}

// NewState 创建待运行的分析状态，所有节点置为 pending。
func NewState(source, sourceType, sourceName, title, text string) *State {
	nodes := make(map[NodeName]*NodeResult, len(NodeOrder))
	for _, n := range NodeOrder {
		nodes[n] = &NodeResult{Status: NodePending}
	}
	return &State{
		ID:         uuid.NewString(),
		Source:     source,
		SourceType: sourceType,
		SourceName: sourceName,
		Title:      title,
		Text:       text,
		CreatedAt:  time.Now(),
		status:     RunPending,
		nodes:      nodes,
	}
}

// Status 返回运行状态。
func (s *State) Status() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *State) setStatus(status RunStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Node 返回指定节点当前结果的副本。
func (s *State) Node(name NodeName) NodeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.nodes[name]; ok {
		return *r
	}
	return NodeResult{}
}

func (s *State) setNodeRunning(name NodeName) {
	s.mu.Lock()
	s.nodes[name].Status = NodeRunning
	s.nodes[name].StartedAt = time.Now()
	s.mu.Unlock()
}

func (s *State) setNodeDone(name NodeName, output string) {
	s.mu.Lock()
	s.nodes[name].Status = NodeDone
	s.nodes[name].Output = output
	s.nodes[name].FinishedAt = time.Now()
	s.mu.Unlock()
}

func (s *State) setNodeFailed(name NodeName, err error) {
	s.mu.Lock()
	s.nodes[name].Status = NodeFailed
	s.nodes[name].Error = err.Error()
	s.nodes[name].FinishedAt = time.Now()
	s.mu.Unlock()
}

// Report 返回最终报告（运行完成前为空）。
func (s *State) Report() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

func (s *State) setReport(report string) {
	s.mu.Lock()
	s.report = report
	s.mu.Unlock()
}

// AppendExchange 追加一轮问答。
func (s *State) AppendExchange(question, answer string) {
	s.mu.Lock()
	s.exchanges = append(s.exchanges, Exchange{
		Question: question,
		Answer:   answer,
		AskedAt:  time.Now(),
	})
	s.mu.Unlock()
}

// Exchanges 返回所有问答的副本。
func (s *State) Exchanges() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// Snapshot 是 State 的可序列化快照，供历史持久化使用。
type Snapshot struct {
	ID         string                   `json:"id"`
	Source     string                   `json:"source"`
	SourceType string                   `json:"source_type"`
	SourceName string                   `json:"source_name"`
	Title      string                   `json:"title"`
	CreatedAt  time.Time                `json:"created_at"`
	Status     RunStatus                `json:"status"`
	Nodes      map[NodeName]NodeResult  `json:"nodes"`
	Report     string                   `json:"report"`
	Exchanges  []Exchange               `json:"exchanges,omitempty"`
}

// Snapshot 导出当前状态的快照。
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make(map[NodeName]NodeResult, len(s.nodes))
	for name, r := range s.nodes {
		nodes[name] = *r
	}
	exchanges := make([]Exchange, len(s.exchanges))
	copy(exchanges, s.exchanges)

	return Snapshot{
		ID:         s.ID,
		Source:     s.Source,
		SourceType: s.SourceType,
		SourceName: s.SourceName,
		Title:      s.Title,
		CreatedAt:  s.CreatedAt,
		Status:     s.status,
		Nodes:      nodes,
		Report:     s.report,
		Exchanges:  exchanges,
	}
}

// RestoreState 从快照重建 State（正文不随快照保存）。
func RestoreState(snap Snapshot) *State {
	nodes := make(map[NodeName]*NodeResult, len(NodeOrder))
	for _, n := range NodeOrder {
		r := snap.Nodes[n]
		nodes[n] = &r
	}
	exchanges := make([]Exchange, len(snap.Exchanges))
	copy(exchanges, snap.Exchanges)

	return &State{
		ID:         snap.ID,
		Source:     snap.Source,
		SourceType: snap.SourceType,
		SourceName: snap.SourceName,
		Title:      snap.Title,
		CreatedAt:  snap.CreatedAt,
		status:     snap.Status,
		nodes:      nodes,
		report:     snap.Report,
		exchanges:  exchanges,
	}
}
