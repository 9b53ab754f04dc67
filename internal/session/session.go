package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn 表示会话历史中的一条消息。
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// TraceEntry 记录一次请求处理过程中的阶段性事件，用于完整的审计视图。
type TraceEntry struct {
	Stage     string `json:"stage"`
	Detail    string `json:"detail"`
	CreatedAt int64  `json:"created_at"`
}

// Session 保存单个会话的历史、用户画像事实与审计轨迹。
// 所有读写都必须在 Registry.Acquire 返回的锁保护下进行。
type Session struct {
	ID string

	mu        sync.Mutex
	turns     []Turn
	facts     map[string]any
	trace     []TraceEntry
	createdAt int64
	updatedAt int64
}

// Registry 按会话 ID 管理会话实例。
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewRegistry 创建会话注册表。
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Acquire 返回指定 ID 的会话并持有其互斥锁，调用方必须在请求结束时调用
// 返回的解锁函数。ID 为空时会生成新的会话。
func (r *Registry) Acquire(id string) (*Session, func()) {
	r.mu.Lock()
	if id == "" {
		id = uuid.NewString()
	}
	s, ok := r.sessions[id]
	if !ok {
		now := r.now().Unix()
		s = &Session{
			ID:        id,
			facts:     make(map[string]any),
			createdAt: now,
			updatedAt: now,
		}
		r.sessions[id] = s
	}
	r.mu.Unlock()

	s.mu.Lock()
	return s, s.mu.Unlock
}

// Peek 返回已存在的会话，不创建新会话。
func (r *Registry) Peek(id string) (*Session, func(), bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	s.mu.Lock()
	return s, s.mu.Unlock, true
}

// AppendTurn 追加一条历史消息。
func (s *Session) AppendTurn(role, content string) {
	now := time.Now().Unix()
	s.turns = append(s.turns, Turn{Role: role, Content: content, CreatedAt: now})
	s.updatedAt = now
}

// Window 返回最近 k 条历史消息。
func (s *Session) Window(k int) []Turn {
	if k <= 0 || k > len(s.turns) {
		k = len(s.turns)
	}
	window := make([]Turn, k)
	copy(window, s.turns[len(s.turns)-k:])
	return window
}

// History 返回完整的历史消息副本。
func (s *Session) History() []Turn {
	history := make([]Turn, len(s.turns))
	copy(history, s.turns)
	return history
}

// ApplyFacts 合并新的事实并删除 forget 指定的键。
func (s *Session) ApplyFacts(facts map[string]any, forget []string) {
	for _, key := range forget {
		delete(s.facts, key)
	}
	for key, value := range facts {
		s.facts[key] = value
	}
	s.updatedAt = time.Now().Unix()
}

// SetFact 写入单个事实。
func (s *Session) SetFact(key string, value any) {
	s.facts[key] = value
	s.updatedAt = time.Now().Unix()
}

// Fact 读取单个事实。
func (s *Session) Fact(key string) (any, bool) {
	value, ok := s.facts[key]
	return value, ok
}

// Facts 返回事实表的浅拷贝。
func (s *Session) Facts() map[string]any {
	clone := make(map[string]any, len(s.facts))
	for key, value := range s.facts {
		clone[key] = value
	}
	return clone
}

// AddTrace 记录一条审计事件。
func (s *Session) AddTrace(stage, detail string) {
	s.trace = append(s.trace, TraceEntry{
		Stage:     stage,
		Detail:    detail,
		CreatedAt: time.Now().Unix(),
	})
}

// Trace 返回审计轨迹副本。
func (s *Session) Trace() []TraceEntry {
	trace := make([]TraceEntry, len(s.trace))
	copy(trace, s.trace)
	return trace
}
