package agent

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"time"

	xerrors "Slate-Tron/internal/errors"
	"Slate-Tron/internal/events"
	"Slate-Tron/internal/knowledge"
	"Slate-Tron/internal/llm"
	"Slate-Tron/internal/observability/metrics"
	"Slate-Tron/internal/session"
	"Slate-Tron/internal/storage/mysql"
	"Slate-Tron/internal/tools"
	"Slate-Tron/pkg/logger"

	"github.com/google/uuid"
)

// ChatRequest 描述一次用户对话请求。
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ExecutedCall 记录本轮中的一次工具调用。前端工具不在后端执行，
// Result 为空表示由客户端接管。
type ExecutedCall struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Args   map[string]any `json:"args,omitempty"`
	Result *tools.Result  `json:"result,omitempty"`
}

// ChatResponse 是对话接口的响应载体，Reply 只来自总结模型。
type ChatResponse struct {
	Reply         string         `json:"reply"`
	FunctionCalls []ExecutedCall `json:"function_calls"`
	Widget        string         `json:"widget"`
	SessionID     string         `json:"session_id"`
	Timestamp     int64          `json:"timestamp"`
}

// Agent 协调事实提取、工具规划执行与回复总结，是系统的业务核心。
type Agent struct {
	llmClient    llm.Client
	catalog      *tools.Catalog
	sessions     *session.Registry
	knowledge    knowledge.Provider
	archive      mysql.ChatRepository
	bus          events.Publisher
	plannerModel string
	summaryModel string
	memoryWindow int
	maxToolCalls int
	maxRounds    int
	llmTimeout   time.Duration
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

const (
	defaultMemoryWindow = 10
	defaultMaxToolCalls = 8
	defaultMaxRounds    = 1
)

// WithMemoryWindow 设置提供给规划器的历史消息条数。
func WithMemoryWindow(window int) Option {
	return func(a *Agent) {
		if window > 0 {
			a.memoryWindow = window
		}
	}
}

// WithToolCallCap 设置单轮允许的工具调用上限。
func WithToolCallCap(cap int) Option {
	return func(a *Agent) {
		if cap > 0 {
			a.maxToolCalls = cap
		}
	}
}

// WithPlanRounds 设置规划-执行循环的最大轮数。
func WithPlanRounds(rounds int) Option {
	return func(a *Agent) {
		if rounds > 0 {
			a.maxRounds = rounds
		}
	}
}

// WithKnowledgeProvider 配置协议术语知识库，用于丰富总结上下文。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(a *Agent) {
		a.knowledge = provider
	}
}

// WithArchive 配置对话归档仓库。
func WithArchive(archive mysql.ChatRepository) Option {
	return func(a *Agent) {
		a.archive = archive
	}
}

// WithEventBus 配置 UI 事件总线。
func WithEventBus(bus events.Publisher) Option {
	return func(a *Agent) {
		a.bus = bus
	}
}

// WithModels 设置规划与总结使用的模型。
func WithModels(planner, summary string) Option {
	return func(a *Agent) {
		a.plannerModel = planner
		a.summaryModel = summary
	}
}

// WithLLMTimeout 设置单次大模型调用的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout > 0 {
			a.llmTimeout = timeout
		}
	}
}

// New 创建一个 Agent。
func New(llmClient llm.Client, catalog *tools.Catalog, sessions *session.Registry, opts ...Option) *Agent {
	ag := &Agent{
		llmClient:    llmClient,
		catalog:      catalog,
		sessions:     sessions,
		memoryWindow: defaultMemoryWindow,
		maxToolCalls: defaultMaxToolCalls,
		maxRounds:    defaultMaxRounds,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag
}

// Chat 处理一轮对话：提取事实、规划并执行工具、总结回复。
// 会话锁在整个请求期间持有。
func (a *Agent) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if a.llmClient == nil || a.catalog == nil || a.sessions == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "Agent 组件未完整配置")
	}
	if req.Message == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "消息内容不能为空")
	}

	sess, unlock := a.sessions.Acquire(req.SessionID)
	defer unlock()

	log := logger.Named("agent").With("session_id", sess.ID)
	sess.AddTrace("user_message", req.Message)

	a.extractFacts(ctx, sess, req.Message, log)

	executed := a.planAndExecute(ctx, sess, req.Message, log)

	reply := a.summarize(ctx, sess, req.Message, executed, log)
	widget := selectWidget(executed)

	sess.AppendTurn(llm.RoleUser, req.Message)
	sess.AppendTurn(llm.RoleAssistant, reply)
	sess.AddTrace("assistant_reply", reply)

	now := time.Now().Unix()
	response := &ChatResponse{
		Reply:         reply,
		FunctionCalls: executed,
		Widget:        widget,
		SessionID:     sess.ID,
		Timestamp:     now,
	}

	a.archiveTurn(ctx, sess.ID, req.Message, response, log)
	a.publishTurn(ctx, sess.ID, response, log)
	logger.Audit().Info("chat turn",
		"session_id", sess.ID,
		"widget", widget,
		"tool_calls", len(executed),
	)

	return response, nil
}

// extractFacts 调用事实提取模型，失败时记录并继续。
func (a *Agent) extractFacts(ctx context.Context, sess *session.Session, message string, log *slog.Logger) {
	raw, err := a.complete(ctx, a.plannerModel, 0, extractorSystemPrompt, buildExtractorContext(message, sess.Facts()))
	if err != nil {
		log.Warn("事实提取调用失败，跳过", "error", err)
		sess.AddTrace("extractor_degraded", err.Error())
		return
	}
	update, err := parseFacts(raw)
	if err != nil {
		log.Warn("事实提取输出无法解析，跳过", "error", err)
		sess.AddTrace("extractor_degraded", err.Error())
		return
	}
	sess.ApplyFacts(update.Facts, update.Forget)
}

// planAndExecute 运行有界的规划-执行循环，返回本轮全部工具调用。
func (a *Agent) planAndExecute(ctx context.Context, sess *session.Session, message string, log *slog.Logger) []ExecutedCall {
	executed := make([]ExecutedCall, 0, a.maxToolCalls)
	systemPrompt := buildPlannerPrompt(a.catalog)

	for round := 1; round <= a.maxRounds; round++ {
		if len(executed) >= a.maxToolCalls {
			break
		}
		contextMsg := buildPlannerContext(message, sess.Facts(), sess.Window(a.memoryWindow), executed)
		raw, err := a.complete(ctx, a.plannerModel, 0, systemPrompt, contextMsg)
		if err != nil {
			log.Warn("规划调用失败，本轮不执行工具", "round", round, "error", err)
			sess.AddTrace("planner_degraded", err.Error())
			break
		}
		calls, err := parsePlan(raw)
		if err != nil {
			log.Warn("规划输出无法解析", "round", round, "error", err)
			sess.AddTrace("planner_degraded", err.Error())
			break
		}
		if len(calls) == 0 {
			break
		}

		ranBackend := false
		for _, call := range calls {
			if len(executed) >= a.maxToolCalls {
				log.Warn("工具调用达到上限，丢弃剩余调用", "cap", a.maxToolCalls)
				sess.AddTrace("tool_cap_reached", call.Type)
				break
			}
			if err := a.catalog.Validate(call); err != nil {
				log.Warn("丢弃未登记的工具调用", "tool", call.Type)
				sess.AddTrace("tool_rejected", call.Type)
				continue
			}
			record := a.executeCall(ctx, sess, call)
			if record.Result != nil {
				ranBackend = true
			}
			executed = append(executed, record)
		}
		// 没有可反馈的后端结果时，追加轮次不会产生新信息。
		if !ranBackend {
			break
		}
	}
	return executed
}

// executeCall 执行单个工具调用。前端工具原样转发给客户端。
func (a *Agent) executeCall(ctx context.Context, sess *session.Session, call tools.Call) ExecutedCall {
	record := ExecutedCall{
		ID:   uuid.NewString(),
		Type: call.Type,
		Args: call.Args,
	}
	tool, _ := a.catalog.Lookup(call.Type)
	if tool.Kind == tools.KindFrontend {
		sess.AddTrace("tool_forwarded", call.Type)
		return record
	}

	args := call.Args
	if call.Type == tools.JustLendPosition {
		args = a.fillWalletAddress(sess, args)
		record.Args = args
	}

	result := tool.Handler(ctx, args)
	record.Result = &result
	metrics.ObserveToolCall(call.Type, result.Success)
	if result.Success {
		sess.AddTrace("tool_ok", call.Type)
	} else {
		sess.AddTrace("tool_failed", call.Type+": "+result.ErrorType)
	}
	return record
}

// fillWalletAddress 在规划器未给出地址时回填画像中的钱包地址。
func (a *Agent) fillWalletAddress(sess *session.Session, args map[string]any) map[string]any {
	if args == nil {
		args = make(map[string]any)
	}
	if current, ok := args["address"].(string); ok && current != "" {
		return args
	}
	if address, ok := sess.Fact("wallet_address"); ok {
		args["address"] = address
	}
	return args
}

// summarize 调用总结模型生成用户可见回复，失败时使用兜底文案。
func (a *Agent) summarize(ctx context.Context, sess *session.Session, message string, executed []ExecutedCall, log *slog.Logger) string {
	var snippets []knowledge.Snippet
	if a.knowledge != nil {
		snippets = a.knowledge.Query(message)
	}
	contextMsg := buildSummaryContext(message, sess.Facts(), snippets, executed)
	reply, err := a.complete(ctx, a.summaryModel, 0.2, summarizerSystemPrompt, contextMsg)
	if err != nil {
		log.Warn("总结调用失败，使用兜底回复", "error", err)
		sess.AddTrace("summary_degraded", err.Error())
		return fallbackReply
	}
	return reply
}

// complete 封装一次带超时的大模型调用。
func (a *Agent) complete(ctx context.Context, model string, temperature float64, systemPrompt, userContent string) (string, error) {
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	raw, err := a.llmClient.Complete(ctx, llm.Request{
		Model:       model,
		Temperature: temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: userContent},
		},
	})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return "", xerrors.Wrap(xerrors.CodeTimeout, err, "大模型调用超时")
		}
		return "", xerrors.Wrap(xerrors.CodeLLMFailure, err, "大模型调用失败")
	}
	return raw, nil
}

// archiveTurn 将本轮对话写入归档仓库，失败只降级为日志。
func (a *Agent) archiveTurn(ctx context.Context, sessionID, message string, resp *ChatResponse, log *slog.Logger) {
	if a.archive == nil {
		return
	}
	callsJSON, err := json.Marshal(resp.FunctionCalls)
	if err != nil {
		callsJSON = []byte("[]")
	}
	record := mysql.ChatRecord{
		SessionID:     sessionID,
		TurnID:        uuid.NewString(),
		UserMessage:   message,
		Reply:         resp.Reply,
		Widget:        resp.Widget,
		FunctionCalls: string(callsJSON),
		CreatedAt:     resp.Timestamp,
	}
	if err := a.archive.Save(ctx, record); err != nil {
		log.Warn("归档对话失败", "error", err)
	}
}

// publishTurn 向事件总线广播控件更新，失败只降级为日志。
func (a *Agent) publishTurn(ctx context.Context, sessionID string, resp *ChatResponse, log *slog.Logger) {
	if a.bus == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      events.KindWidgetUpdate,
		Payload: map[string]any{
			"widget":     resp.Widget,
			"tool_calls": len(resp.FunctionCalls),
		},
		CreatedAt: resp.Timestamp,
	}
	if err := a.bus.Publish(ctx, event); err != nil {
		log.Warn("发布 UI 事件失败", "error", err)
	}
}

// SessionHistory 返回指定会话的完整历史与审计轨迹。
func (a *Agent) SessionHistory(sessionID string) ([]session.Turn, []session.TraceEntry, error) {
	if a.sessions == nil {
		return nil, nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置会话注册表")
	}
	sess, unlock, ok := a.sessions.Peek(sessionID)
	if !ok {
		return nil, nil, xerrors.New(xerrors.CodeNotFound, "会话不存在")
	}
	defer unlock()
	return sess.History(), sess.Trace(), nil
}

// ApplyWalletEvent 处理来自前端的钱包回调，更新会话画像。
func (a *Agent) ApplyWalletEvent(ctx context.Context, sessionID, kind string, payload map[string]any) error {
	if a.sessions == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置会话注册表")
	}
	sess, unlock := a.sessions.Acquire(sessionID)
	defer unlock()

	switch kind {
	case "wallet_connected":
		sess.SetFact("wallet_connected", true)
		if address, ok := payload["address"].(string); ok && address != "" {
			sess.SetFact("wallet_address", address)
		}
		if network, ok := payload["network"].(string); ok && network != "" {
			sess.SetFact("wallet_network", network)
		}
	case "wallet_details":
		if address, ok := payload["address"].(string); ok && address != "" {
			sess.SetFact("wallet_address", address)
		}
		if balance, ok := payload["trx_balance"]; ok {
			sess.SetFact("trx_balance", balance)
		}
	case "wallet_error":
		if message, ok := payload["error"].(string); ok {
			sess.SetFact("wallet_error", message)
		}
		sess.SetFact("wallet_connected", false)
	default:
		return xerrors.New(xerrors.CodeInvalidArgument, "未知的钱包事件: "+kind)
	}
	sess.AddTrace("wallet_event", kind)

	if a.bus != nil {
		event := events.Event{
			ID:        uuid.NewString(),
			SessionID: sess.ID,
			Kind:      events.KindWalletEvent,
			Payload:   map[string]any{"event": kind},
			CreatedAt: time.Now().Unix(),
		}
		if err := a.bus.Publish(ctx, event); err != nil {
			logger.Named("agent").Warn("发布钱包事件失败", "error", err)
		}
	}
	return nil
}
