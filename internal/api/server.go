package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"Slate-Tron/internal/agent"
	"Slate-Tron/internal/auth"
	xerrors "Slate-Tron/internal/errors"
	"Slate-Tron/internal/observability/metrics"
)

// Server 负责暴露 REST 接口，供前端驱动对话与钱包回调。
type Server struct {
	addr   string
	agent  *agent.Agent
	apiKey string
}

// ServerOption 定义可选的服务配置。
type ServerOption func(*Server)

// WithAPIKey 开启静态 API 密钥认证。
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, ag *agent.Agent, opts ...ServerOption) *Server {
	s := &Server{addr: addr, agent: ag}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 组装全部路由与中间件。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/api/v1/chat", instrument("chat", http.HandlerFunc(s.handleChat)))
	mux.Handle("/api/v1/wallet/events", instrument("wallet_events", http.HandlerFunc(s.handleWalletEvent)))
	mux.Handle("/api/v1/sessions/history", instrument("session_history", http.HandlerFunc(s.handleSessionHistory)))
	return auth.Middleware(s.apiKey)(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleChat 处理一轮对话请求。
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.agent == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return
	}

	var req agent.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	resp, err := s.agent.Chat(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

// walletEventRequest 是前端钱包回调的请求载体。
type walletEventRequest struct {
	SessionID string         `json:"session_id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload"`
}

// handleWalletEvent 接收前端执行钱包工具后的回调。
func (s *Server) handleWalletEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.agent == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return
	}

	var req walletEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.Kind == "" {
		http.Error(w, "session_id 与 kind 不能为空", http.StatusBadRequest)
		return
	}

	if err := s.agent.ApplyWalletEvent(r.Context(), req.SessionID, req.Kind, req.Payload); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "accepted"})
}

// handleSessionHistory 返回指定会话的历史与审计轨迹。
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.agent == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id 不能为空", http.StatusBadRequest)
		return
	}

	turns, trace, err := s.agent.SessionHistory(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	writeJSON(w, map[string]any{
		"session_id": sessionID,
		"turns":      turns,
		"trace":      trace,
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError 将统一错误码映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case xerrors.CodeNotFound, xerrors.CodeMarketNotFound:
		status = http.StatusNotFound
	case xerrors.CodeTimeout:
		status = http.StatusGatewayTimeout
	case xerrors.CodeInitializationFailure:
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"code":  string(xerrors.CodeOf(err)),
	})
}

// instrument 为单个路由记录请求指标。
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
