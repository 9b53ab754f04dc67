package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"Slate-Tron/internal/justlend"
	"Slate-Tron/internal/llm"
	"Slate-Tron/internal/session"
	"Slate-Tron/internal/tools"
)

// scriptedLLM 按调用顺序返回预先编排的输出。
type scriptedLLM struct {
	responses []string
	errs      []error
	requests  []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if idx < len(s.errs) && s.errs[idx] != nil {
		return "", s.errs[idx]
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	return "", errors.New("script exhausted")
}

type stubReader struct {
	lastLimit   int
	lastSymbol  string
	lastAddress string
	marketsErr  error
}

func (r *stubReader) Markets(_ context.Context, limit int) (*justlend.MarketList, error) {
	r.lastLimit = limit
	if r.marketsErr != nil {
		return nil, r.marketsErr
	}
	return &justlend.MarketList{Count: 1, Markets: []justlend.MarketSummary{{Symbol: "jUSDT"}}}, nil
}

func (r *stubReader) MarketDetail(_ context.Context, symbol string) (*justlend.MarketDetail, error) {
	r.lastSymbol = symbol
	return &justlend.MarketDetail{Symbol: symbol}, nil
}

func (r *stubReader) UserPosition(_ context.Context, address string) (*justlend.UserPosition, error) {
	r.lastAddress = address
	return &justlend.UserPosition{Address: address}, nil
}

const emptyFacts = `{"facts": {}, "forget": []}`

func newTestAgent(client llm.Client, reader tools.MarketReader, opts ...Option) *Agent {
	catalog := tools.BuildCatalog(reader, nil, 6)
	return New(client, catalog, session.NewRegistry(), opts...)
}

func TestChatExecutesPlannedTools(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		emptyFacts,
		"```json\n[{\"type\":\"justlend_list_markets\",\"args\":{\"limit\":6}}]\n```",
		"jUSDT 市场的存款年化约为 3.21%。",
	}}
	reader := &stubReader{}
	ag := newTestAgent(client, reader)

	resp, err := ag.Chat(context.Background(), ChatRequest{Message: "列出借贷市场"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Reply != "jUSDT 市场的存款年化约为 3.21%。" {
		t.Fatalf("unexpected reply: %s", resp.Reply)
	}
	if len(resp.FunctionCalls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(resp.FunctionCalls))
	}
	call := resp.FunctionCalls[0]
	if call.Type != tools.JustLendListMarkets {
		t.Fatalf("unexpected tool: %s", call.Type)
	}
	if call.Result == nil || !call.Result.Success {
		t.Fatalf("expected successful backend result: %+v", call.Result)
	}
	if reader.lastLimit != 6 {
		t.Fatalf("expected limit 6, got %d", reader.lastLimit)
	}
	if resp.Widget != WidgetJustLendList {
		t.Fatalf("unexpected widget: %s", resp.Widget)
	}
	if resp.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
}

func TestChatDropsInvalidPlanItems(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		emptyFacts,
		`[{"type":"no_such_tool"},{"args":{"limit":3}},{"type":"justlend_market_detail","args":{"symbol":"jTRX"}}]`,
		"好的。",
	}}
	reader := &stubReader{}
	ag := newTestAgent(client, reader)

	resp, err := ag.Chat(context.Background(), ChatRequest{Message: "查一下 jTRX"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.FunctionCalls) != 1 || resp.FunctionCalls[0].Type != tools.JustLendDetail {
		t.Fatalf("expected only the valid call to survive: %+v", resp.FunctionCalls)
	}
	if reader.lastSymbol != "jTRX" {
		t.Fatalf("unexpected symbol: %s", reader.lastSymbol)
	}
	if resp.Widget != WidgetJustLendDetail {
		t.Fatalf("unexpected widget: %s", resp.Widget)
	}
}

func TestChatForwardsFrontendTools(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		emptyFacts,
		`[{"type":"wallet_check_tronlink","args":{}},{"type":"wallet_connect","args":{}}]`,
		"请在弹出的 TronLink 窗口中确认连接。",
	}}
	ag := newTestAgent(client, &stubReader{})

	resp, err := ag.Chat(context.Background(), ChatRequest{Message: "连接钱包"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.FunctionCalls) != 2 {
		t.Fatalf("expected two forwarded calls, got %d", len(resp.FunctionCalls))
	}
	for _, call := range resp.FunctionCalls {
		if call.Result != nil {
			t.Fatalf("frontend call must not carry a backend result: %+v", call)
		}
	}
	if resp.Widget != WidgetWallet {
		t.Fatalf("unexpected widget: %s", resp.Widget)
	}
}

func TestChatToolCallCap(t *testing.T) {
	plan := `[{"type":"justlend_list_markets"},{"type":"justlend_list_markets"},{"type":"justlend_list_markets"},{"type":"justlend_list_markets"}]`
	client := &scriptedLLM{responses: []string{emptyFacts, plan, "完成。"}}
	ag := newTestAgent(client, &stubReader{}, WithToolCallCap(2))

	resp, err := ag.Chat(context.Background(), ChatRequest{Message: "刷新市场"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.FunctionCalls) != 2 {
		t.Fatalf("expected cap of 2, got %d calls", len(resp.FunctionCalls))
	}
}

func TestChatPlannerEnvelopeAccepted(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		emptyFacts,
		`{"function_calls": [{"type":"justlend_list_markets","args":{"limit":3}}]}`,
		"市场如下。",
	}}
	reader := &stubReader{}
	ag := newTestAgent(client, reader)

	resp, err := ag.Chat(context.Background(), ChatRequest{Message: "市场概览"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.FunctionCalls) != 1 || reader.lastLimit != 3 {
		t.Fatalf("envelope plan not executed: %+v", resp.FunctionCalls)
	}
}

func TestChatFailedToolBecomesResultPayload(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		emptyFacts,
		`[{"type":"justlend_list_markets"}]`,
		"抱歉，市场数据暂时不可用。",
	}}
	reader := &stubReader{marketsErr: errors.New("连接中断")}
	ag := newTestAgent(client, reader)

	resp, err := ag.Chat(context.Background(), ChatRequest{Message: "列出市场"})
	if err != nil {
		t.Fatalf("tool failure must not fail the turn: %v", err)
	}
	call := resp.FunctionCalls[0]
	if call.Result == nil || call.Result.Success {
		t.Fatalf("expected failed result payload: %+v", call.Result)
	}
	if call.Result.ErrorType == "" {
		t.Fatalf("expected error_type to be set")
	}
	if resp.Widget != WidgetIdle {
		t.Fatalf("failed call must not drive a data widget: %s", resp.Widget)
	}
}

func TestChatSummarizerFallback(t *testing.T) {
	client := &scriptedLLM{
		responses: []string{emptyFacts, `[]`, ""},
		errs:      []error{nil, nil, errors.New("总结服务不可用")},
	}
	ag := newTestAgent(client, &stubReader{})

	resp, err := ag.Chat(context.Background(), ChatRequest{Message: "你好"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Reply != fallbackReply {
		t.Fatalf("expected fallback reply, got %s", resp.Reply)
	}
}

func TestChatExtractionDegradesGracefully(t *testing.T) {
	client := &scriptedLLM{
		responses: []string{"", `[]`, "你好！"},
		errs:      []error{errors.New("提取失败"), nil, nil},
	}
	ag := newTestAgent(client, &stubReader{})

	resp, err := ag.Chat(context.Background(), ChatRequest{Message: "你好"})
	if err != nil {
		t.Fatalf("extraction failure must not fail the turn: %v", err)
	}
	if resp.Reply != "你好！" {
		t.Fatalf("unexpected reply: %s", resp.Reply)
	}
}

func TestChatAppliesExtractedFacts(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		`{"facts": {"preferred_market": "jUSDT"}, "forget": ["stale_key"]}`,
		`[]`,
		"记住了。",
	}}
	registry := session.NewRegistry()
	catalog := tools.BuildCatalog(&stubReader{}, nil, 6)
	ag := New(client, catalog, registry)

	sess, unlock := registry.Acquire("sess-1")
	sess.SetFact("stale_key", "old")
	unlock()

	if _, err := ag.Chat(context.Background(), ChatRequest{SessionID: "sess-1", Message: "我偏好 jUSDT"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, unlock, ok := registry.Peek("sess-1")
	if !ok {
		t.Fatalf("session not found")
	}
	defer unlock()
	if v, ok := sess.Fact("preferred_market"); !ok || v != "jUSDT" {
		t.Fatalf("expected preferred_market fact, got %v", v)
	}
	if _, ok := sess.Fact("stale_key"); ok {
		t.Fatalf("expected stale_key to be forgotten")
	}
}

func TestChatExtractsFromProseWrappedJSON(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		`Sure! Here is the update: {"facts": {"risk_appetite": "low"}, "forget": []} Hope that helps.`,
		`[]`,
		"好的。",
	}}
	registry := session.NewRegistry()
	catalog := tools.BuildCatalog(&stubReader{}, nil, 6)
	ag := New(client, catalog, registry)

	if _, err := ag.Chat(context.Background(), ChatRequest{SessionID: "sess-prose", Message: "我的风险偏好比较低"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, unlock, ok := registry.Peek("sess-prose")
	if !ok {
		t.Fatalf("session not found")
	}
	defer unlock()
	if v, ok := sess.Fact("risk_appetite"); !ok || v != "low" {
		t.Fatalf("expected risk_appetite fact, got %v", v)
	}
}

func TestExtractorReceivesKnownProfile(t *testing.T) {
	client := &scriptedLLM{responses: []string{emptyFacts, `[]`, "好的。"}}
	registry := session.NewRegistry()
	catalog := tools.BuildCatalog(&stubReader{}, nil, 6)
	ag := New(client, catalog, registry)

	sess, unlock := registry.Acquire("sess-profile")
	sess.SetFact("wallet_address", "TQm6RbQXather7GJNUz3tMDi79yBvPdYRW")
	unlock()

	if _, err := ag.Chat(context.Background(), ChatRequest{SessionID: "sess-profile", Message: "帮我看看仓位"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.requests) == 0 {
		t.Fatalf("extractor was not called")
	}
	msgs := client.requests[0].Messages
	user := msgs[len(msgs)-1].Content
	if !strings.Contains(user, "wallet_address") || !strings.Contains(user, "TQm6RbQXather7GJNUz3tMDi79yBvPdYRW") {
		t.Fatalf("extractor context missing known profile facts: %s", user)
	}
}

func TestChatFillsWalletAddressFromProfile(t *testing.T) {
	client := &scriptedLLM{responses: []string{
		emptyFacts,
		`[{"type":"justlend_user_position","args":{}}]`,
		"你的仓位如下。",
	}}
	registry := session.NewRegistry()
	reader := &stubReader{}
	catalog := tools.BuildCatalog(reader, nil, 6)
	ag := New(client, catalog, registry)

	if err := ag.ApplyWalletEvent(context.Background(), "sess-1", "wallet_connected", map[string]any{
		"address": "TXYZa1b2c3",
		"network": "mainnet",
	}); err != nil {
		t.Fatalf("wallet event failed: %v", err)
	}

	resp, err := ag.Chat(context.Background(), ChatRequest{SessionID: "sess-1", Message: "我的仓位"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reader.lastAddress != "TXYZa1b2c3" {
		t.Fatalf("expected address filled from profile, got %q", reader.lastAddress)
	}
	if resp.Widget != WidgetJustLendUser {
		t.Fatalf("unexpected widget: %s", resp.Widget)
	}
}

func TestApplyWalletEventUnknownKind(t *testing.T) {
	ag := newTestAgent(&scriptedLLM{}, &stubReader{})
	if err := ag.ApplyWalletEvent(context.Background(), "sess-1", "wallet_exploded", nil); err == nil {
		t.Fatalf("expected error for unknown event kind")
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	ag := newTestAgent(&scriptedLLM{}, &stubReader{})
	if _, err := ag.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatalf("expected error for empty message")
	}
}
