package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"Slate-Tron/internal/knowledge"
	"Slate-Tron/internal/session"
	"Slate-Tron/internal/tools"
)

// buildPlannerPrompt 生成规划器的 system 提示，包含封闭的工具目录说明。
func buildPlannerPrompt(catalog *tools.Catalog) string {
	var b strings.Builder
	b.WriteString("You are the planning engine of a JustLend assistant on TRON. ")
	b.WriteString("Decide which tools to call for the user's latest message. ")
	b.WriteString("Respond with ONLY a JSON array of objects shaped like ")
	b.WriteString(`{"type": "<tool name>", "args": {...}}. `)
	b.WriteString("Return [] when no tool is needed. Never invent tool names.\n\n")
	b.WriteString("Available tools:\n")
	for _, tool := range catalog.Tools() {
		b.WriteString("- ")
		b.WriteString(tool.Name)
		if tool.ArgsHint != "" {
			b.WriteString(" args: ")
			b.WriteString(tool.ArgsHint)
		}
		b.WriteString(" — ")
		b.WriteString(tool.Description)
		b.WriteString("\n")
	}
	b.WriteString("\nExamples:\n")
	b.WriteString(`User: "show me the lending markets" -> [{"type":"justlend_list_markets","args":{"limit":6}}]` + "\n")
	b.WriteString(`User: "connect my wallet" -> [{"type":"wallet_check_tronlink","args":{}},{"type":"wallet_connect","args":{}}]` + "\n")
	b.WriteString(`User: "thanks!" -> []` + "\n")
	return b.String()
}

// buildPlannerContext 将画像事实、历史窗口与前一轮工具结果拼成 user 消息。
func buildPlannerContext(message string, facts map[string]any, window []session.Turn, prior []ExecutedCall) string {
	var b strings.Builder
	if len(facts) > 0 {
		encoded, err := json.Marshal(facts)
		if err == nil {
			b.WriteString("Known user profile facts: ")
			b.Write(encoded)
			b.WriteString("\n")
		}
	}
	if len(window) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range window {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
	}
	if len(prior) > 0 {
		b.WriteString("Tool results from this turn so far:\n")
		for _, call := range prior {
			encoded, err := json.Marshal(call)
			if err != nil {
				continue
			}
			b.Write(encoded)
			b.WriteString("\n")
		}
	}
	b.WriteString("Latest user message: ")
	b.WriteString(message)
	return b.String()
}

// extractorSystemPrompt 指示模型从用户消息中提炼画像事实。
const extractorSystemPrompt = "You maintain a user profile for a lending assistant. " +
	"From the latest user message, extract durable facts worth remembering " +
	"(wallet addresses, preferred markets, risk appetite) and list keys that became stale. " +
	"Keys in forget must come from the known profile facts. " +
	`Respond with ONLY JSON: {"facts": {"key": value, ...}, "forget": ["key", ...]}. ` +
	`Respond with {"facts": {}, "forget": []} when there is nothing to record.`

// buildExtractorContext 把既有画像和最新消息拼成提取调用的 user 消息，
// 模型需要看到现有键才能给出可靠的 forget 列表。
func buildExtractorContext(message string, facts map[string]any) string {
	var b strings.Builder
	if len(facts) > 0 {
		if encoded, err := json.Marshal(facts); err == nil {
			b.WriteString("Known profile facts: ")
			b.Write(encoded)
			b.WriteString("\n")
		}
	}
	b.WriteString("Latest user message: ")
	b.WriteString(message)
	return b.String()
}

// summarizerSystemPrompt 指示模型基于工具结果生成面向用户的回复。
const summarizerSystemPrompt = "You are a friendly JustLend assistant on TRON. " +
	"Answer the user's message using ONLY the tool results and profile facts provided. " +
	"Do not invent numbers. Mention rates as percentages with two decimals. " +
	"If a tool failed, explain the problem briefly and suggest retrying. " +
	"Reply in the user's language, in plain prose without markdown tables."

// fallbackReply 在总结模型不可用时兜底。
const fallbackReply = "抱歉，我暂时无法生成回复，请稍后再试。/ Sorry, I could not produce an answer right now, please try again."

// buildSummaryContext 组装总结调用的 user 消息。
func buildSummaryContext(message string, facts map[string]any, snippets []knowledge.Snippet, executed []ExecutedCall) string {
	var b strings.Builder
	if len(snippets) > 0 {
		b.WriteString("Protocol notes:\n")
		for _, snippet := range snippets {
			fmt.Fprintf(&b, "- %s: %s\n", snippet.Title, snippet.Content)
		}
	}
	if len(facts) > 0 {
		if encoded, err := json.Marshal(facts); err == nil {
			b.WriteString("Profile facts: ")
			b.Write(encoded)
			b.WriteString("\n")
		}
	}
	if len(executed) > 0 {
		b.WriteString("Tool results:\n")
		for _, call := range executed {
			if encoded, err := json.Marshal(call); err == nil {
				b.Write(encoded)
				b.WriteString("\n")
			}
		}
	} else {
		b.WriteString("No tools were executed this turn.\n")
	}
	b.WriteString("User message: ")
	b.WriteString(message)
	return b.String()
}
