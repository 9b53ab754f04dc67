package agent

import (
	"encoding/json"
	"strings"

	xerrors "Slate-Tron/internal/errors"
	"Slate-Tron/internal/tools"
)

// planItem 是规划器输出中的单个条目，解析阶段宽容接收任意形状。
type planItem struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args"`
}

// parsePlan 解析规划器的原始输出。支持裸 JSON 数组与
// {"function_calls": [...]} 包装，并剥离 Markdown 代码栅栏。
// 形状不合法的条目被丢弃，合法条目保持原有顺序。
func parsePlan(raw string) ([]tools.Call, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, xerrors.New(xerrors.CodePlanningFailure, "规划器输出为空")
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		var envelope struct {
			FunctionCalls []json.RawMessage `json:"function_calls"`
		}
		if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil || envelope.FunctionCalls == nil {
			return nil, xerrors.New(xerrors.CodePlanningFailure, "规划器输出不是合法 JSON 数组")
		}
		items = envelope.FunctionCalls
	}

	calls := make([]tools.Call, 0, len(items))
	for _, rawItem := range items {
		var item planItem
		if err := json.Unmarshal(rawItem, &item); err != nil {
			continue
		}
		if strings.TrimSpace(item.Type) == "" {
			continue
		}
		calls = append(calls, tools.Call{Type: strings.TrimSpace(item.Type), Args: item.Args})
	}
	return calls, nil
}

// factUpdate 是事实提取器的结构化输出。
type factUpdate struct {
	Facts  map[string]any `json:"facts"`
	Forget []string       `json:"forget"`
}

// parseFacts 解析事实提取器的输出。严格解析失败后退回宽容模式：
// 截取最外层花括号之间的片段再试一次，应对模型在 JSON 前后夹带提示语。
func parseFacts(raw string) (factUpdate, error) {
	cleaned := stripFences(raw)
	var update factUpdate
	strictErr := json.Unmarshal([]byte(cleaned), &update)
	if strictErr == nil {
		return update, nil
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		update = factUpdate{}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &update); err == nil {
			return update, nil
		}
	}
	return factUpdate{}, xerrors.Wrap(xerrors.CodeExtractionFailure, strictErr, "事实提取输出不是合法 JSON")
}

// stripFences 去掉模型偶尔附带的 ```json 代码栅栏。
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
