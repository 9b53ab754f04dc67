package tools

import (
	"context"
	"strings"

	xerrors "Slate-Tron/internal/errors"
)

// Kind 区分由前端执行的钱包工具与由后端执行的数据抓取工具。
type Kind string

const (
	KindFrontend Kind = "frontend"
	KindBackend  Kind = "backend"
)

// Call 是规划器产出的一次工具调用。
type Call struct {
	ID   string         `json:"id,omitempty"`
	Type string         `json:"type"`
	Args map[string]any `json:"args,omitempty"`
}

// Result 是工具执行的统一结果载体。失败通过 Success/ErrorType 表达，
// 不向上层抛出异常。
type Result struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// Handler 执行后端工具。
type Handler func(ctx context.Context, args map[string]any) Result

// Tool 描述目录中的一个工具。
type Tool struct {
	Name        string
	Kind        Kind
	Description string
	ArgsHint    string
	Handler     Handler
}

// Catalog 是封闭的工具目录，规划器只能引用其中登记的名字。
type Catalog struct {
	order []string
	tools map[string]Tool
}

// NewCatalog 创建空目录。
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Tool)}
}

// Register 登记一个工具，重名时覆盖但保持原有顺序。
func (c *Catalog) Register(tool Tool) {
	if tool.Name == "" {
		return
	}
	if _, ok := c.tools[tool.Name]; !ok {
		c.order = append(c.order, tool.Name)
	}
	c.tools[tool.Name] = tool
}

// Lookup 按名字查找工具。
func (c *Catalog) Lookup(name string) (Tool, bool) {
	tool, ok := c.tools[name]
	return tool, ok
}

// Names 返回登记顺序的工具名列表。
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Tools 返回登记顺序的工具列表。
func (c *Catalog) Tools() []Tool {
	tools := make([]Tool, 0, len(c.order))
	for _, name := range c.order {
		tools = append(tools, c.tools[name])
	}
	return tools
}

// Validate 校验一次调用是否引用了目录中的工具。
func (c *Catalog) Validate(call Call) error {
	name := strings.TrimSpace(call.Type)
	if name == "" {
		return xerrors.New(xerrors.CodeToolValidation, "工具名不能为空")
	}
	if _, ok := c.tools[name]; !ok {
		return xerrors.New(xerrors.CodeToolValidation, "未登记的工具: "+name,
			xerrors.WithMetadata("tool", name))
	}
	return nil
}

// Ok 构造成功结果。
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail 将错误转换为结果载体，错误码映射为驼峰形式的 error_type。
func Fail(err error) Result {
	if err == nil {
		return Result{Success: false, ErrorType: "Unknown"}
	}
	return Result{
		Success:   false,
		Error:     err.Error(),
		ErrorType: ErrorType(err),
	}
}

// ErrorType 返回错误对应的驼峰形式类型名，例如 MARKET_NOT_FOUND -> MarketNotFound。
func ErrorType(err error) string {
	return camelCode(string(xerrors.CodeOf(err)))
}

func camelCode(code string) string {
	parts := strings.Split(strings.ToLower(code), "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	if b.Len() == 0 {
		return "Unknown"
	}
	return b.String()
}
