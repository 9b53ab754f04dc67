package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider 定义知识库检索的通用接口。
type Provider interface {
	Query(message string) []Snippet
}

// Snippet 描述可供大模型引用的一段知识。
type Snippet struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
	Tags     []string `json:"tags"`
}

// StaticProvider 通过加载 JSON 文件提供静态知识检索能力。
type StaticProvider struct {
	items      []Snippet
	maxResults int
}

// NewStaticProvider 创建静态知识库实例。
func NewStaticProvider(items []Snippet, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &StaticProvider{
		items:      items,
		maxResults: maxResults,
	}
}

// NewDefaultProvider 使用内置的协议术语条目创建知识库实例。
func NewDefaultProvider(maxResults int) *StaticProvider {
	return NewStaticProvider(defaultSnippets(), maxResults)
}

// LoadStaticProvider 从 JSON 文件加载知识条目。
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("知识库文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析知识库路径失败: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}
	defer file.Close()

	var entries []Snippet
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("解析知识库文件失败: %w", err)
	}

	return NewStaticProvider(entries, maxResults), nil
}

// Query 根据用户消息进行简单的关键词匹配。
func (p *StaticProvider) Query(message string) []Snippet {
	if p == nil {
		return nil
	}

	message = strings.ToLower(strings.TrimSpace(message))

	results := make([]Snippet, 0, p.maxResults)
	for _, item := range p.items {
		if matches(item, message) {
			results = append(results, item)
			if len(results) >= p.maxResults {
				break
			}
		}
	}
	return results
}

func matches(snippet Snippet, message string) bool {
	for _, keyword := range snippet.Keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}
		if strings.Contains(message, normalized) {
			return true
		}
	}
	for _, tag := range snippet.Tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if strings.Contains(message, normalized) {
			return true
		}
	}
	return false
}

func defaultSnippets() []Snippet {
	return []Snippet{
		{
			Title:    "APY",
			Content:  "APY（年化收益率）由每区块利率按 TRON 一年约 730 万个区块复利折算得到，存款与借款分别计算。",
			Keywords: []string{"apy", "年化", "收益率", "利率", "rate"},
			Tags:     []string{"justlend"},
		},
		{
			Title:    "抵押因子",
			Content:  "抵押因子决定某市场的存款中有多少比例可以作为借款的抵押品，例如 0.75 表示最多可借出存款价值的 75%。",
			Keywords: []string{"抵押", "collateral", "factor", "借款上限"},
			Tags:     []string{"justlend"},
		},
		{
			Title:    "jToken",
			Content:  "向 JustLend 市场存款会获得对应的 jToken（如 jUSDT），其兑换率随利息积累而上升，赎回时按兑换率换回底层资产。",
			Keywords: []string{"jtoken", "兑换率", "exchange", "存款凭证"},
			Tags:     []string{"justlend"},
		},
		{
			Title:    "账户流动性",
			Content:  "账户流动性表示当前还可以安全借出的价值；若出现欠缺（shortfall）则说明抵押不足，仓位可能被清算。",
			Keywords: []string{"流动性", "liquidity", "shortfall", "清算", "健康度"},
			Tags:     []string{"justlend"},
		},
		{
			Title:    "TronLink",
			Content:  "TronLink 是 TRON 生态常用的浏览器扩展钱包，连接后才能读取地址余额与 JustLend 仓位。",
			Keywords: []string{"tronlink", "钱包", "连接", "wallet"},
			Tags:     []string{"wallet"},
		},
	}
}

// Ensure StaticProvider 实现 Provider 接口。
var _ Provider = (*StaticProvider)(nil)
