package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestStaticProviderQueryMatchesKeywords(t *testing.T) {
	provider := NewStaticProvider([]Snippet{
		{Title: "APY", Keywords: []string{"apy", "利率"}},
		{Title: "Wallet", Keywords: []string{"钱包"}},
	}, 3)

	results := provider.Query("USDT 市场的 APY 是多少")
	if len(results) != 1 || results[0].Title != "APY" {
		t.Fatalf("unexpected results: %+v", results)
	}

	if got := provider.Query("今天天气不错"); len(got) != 0 {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestStaticProviderMaxResults(t *testing.T) {
	provider := NewStaticProvider([]Snippet{
		{Title: "a", Keywords: []string{"justlend"}},
		{Title: "b", Keywords: []string{"justlend"}},
		{Title: "c", Keywords: []string{"justlend"}},
	}, 2)

	results := provider.Query("justlend 市场概览")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestNewDefaultProviderCoversProtocolTerms(t *testing.T) {
	provider := NewDefaultProvider(3)
	if got := provider.Query("什么是抵押因子"); len(got) == 0 {
		t.Fatalf("expected builtin snippet for collateral factor")
	}
	if got := provider.Query("tronlink 怎么连接"); len(got) == 0 {
		t.Fatalf("expected builtin snippet for tronlink")
	}
}

func TestLoadStaticProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")
	entries := []Snippet{{Title: "jToken", Keywords: []string{"jtoken"}}}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	provider, err := LoadStaticProvider(path, 3)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := provider.Query("jtoken 兑换率"); len(got) != 1 {
		t.Fatalf("unexpected results: %+v", got)
	}
}
