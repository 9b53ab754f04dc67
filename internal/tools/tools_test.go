package tools

import (
	"context"
	"testing"
	"time"

	"Slate-Tron/internal/cache"
	xerrors "Slate-Tron/internal/errors"
	"Slate-Tron/internal/justlend"
)

type stubReader struct {
	listCalls int
	list      *justlend.MarketList
	listErr   error
	detail    *justlend.MarketDetail
	detailErr error
	position  *justlend.UserPosition
	posErr    error
}

func (s *stubReader) Markets(context.Context, int) (*justlend.MarketList, error) {
	s.listCalls++
	return s.list, s.listErr
}

func (s *stubReader) MarketDetail(context.Context, string) (*justlend.MarketDetail, error) {
	return s.detail, s.detailErr
}

func (s *stubReader) UserPosition(context.Context, string) (*justlend.UserPosition, error) {
	return s.position, s.posErr
}

func TestCatalogIsClosed(t *testing.T) {
	c := BuildCatalog(&stubReader{}, nil, 6)

	known := []string{
		WalletCheckTronLink, WalletConnect, WalletFetchBalance,
		JustLendListMarkets, JustLendDetail, JustLendPosition,
	}
	names := c.Names()
	if len(names) != len(known) {
		t.Fatalf("catalog size = %d, want %d", len(names), len(known))
	}
	for _, name := range known {
		if err := c.Validate(Call{Type: name}); err != nil {
			t.Fatalf("known tool rejected: %s", name)
		}
	}
	if err := c.Validate(Call{Type: "rm_rf_slash"}); err == nil {
		t.Fatalf("unknown tool must be rejected")
	}
	if xerrors.CodeOf(c.Validate(Call{Type: "nope"})) != xerrors.CodeToolValidation {
		t.Fatalf("expected TOOL_VALIDATION code")
	}
}

func TestListMarketsUsesCache(t *testing.T) {
	reader := &stubReader{list: &justlend.MarketList{
		Count:   1,
		Markets: []justlend.MarketSummary{{Symbol: "jTRX"}},
	}}
	memCache := cache.NewMemoryCache(time.Minute)
	c := BuildCatalog(reader, memCache, 6)

	tool, _ := c.Lookup(JustLendListMarkets)
	first := tool.Handler(context.Background(), map[string]any{"limit": float64(1)})
	if !first.Success {
		t.Fatalf("unexpected failure: %+v", first)
	}
	second := tool.Handler(context.Background(), map[string]any{"limit": float64(1)})
	if !second.Success {
		t.Fatalf("unexpected failure: %+v", second)
	}
	if reader.listCalls != 1 {
		t.Fatalf("expected cache to absorb the second call, got %d reader calls", reader.listCalls)
	}
}

func TestListMarketsDefaultsLimit(t *testing.T) {
	reader := &stubReader{list: &justlend.MarketList{Count: 0, Markets: []justlend.MarketSummary{}}}
	c := BuildCatalog(reader, nil, 6)
	tool, _ := c.Lookup(JustLendListMarkets)

	result := tool.Handler(context.Background(), nil)
	if !result.Success {
		t.Fatalf("unexpected failure: %+v", result)
	}
	if reader.listCalls != 1 {
		t.Fatalf("expected a reader call")
	}
}

func TestMarketDetailNotFoundResult(t *testing.T) {
	reader := &stubReader{detailErr: xerrors.New(xerrors.CodeMarketNotFound, "未找到市场: ZZZ")}
	c := BuildCatalog(reader, nil, 6)
	tool, _ := c.Lookup(JustLendDetail)

	result := tool.Handler(context.Background(), map[string]any{"symbol": "ZZZ"})
	if result.Success {
		t.Fatalf("expected failure result")
	}
	if result.ErrorType != "MarketNotFound" {
		t.Fatalf("error_type = %q, want MarketNotFound", result.ErrorType)
	}
}

func TestMarketDetailRequiresSymbol(t *testing.T) {
	c := BuildCatalog(&stubReader{}, nil, 6)
	tool, _ := c.Lookup(JustLendDetail)

	result := tool.Handler(context.Background(), nil)
	if result.Success || result.ErrorType != "ToolValidation" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestUserPositionRequiresAddress(t *testing.T) {
	c := BuildCatalog(&stubReader{}, nil, 6)
	tool, _ := c.Lookup(JustLendPosition)

	result := tool.Handler(context.Background(), map[string]any{})
	if result.Success || result.ErrorType != "ToolValidation" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestFrontendToolsHaveNoHandler(t *testing.T) {
	c := BuildCatalog(&stubReader{}, nil, 6)
	for _, name := range []string{WalletCheckTronLink, WalletConnect, WalletFetchBalance} {
		tool, ok := c.Lookup(name)
		if !ok || tool.Kind != KindFrontend || tool.Handler != nil {
			t.Fatalf("unexpected frontend tool shape: %+v", tool)
		}
	}
}

func TestErrorTypeMapping(t *testing.T) {
	cases := map[xerrors.Code]string{
		xerrors.CodeMarketNotFound:   "MarketNotFound",
		xerrors.CodeRetriesExhausted: "RetriesExhausted",
		xerrors.CodeToolValidation:   "ToolValidation",
	}
	for code, want := range cases {
		if got := ErrorType(xerrors.New(code, "")); got != want {
			t.Fatalf("ErrorType(%s) = %q, want %q", code, got, want)
		}
	}
}
