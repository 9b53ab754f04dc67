package agent

import "Slate-Tron/internal/tools"

// 前端渲染的控件类型。
const (
	WidgetIdle           = "idle"
	WidgetWallet         = "wallet"
	WidgetJustLendList   = "justlend-list"
	WidgetJustLendDetail = "justlend-detail"
	WidgetJustLendUser   = "justlend-user"
)

// selectWidget 根据本轮工具调用决定前端控件。
// 最后一个成功的后端工具优先，其次是任一钱包工具，否则保持空闲。
func selectWidget(executed []ExecutedCall) string {
	widget := WidgetIdle
	walletSeen := false
	for _, call := range executed {
		switch call.Type {
		case tools.WalletCheckTronLink, tools.WalletConnect, tools.WalletFetchBalance:
			walletSeen = true
		case tools.JustLendListMarkets:
			if call.Result != nil && call.Result.Success {
				widget = WidgetJustLendList
			}
		case tools.JustLendDetail:
			if call.Result != nil && call.Result.Success {
				widget = WidgetJustLendDetail
			}
		case tools.JustLendPosition:
			if call.Result != nil && call.Result.Success {
				widget = WidgetJustLendUser
			}
		}
	}
	if widget == WidgetIdle && walletSeen {
		return WidgetWallet
	}
	return widget
}
