package events

import "context"

// Kind 标识事件类别。
type Kind string

const (
	// KindWidgetUpdate 通知前端切换渲染控件。
	KindWidgetUpdate Kind = "widget_update"
	// KindWalletEvent 通知前端钱包状态发生变化。
	KindWalletEvent Kind = "wallet_event"
)

// Event 是推送给浏览器桥接层的一条 UI 事件。
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Kind      Kind           `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt int64          `json:"created_at"`
}

// Publisher 负责向事件总线投递事件。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Handler 处理消费到的事件。
type Handler func(ctx context.Context, event Event) error

// Consumer 负责从事件总线消费事件。
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// Bus 同时具备发布与消费能力。
type Bus interface {
	Publisher
	Consumer
}
