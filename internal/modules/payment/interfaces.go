package payment

import (
	"context"

	"tablebooking/internal/gateway"
	"tablebooking/internal/modules/livefeed"
)

// Gateway is the subset of the payment gateway client the service calls.
type Gateway interface {
	CreateIntent(ctx context.Context, p gateway.CreateIntentParams) (*gateway.Intent, error)
	GetIntent(ctx context.Context, id string) (*gateway.Intent, error)
	CreateRefund(ctx context.Context, p gateway.CreateRefundParams) (*gateway.Refund, error)
}

type SlotNotifier interface {
	SlotChanged(change livefeed.SlotChange)
}

type noopNotifier struct{}

func (noopNotifier) SlotChanged(livefeed.SlotChange) {}
