package booking

import "tablebooking/internal/modules/livefeed"

// SlotNotifier is told whenever a booking starts or stops holding a slot.
type SlotNotifier interface {
	SlotChanged(change livefeed.SlotChange)
}

type noopNotifier struct{}

func (noopNotifier) SlotChanged(livefeed.SlotChange) {}
