package inventory

import (
	"fmt"

	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/platform"
)

// FailedItem is one inventory update the platform did not apply.
type FailedItem struct {
	Item    platform.InventoryItem `json:"item"`
	Code    int                    `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
	Err     error                  `json:"-"`
}

func (f FailedItem) String() string {
	switch {
	case f.Err != nil:
		return fmt.Sprintf("item %s: %v", f.Item.ItemID, f.Err)
	case f.Message != "":
		return fmt.Sprintf("item %s: code %d: %s", f.Item.ItemID, f.Code, f.Message)
	default:
		return fmt.Sprintf("item %s: code %d", f.Item.ItemID, f.Code)
	}
}

// UpdateError reports an inventory update where at least one item failed.
// Updated lists the items that were applied before the failure surfaced.
type UpdateError struct {
	Strategy string
	Failed   []FailedItem
	Updated  []platform.InventoryItem
}

// Error implements the error interface.
func (e *UpdateError) Error() string {
	msg := fmt.Sprintf("inventory %s update: %d not updated, %d updated", e.Strategy, len(e.Failed), len(e.Updated))
	if len(e.Failed) > 0 {
		msg += " (first: " + e.Failed[0].String() + ")"
	}
	return msg
}

// Is matches batch.ErrPartialFailure.
func (e *UpdateError) Is(target error) bool {
	return target == batch.ErrPartialFailure
}

// Unwrap exposes the transport errors of failed items.
func (e *UpdateError) Unwrap() []error {
	var errs []error
	for _, f := range e.Failed {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// FailedItems returns the inputs that were not applied.
func (e *UpdateError) FailedItems() []platform.InventoryItem {
	out := make([]platform.InventoryItem, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Item)
	}
	return out
}
