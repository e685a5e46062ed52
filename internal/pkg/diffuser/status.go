package diffuser

import (
	"context"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

// Status fetches the full snapshot. This hits every subsystem on the device
// and is kept off the repeating poll path on purpose.
func (c *Client) Status(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	if err := c.getJSON(ctx, "/api/status", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// StatusLite fetches the reduced snapshot carrying only the frequently
// changing fields (fan, link dots, cartridge presence).
func (c *Client) StatusLite(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	if err := c.getJSON(ctx, "/api/status/lite", snap); err != nil {
		return nil, err
	}
	return snap, nil
}
