package diffuser

import (
	"context"
	"net/url"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

// UpdateStatus fetches the firmware update tracker state.
func (c *Client) UpdateStatus(ctx context.Context) (*model.UpdateSnapshot, error) {
	status := &model.UpdateSnapshot{}
	if err := c.getJSON(ctx, "/api/update/status", status); err != nil {
		return nil, err
	}
	return status, nil
}

// TriggerUpdateCheck asks the device to look for a newer release. The
// answer arrives later through /api/update/status polling.
func (c *Client) TriggerUpdateCheck(ctx context.Context) error {
	return c.postForm(ctx, "/api/update/check", url.Values{}, nil)
}

// TriggerUpdateInstall starts the in-place OTA download on platforms that
// support it.
func (c *Client) TriggerUpdateInstall(ctx context.Context) error {
	return c.postForm(ctx, "/api/update/install", url.Values{}, nil)
}
