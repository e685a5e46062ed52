package diffuser

import (
	"context"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

// Logs returns the device's ring buffer of log entries, oldest first.
func (c *Client) Logs(ctx context.Context) ([]model.LogEntry, error) {
	entries := []model.LogEntry{}
	if err := c.getJSON(ctx, "/api/logs", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) ClearLogs(ctx context.Context) error {
	return c.delete(ctx, "/api/logs")
}
