package diffuser

import (
	"context"
	"net/url"
	"strconv"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

func (c *Client) Diagnostic(ctx context.Context) (*model.Diagnostic, error) {
	diag := &model.Diagnostic{}
	if err := c.getJSON(ctx, "/api/diagnostic", diag); err != nil {
		return nil, err
	}
	return diag, nil
}

func (c *Client) ButtonStates(ctx context.Context) (*model.ButtonStates, error) {
	buttons := &model.ButtonStates{}
	if err := c.getJSON(ctx, "/api/diagnostic/buttons", buttons); err != nil {
		return nil, err
	}
	return buttons, nil
}

func (c *Client) LedAction(ctx context.Context, action model.LedAction) error {
	return c.postForm(ctx, "/api/diagnostic/led", url.Values{"action": {action.String()}}, nil)
}

// FanDiag drives the fan test actions. value is only meaningful for setmin,
// where it carries the PWM floor to calibrate to.
func (c *Client) FanDiag(ctx context.Context, action model.FanDiagAction, value *int) (*model.FanDiagResult, error) {
	form := url.Values{"action": {action.String()}}
	if value != nil {
		form.Set("value", strconv.Itoa(*value))
	}
	result := &model.FanDiagResult{}
	if err := c.postForm(ctx, "/api/diagnostic/fan", form, result); err != nil {
		return nil, err
	}
	return result, nil
}
