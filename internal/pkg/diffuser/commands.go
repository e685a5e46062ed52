package diffuser

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

// SendFan posts a single fan intent (power, speed, timer, interval,
// interval_on, interval_off) and returns the echoed authoritative fan
// sub-state. The device may clamp or refuse the requested value; the echo,
// not the intent, is what gets merged.
func (c *Client) SendFan(ctx context.Context, key, value string) (*model.Snapshot, error) {
	form := url.Values{key: {value}}
	echo := &model.Snapshot{}
	if err := c.postForm(ctx, "/api/fan", form, echo); err != nil {
		return nil, err
	}
	c.logger.Debug("fan command acknowledged", zap.String("key", key), zap.String("value", value))
	return echo, nil
}

// SaveWifi submits new station credentials. The device answers before it
// reconnects, so the returned message is all the confirmation there is.
func (c *Client) SaveWifi(ctx context.Context, ssid, password string) (string, error) {
	form := url.Values{"ssid": {ssid}, "password": {password}}
	var a ack
	if err := c.postForm(ctx, "/api/wifi", form, &a); err != nil {
		return "", err
	}
	if err := a.toError(); err != nil {
		return "", err
	}
	return a.Message, nil
}

func (c *Client) SaveMqtt(ctx context.Context, host string, port int, user, password string) (string, error) {
	form := url.Values{
		"host":     {host},
		"port":     {strconv.Itoa(port)},
		"user":     {user},
		"password": {password},
	}
	var a ack
	if err := c.postForm(ctx, "/api/mqtt", form, &a); err != nil {
		return "", err
	}
	if err := a.toError(); err != nil {
		return "", err
	}
	return a.Message, nil
}

// SaveNight is fire-and-forget on the device side.
func (c *Client) SaveNight(ctx context.Context, settings model.NightSettings) error {
	form := url.Values{
		"enabled":    {strconv.FormatBool(settings.Enabled)},
		"start":      {settings.Start},
		"end":        {settings.End},
		"brightness": {strconv.Itoa(settings.Brightness)},
	}
	return c.postForm(ctx, "/api/night", form, nil)
}

func (c *Client) SetDeviceName(ctx context.Context, name string) error {
	var a ack
	if err := c.postForm(ctx, "/api/device", url.Values{"name": {name}}, &a); err != nil {
		return err
	}
	return a.toError()
}

// Passwords reports whether custom OTA/AP passwords are set.
func (c *Client) Passwords(ctx context.Context) (*model.PasswordStatus, error) {
	status := &model.PasswordStatus{}
	if err := c.getJSON(ctx, "/api/passwords", status); err != nil {
		return nil, err
	}
	return status, nil
}

// RotatePasswords sets a new OTA and/or AP password; empty values are left
// out of the form entirely. Callers validate that at least one is present.
func (c *Client) RotatePasswords(ctx context.Context, otaPassword, apPassword string) (string, error) {
	form := url.Values{}
	if otaPassword != "" {
		form.Set("ota_password", otaPassword)
	}
	if apPassword != "" {
		form.Set("ap_password", apPassword)
	}
	var a ack
	if err := c.postForm(ctx, "/api/passwords", form, &a); err != nil {
		return "", err
	}
	if err := a.toError(); err != nil {
		return "", err
	}
	return a.Message, nil
}

func (c *Client) Rfid(ctx context.Context, action model.RfidAction) (string, error) {
	var a ack
	if err := c.postForm(ctx, "/api/rfid", url.Values{"action": {action.String()}}, &a); err != nil {
		return "", err
	}
	if err := a.toError(); err != nil {
		return "", err
	}
	return a.Message, nil
}

// Reset restarts the device; it goes away mid-response, so transport
// failures after posting are expected and ignored.
func (c *Client) Reset(ctx context.Context) error {
	return c.postForm(ctx, "/api/reset", url.Values{}, nil)
}
