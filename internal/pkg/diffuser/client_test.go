package diffuser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/diffuser-panel/internal/pkg/config"
	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(&config.DeviceConfig{Host: srv.URL, Timeout: 2 * time.Second})
}

func TestStatus_ParsesSnapshot(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"wifi":{"connected":true,"ssid":"home","rssi":-60},
			"fan":{"on":true,"speed":50,"timer_active":false,"remaining_minutes":0},
			"device":{"platform":"ESP32","version":"1.4.0"},
			"night":{"enabled":false,"start":"22:00","end":"07:00","brightness":30}
		}`))
	}))

	snap, err := c.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Fan)
	assert.Equal(t, 50, *snap.Fan.Speed)
	require.NotNil(t, snap.Device)
	assert.Equal(t, model.PlatformESP32, *snap.Device.Platform)
	require.NotNil(t, snap.Night)
	assert.Equal(t, "22:00", *snap.Night.Start)
	assert.Nil(t, snap.Rfid, "absent section stays nil")
}

func TestSendFan_PostsSingleIntent(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/fan", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("speed"))
		assert.Len(t, r.PostForm, 1)
		_, _ = w.Write([]byte(`{"fan":{"on":true,"speed":40,"timer_active":false,"remaining_minutes":0}}`))
	}))

	echo, err := c.SendFan(context.Background(), "speed", "42")
	require.NoError(t, err)
	require.NotNil(t, echo.Fan)
	// device clamped to 40; the echo is authoritative
	assert.Equal(t, 40, *echo.Fan.Speed)
}

func TestErrors_Taxonomy(t *testing.T) {
	t.Parallel()

	t.Run("transport", func(t *testing.T) {
		t.Parallel()
		c := New(&config.DeviceConfig{Host: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
		_, err := c.Status(context.Background())
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("non-2xx", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		_, err := c.Status(context.Background())
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"fan":`))
		}))
		_, err := c.StatusLite(context.Background())
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("rejection", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"name too long"}`))
		}))
		err := c.SetDeviceName(context.Background(), "a-very-long-name")
		assert.ErrorIs(t, err, ErrRejected)
		assert.Contains(t, err.Error(), "name too long")
	})
}

func TestRotatePasswords_OmitsEmptyFields(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("ota_password"))
		assert.False(t, r.PostForm.Has("ap_password"))
		_, _ = w.Write([]byte(`{"success":true,"message":"Passwords saved. Restart device to apply."}`))
	}))

	msg, err := c.RotatePasswords(context.Background(), "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "Passwords saved. Restart device to apply.", msg)
}

func TestFanDiag_SetMinCarriesValue(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "setmin", r.PostForm.Get("action"))
		assert.Equal(t, "70", r.PostForm.Get("value"))
		_, _ = w.Write([]byte(`{"success":true,"min_pwm":70}`))
	}))

	v := 70
	result, err := c.FanDiag(context.Background(), model.FanDiagSetMin, &v)
	require.NoError(t, err)
	assert.Equal(t, 70, result.MinPwm)
}

func TestLogs_RoundTrip(t *testing.T) {
	t.Parallel()
	var deleted bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/logs", r.URL.Path)
		if r.Method == http.MethodDelete {
			deleted = true
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(`[{"l":"INFO","m":"boot","u":1200,"e":0},{"l":"ERROR","m":"mqtt drop","u":90000,"e":1756648530}]`))
	}))

	entries, err := c.Logs(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.LogError, entries[1].Level)
	assert.Equal(t, int64(1756648530), entries[1].Epoch)

	require.NoError(t, c.ClearLogs(context.Background()))
	assert.True(t, deleted)
}
