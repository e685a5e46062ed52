package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/diffuser-panel/internal/pkg/config"
	"github.com/anicoll/diffuser-panel/internal/pkg/database"
	"github.com/anicoll/diffuser-panel/internal/pkg/database/migration"
	"github.com/anicoll/diffuser-panel/internal/pkg/diffuser"
	"github.com/anicoll/diffuser-panel/internal/pkg/dispatch"
	"github.com/anicoll/diffuser-panel/internal/pkg/model"
	"github.com/anicoll/diffuser-panel/internal/pkg/mqtt"
	"github.com/anicoll/diffuser-panel/internal/pkg/poller"
	"github.com/anicoll/diffuser-panel/internal/pkg/publisher"
	"github.com/anicoll/diffuser-panel/internal/pkg/server"
	"github.com/anicoll/diffuser-panel/internal/pkg/state"
	"github.com/anicoll/diffuser-panel/internal/pkg/update"
)

// PanelCommand is the main entry point for the diffuser panel CLI command.
// Configuration comes from the environment first, explicit flags win.
func PanelCommand(ctx *cli.Context) error {
	cfg := &config.Config{}
	if err := cfg.FromEnv(); err != nil {
		return err
	}

	if v := ctx.String("device-host"); v != "" {
		cfg.DeviceCfg.Host = v
	}
	if ctx.IsSet("lite-interval") {
		cfg.DeviceCfg.LiteInterval = ctx.Duration("lite-interval")
	}
	if ctx.IsSet("button-interval") {
		cfg.DeviceCfg.ButtonInterval = ctx.Duration("button-interval")
	}
	if ctx.IsSet("device-timeout") {
		cfg.DeviceCfg.Timeout = ctx.Duration("device-timeout")
	}
	if v := ctx.String("mqtt-host"); v != "" {
		cfg.MqttCfg.Host = v
	}
	if v := ctx.String("mqtt-user"); v != "" {
		cfg.MqttCfg.Username = v
	}
	if v := ctx.String("mqtt-pass"); v != "" {
		cfg.MqttCfg.Password = v
	}
	if v := ctx.String("panel-addr"); v != "" {
		cfg.PanelCfg.Addr = v
	}
	if v := ctx.String("panel-password-hash"); v != "" {
		cfg.PanelCfg.PasswordHash = v
	}
	if v := ctx.String("panel-token-secret"); v != "" {
		cfg.PanelCfg.TokenSecret = v
	}
	cfg.LogLevel = ctx.String("log-level")

	return run(ctx.Context, cfg, ctx.String("database-url"), ctx.String("migrations-folder"))
}

func run(ctx context.Context, cfg *config.Config, databaseURL, migrationsFolder string) error {
	if cfg.DeviceCfg == nil || cfg.DeviceCfg.Host == "" {
		return errors.New("device host is required")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	errorChan := make(chan error, 1000)
	var err error

	eg, ctx := errgroup.WithContext(ctx)
	logCfg := zap.NewProductionConfig()

	logCfg.Level, err = zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	var db *database.Database
	if databaseURL != "" {
		if migrationsFolder != "" {
			if err := migration.Migrate(databaseURL, migrationsFolder); err != nil {
				return err
			}
		}
		conn, err := pgx.Connect(ctx, databaseURL)
		if err != nil {
			return err
		}
		defer conn.Close(ctx)
		db = database.NewDatabase(conn)

		if err := publisher.RegisterPublisher("postgres", db); err != nil {
			return err
		}
		eg.Go(func() error {
			return cronDbCleanup(db, errorChan)
		})
	}

	if cfg.MqttCfg != nil && cfg.MqttCfg.Host != "" {
		opts := paho_mqtt.NewClientOptions().
			AddBroker(cfg.MqttCfg.Host).
			SetUsername(cfg.MqttCfg.Username).
			SetPassword(cfg.MqttCfg.Password).
			SetAutoReconnect(true)
		mqttSvc := mqtt.New(paho_mqtt.NewClient(opts))
		if err := mqttSvc.Connect(); err != nil {
			return err
		}
		if err := publisher.RegisterPublisher("mqtt", mqttSvc); err != nil {
			return err
		}
	}

	client := diffuser.New(cfg.DeviceCfg)
	store := state.NewStore()

	dispatcher := dispatch.New(client, store, cfg.DeviceCfg.Timeout)
	defer dispatcher.Close()
	// the dial moves before the device confirms the new speed
	dispatcher.SetVisual(func(speed int) {
		store.Apply(&model.Snapshot{Fan: &model.FanSnapshot{Speed: &speed}}, state.OriginEcho)
	})

	litePoller := poller.New(client, store, cfg.DeviceCfg.LiteInterval)
	tracker := update.New(ctx, client, store)

	var arc server.Archive
	if db != nil {
		arc = db
	}
	srv := server.New(ctx, cfg.PanelCfg, store, dispatcher, litePoller, tracker, client, arc)
	srv.SetButtonPoller(poller.NewButtonPoller(client, cfg.DeviceCfg.ButtonInterval, srv.ApplyButtonStates))

	eg.Go(func() error {
		return litePoller.Run(ctx)
	})

	eg.Go(func() error {
		return tracker.Run(ctx)
	})

	eg.Go(func() error {
		return publishLoop(ctx, store)
	})

	eg.Go(func() error {
		httpSrv := &http.Server{
			Handler:      srv.Handler(),
			Addr:         cfg.PanelCfg.Addr,
			WriteTimeout: 15 * time.Second,
			ReadTimeout:  15 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		// handle any async errors from services
		for {
			select {
			case err := <-errorChan:
				if errors.Is(err, errCron) {
					logger.Error("cron error", zap.Error(err))
					return err
				}
			case <-ctx.Done():
				logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

// publishLoop republishes every merged state change. The device is announced
// to the publishers once its MAC is known from the first full snapshot.
func publishLoop(ctx context.Context, store *state.Store) error {
	ch, cancel := store.Subscribe()
	defer cancel()

	registered := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st := <-ch:
			device := deviceFrom(st)
			if device.ID == "" {
				continue
			}
			if !registered {
				if err := publisher.RegisterDevice(device); err != nil {
					zap.L().Error("failed to register device", zap.Error(err))
					continue
				}
				registered = true
			}
			if err := publisher.PublishState(ctx, device, st); err != nil {
				zap.L().Error("failed to publish state", zap.Error(err))
			}
		}
	}
}

func deviceFrom(st model.DeviceState) *model.Device {
	return &model.Device{
		ID:      st.Device.Mac,
		Model:   model.DeviceModel,
		Mac:     st.Device.Mac,
		Name:    st.Device.Name,
		Version: st.Device.Version,
	}
}

var errCron = errors.New("cron error")

func cronDbCleanup(db *database.Database, errChan chan error) error {
	if err := db.Cleanup(context.Background()); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc("0 3 * * *", func() {
		if err := db.Cleanup(context.Background()); err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			errChan <- errCron
			return
		}
		zap.L().Info("database cleanup complete")
	}); err != nil {
		return err
	}

	c.Run()
	return nil
}
