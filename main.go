package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/diffuser-panel/cmd"
)

func main() {
	app := &cli.App{
		Name:   "diffuser-panel",
		Usage:  "control panel daemon for the scent diffuser",
		Action: cmd.PanelCommand,
		Commands: []*cli.Command{
			{
				Name:   "hash-password",
				Usage:  "print the bcrypt hash for a panel password",
				Action: cmd.HashPasswordCommand,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "device-host",
				EnvVars: []string{"DEVICE_HOST"},
				Value:   "",
			},
			&cli.DurationFlag{
				Name:    "lite-interval",
				EnvVars: []string{"LITE_POLL_INTERVAL"},
				Value:   5 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "button-interval",
				EnvVars: []string{"BUTTON_POLL_INTERVAL"},
				Value:   2 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "device-timeout",
				EnvVars: []string{"DEVICE_TIMEOUT"},
				Value:   10 * time.Second,
			},
			&cli.StringFlag{
				Name:    "mqtt-host",
				EnvVars: []string{"MQTT_HOST"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-user",
				EnvVars: []string{"MQTT_USER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-pass",
				EnvVars: []string{"MQTT_PASS"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "database-url",
				EnvVars: []string{"DATABASE_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "migrations-folder",
				EnvVars: []string{"MIGRATIONS_FOLDER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "panel-addr",
				EnvVars: []string{"PANEL_ADDR"},
				Value:   "0.0.0.0:8000",
			},
			&cli.StringFlag{
				Name:    "panel-password-hash",
				EnvVars: []string{"PANEL_PASSWORD_HASH"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "panel-token-secret",
				EnvVars: []string{"PANEL_TOKEN_SECRET"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
