package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/diffuser-panel/pkg/hasher"
)

// HashPasswordCommand prints the bcrypt hash for a panel password, ready for
// the PANEL_PASSWORD_HASH setting.
func HashPasswordCommand(ctx *cli.Context) error {
	password := ctx.Args().First()
	if password == "" {
		return errors.New("usage: hash-password <password>")
	}
	hash, err := hasher.HashPassword([]byte(password))
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, hash)
	return nil
}
