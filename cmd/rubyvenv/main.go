package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kazhuravlev/optional"
	cli "github.com/urfave/cli/v2"

	"github.com/asottile/rubyvenv/internal/cache"
	"github.com/asottile/rubyvenv/internal/catalog"
	"github.com/asottile/rubyvenv/internal/fsh"
	"github.com/asottile/rubyvenv/internal/platform"
	"github.com/asottile/rubyvenv/internal/venv"
)

const (
	keyRuby         = "ruby"
	keyListVersions = "list-versions"

	tokenSystem = "system"
)

var version = "unknown-dirty"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "rubyvenv",
		Usage:     `Create no-hassle ruby "virtualenvs". No .bashrc, no shims, no cd-magic`,
		Version:   version,
		ArgsUsage: "[DEST_DIR]",
		Description: `Install a prebuilt ruby into DEST_DIR and generate bin/activate.

	$ rubyvenv ./venv
	$ rubyvenv ./venv --ruby 2.3.1
	$ rubyvenv ./venv --ruby system
	$ rubyvenv --list-versions

Activate the environment by sourcing the generated script:

	$ . ./venv/bin/activate`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  keyRuby,
				Usage: "ruby version to install (VERSION, latest or system)",
				Value: catalog.Latest,
			},
			&cli.BoolFlag{
				Name:  keyListVersions,
				Usage: "list versions available for your system and exit",
			},
		},
		Action: cmdCreate,
	}
}

func cmdCreate(c *cli.Context) error {
	ctx := c.Context

	fs := fsh.NewRealFS()

	plat, err := platform.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve platform: %w", err)
	}

	cat := catalog.New(plat)

	if c.Bool(keyListVersions) {
		return listVersions(c, cat, plat)
	}

	dest := c.Args().First()
	if dest == "" {
		return errors.New("DEST_DIR is required")
	}

	cch, err := cache.New(fs, optional.Empty[string]())
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	env := venv.New(fs, cch, plat,
		venv.WithHTTPClient(http.DefaultClient),
		venv.WithProgress(true))

	token := c.String(keyRuby)
	if token == tokenSystem {
		if err := env.InstallSystem(ctx, dest); err != nil {
			return fmt.Errorf("install system ruby env: %w", err)
		}

		return nil
	}

	ver, err := cat.Pick(ctx, token)
	if err != nil {
		return fmt.Errorf("pick version (%s): %w", token, err)
	}

	if err := env.Install(ctx, dest, ver); err != nil {
		return fmt.Errorf("install ruby %s: %w", ver.Version, err)
	}

	return nil
}

func listVersions(c *cli.Context, cat *catalog.Catalog, plat platform.Identity) error {
	versions, err := cat.Prebuilt(c.Context)
	if err != nil {
		return fmt.Errorf("list prebuilt versions: %w", err)
	}

	fmt.Printf("Available versions for %s:\n", plat)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Prebuilt"})

	rows := make([]table.Row, 0, len(versions))
	for _, ver := range versions {
		rows = append(rows, table.Row{ver.Version})
	}

	t.AppendRows(rows)

	fmt.Println(t.Render())

	return nil
}
