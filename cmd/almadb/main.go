package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"alma.org.ar/internal/config"
	"alma.org.ar/internal/obs"
)

func main() {
	r := &runner{in: os.Stdin, out: os.Stdout, logOut: os.Stderr}
	if err := r.app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "almadb: %v\n", err)
		os.Exit(1)
	}
}

// runner holds the process streams so commands can be driven from tests.
type runner struct {
	in     io.Reader
	out    io.Writer
	logOut io.Writer
	// interactive overrides terminal detection on in when set.
	interactive func() bool
}

func (r *runner) app() *cli.App {
	return &cli.App{
		Name:    "almadb",
		Usage:   "provision and reseed the Alma platform database",
		Version: obs.Version,
		Writer:  r.out,
		Reader:  r.in,

		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: config.DefaultEnvFile,
				Usage: "key-value file with DB_* settings; variables already set win",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "skip the confirmation prompt",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "provision",
				Usage:  "drop the database, recreate it and apply the schema",
				Action: r.provision,
			},
			{
				Name:  "reseed",
				Usage: "empty every data table and load the fixture set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "today",
						Usage: "date calendar statuses are computed against (YYYY-MM-DD)",
					},
					&cli.BoolFlag{
						Name:  "no-pin",
						Usage: "seed without PIN hashes; nobody will be able to sign in",
					},
				},
				Action: r.reseed,
			},
		},
	}
}
