package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kwehner/mzusi/internal/config"
	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/log"
	"github.com/kwehner/mzusi/internal/resolve"
	"github.com/kwehner/mzusi/internal/usi"
	"github.com/kwehner/mzusi/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "mzusi",
		Usage:   "Universal Spectrum Identifier resolver",
		Version: Version,
		Commands: []*cli.Command{
			resolveCmd(cfg),
			locateCmd(cfg),
			parseCmd(),
			serveCmd(cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// prefixFlags are shared by the commands that search the file system.
func prefixFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "prefix", Aliases: []string{"p"}, Usage: "Search prefix (repeatable, overrides config)"},
		&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
	}
}

// resolveCmd creates the resolve command.
func resolveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a USI to a PROXI spectrum record",
		ArgsUsage: "<usi>",
		Flags: append(prefixFlags(),
			&cli.BoolFlag{Name: "metadata-only", Aliases: []string{"m"}, Usage: "Skip peak loading"},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one USI argument is required"))
			}

			svc := resolve.NewService(cfg, log.New(c.Bool("debug")))
			output, err := svc.Resolve(c.Context, resolve.ResolveInput{
				USI:          c.Args().First(),
				Prefixes:     c.StringSlice("prefix"),
				MetadataOnly: c.Bool("metadata-only"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// locateCmd creates the locate command.
func locateCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "locate",
		Usage:     "Find the raw file a USI names without opening it",
		ArgsUsage: "<usi>",
		Flags:     prefixFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one USI argument is required"))
			}

			svc := resolve.NewService(cfg, log.New(c.Bool("debug")))
			output, err := svc.Locate(resolve.LocateInput{
				USI:      c.Args().First(),
				Prefixes: c.StringSlice("prefix"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// parseCmd creates the parse command.
func parseCmd() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse a USI into its components",
		ArgsUsage: "<usi>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one USI argument is required"))
			}

			ident, err := usi.Parse(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]string{
				"collection":     ident.Collection,
				"run":            ident.Run,
				"index_type":     string(ident.IndexType),
				"index_value":    ident.IndexValue,
				"interpretation": ident.Interpretation,
				"canonical":      ident.String(),
			})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the PROXI HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (overrides config)"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Action: func(c *cli.Context) error {
			bind := cfg.HTTPBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := cfg.HTTPPort
			if c.IsSet("port") {
				port = c.Int("port")
			}

			logger := log.New(c.Bool("debug"))
			svc := resolve.NewService(cfg, logger)
			srv := web.NewServer(svc, logger, Version, bind, port)
			return web.Run(srv, logger)
		},
	}
}

// outputJSON prints indented JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if re, ok := err.(*errors.ResolveError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", re.Code, re.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
