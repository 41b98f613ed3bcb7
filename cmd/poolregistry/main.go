// Command poolregistry serves a pool registry over HTTP or drives synthetic
// load through one.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Swind/go-pool-registry/config"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	// Default pool sizing follows GOMAXPROCS, so honour container quotas.
	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Printf("maxprocs: %v", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "poolregistry",
		Usage: "Named worker pools with readiness, saturation policies and statistics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"POOLREGISTRY_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			loadCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (*config.File, error) {
	path := c.String("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed to load config: %v", err), 1)
	}
	return cfg, nil
}
