package main

import (
	"strings"

	"github.com/urfave/cli/v2"

	"menu-cost/api"
)

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the menu cost API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "API server port",
				EnvVars: []string{"MENUCOST_SERVER_PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"MENUCOST_CORS_ORIGINS"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	corsOrigins := strings.Split(c.String("cors-origins"), ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}

	config := api.DefaultConfig()
	config.Port = rt.cfg.Server.Port
	if c.IsSet("port") {
		config.Port = c.Int("port")
	}
	config.CORSOrigins = corsOrigins

	server := api.NewServer(rt.store, rt.engine, config).WithLogger(rt.log)
	return server.StartWithGracefulShutdown()
}
