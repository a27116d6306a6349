// synctool is the operator command line of the matching middleware.
//
//	synctool sync --type clientes --dry-run
//	synctool zones import catalogo.yaml
//	synctool tenants discover
//	synctool dlq show --limit 50
package main

import (
	"os"
	"time"

	"github.com/creeyes/crmprueba/internal/cli"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
