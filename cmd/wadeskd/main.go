package main

import (
	"flag"

	"go.uber.org/fx"

	"github.com/matheus3301/wadesk/internal/daemon"
)

func main() {
	dataDir := flag.String("data-dir", "", "data directory (default ~/.wadesk)")
	addr := flag.String("addr", "", "listen address (overrides config port)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{DataDir: *dataDir, Addr: *addr}),
	)

	app.Run()
}
