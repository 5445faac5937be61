package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/freshretail/freshpos/config"
	"github.com/freshretail/freshpos/internal/app"
	"github.com/freshretail/freshpos/internal/posapi"
	"github.com/freshretail/freshpos/internal/webserver"
)

var (
	h        = flag.Bool("h", false, "help usage")
	showVer  = flag.Bool("v", false, "show version")
	conffile = flag.String("c", "", "config file")
	initdb   = flag.Bool("initdb", false, "drop and recreate all tables, use with caution")
)

const version = "v1.0.0"

func printHelp() {
	if *h {
		ustr := fmt.Sprintf("freshpos version: %s, usage: freshpos -h\nOptions:", version)
		fmt.Fprintf(os.Stderr, "%s\n", ustr)
		flag.PrintDefaults()
		os.Exit(0)
	}
}

func main() {
	flag.Parse()
	printHelp()

	if *showVer {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := config.LoadConfig(*conffile)

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.DropAll()
		if err := application.MigrateDB(); err != nil {
			zap.L().Fatal("initdb failed", zap.Error(err))
		}
		zap.L().Info("database initialized")
		return
	}

	webserver.Init(application)
	posapi.Init(application)

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		zap.L().Info("starting web server",
			zap.String("host", cfg.Web.Host), zap.Int("port", cfg.Web.Port))
		return webserver.Listen()
	})

	g.Go(func() error {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigc:
			zap.L().Info("shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		posapi.Release()
		return webserver.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("server exited", zap.Error(err))
	}
}
