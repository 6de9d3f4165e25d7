package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tckz/go-viewcount/internal/log"
	"github.com/tckz/go-viewcount/internal/server"
	"github.com/tckz/go-viewcount/internal/settings"
	"github.com/tckz/go-viewcount/internal/store"
	"github.com/tckz/go-viewcount/internal/view"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel        = flag.String("log-level", "info", "debug|info|warn|error")
	optAddr            = flag.String("addr", ":8080", "listen address")
	optSettings        = flag.String("settings", "", "path/to/settings.yaml")
	optWatchSettings   = flag.Bool("watch-settings", true, "reload settings when the file changes")
	optStoreTimeout    = flag.Duration("store-timeout", 5*time.Second, "time limit of one counter update [0 = none]")
	optShutdownTimeout = flag.Duration("shutdown-timeout", 30*time.Second, "graceful shutdown limit")
	optMaxBody         = flag.Int64("max-body", 4<<10, "max request body bytes")
	storeConfig        store.Config
)

func init() {
	godotenv.Load()

	storeConfig.RegisterFlags(flag.CommandLine)
	flag.Parse()

	logger = log.MustSugar(log.WithLogLevel(*optLogLevel), log.WithApp(myName))

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := settings.Load(*optSettings, settings.WithLogger(logger))
	if err != nil {
		logger.Fatalf("*** settings.Load: %v", err)
	}
	if *optWatchSettings {
		st.Watch()
	}

	cs, err := store.Open(ctx, storeConfig, nil)
	if err != nil {
		logger.Fatalf("*** store.Open: %v", err)
	}
	defer cs.Close()
	logger.Infof("store=%s", storeConfig.Backend)

	rec := view.NewRecorder(cs, view.WithLogger(logger), view.WithTimeout(*optStoreTimeout))
	srv := server.New(server.Config{
		Addr:            *optAddr,
		ShutdownTimeout: *optShutdownTimeout,
		MaxBodyBytes:    *optMaxBody,
	}, rec, st, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Errorf("*** Run: %v", err)
	}
}
