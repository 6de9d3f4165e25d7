package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tckz/go-viewcount/internal/log"
	"github.com/tckz/go-viewcount/internal/settings"
	"github.com/tckz/go-viewcount/internal/store"
	"github.com/tckz/go-viewcount/internal/store/redisstore"
	"github.com/tckz/go-viewcount/internal/subscriber"
	"github.com/tckz/go-viewcount/internal/view"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel     = flag.String("log-level", "info", "debug|info|warn|error")
	optWorkers      = flag.Int("workers", 4, "Number of concurrent Receive")
	optSubscription = flag.String("subscription", "", "subscription name")
	optSettings     = flag.String("settings", "", "path/to/settings.yaml")
	optStoreTimeout = flag.Duration("store-timeout", 5*time.Second, "time limit of one counter update [0 = none]")
	optMarkerRedis  = flag.String("marker-redis", "", "addr:port of redis shared for dedup marks (default: in-process)")
	optMarkerTTL    = flag.Duration("marker-ttl", subscriber.DefaultMarkerTTL, "lifetime of dedup marks")
	optStatsEvery   = flag.Int64("stats-every", 1000, "log stats every n messages")
	storeConfig     store.Config
)

func init() {
	godotenv.Load()

	storeConfig.RegisterFlags(flag.CommandLine)
	flag.Parse()

	logger = log.MustSugar(log.WithLogLevel(*optLogLevel), log.WithApp(myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if *optSubscription == "" {
		logger.Fatalf("*** --subscription must be specified.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl, err := pubsub.NewClient(ctx, storeConfig.ProjectID, storeConfig.GoogleOptions()...)
	if err != nil {
		logger.Fatalf("*** pubsub.NewClient: %v", err)
	}
	defer cl.Close()

	st, err := settings.Load(*optSettings, settings.WithLogger(logger))
	if err != nil {
		logger.Fatalf("*** settings.Load: %v", err)
	}
	st.Watch()

	cs, err := store.Open(ctx, storeConfig, nil)
	if err != nil {
		logger.Fatalf("*** store.Open: %v", err)
	}
	defer cs.Close()

	var marker subscriber.ProcessMarker
	if *optMarkerRedis == "" {
		marker = subscriber.NewLocalMarker(*optMarkerTTL)
	} else {
		rc := redisstore.NewClient(*optMarkerRedis)
		defer rc.Close()
		marker = subscriber.NewRedisMarker(rc, *optMarkerTTL)
	}

	rec := view.NewRecorder(cs, view.WithLogger(logger), view.WithTimeout(*optStoreTimeout))
	subs := subscriber.New(rec, st, marker,
		subscriber.WithLogger(logger),
		subscriber.WithWorkers(*optWorkers),
		subscriber.WithStatsEvery(*optStatsEvery),
	)

	if err := subs.Run(ctx, cl, *optSubscription); err != nil {
		logger.Errorf("*** Run: %v", err)
	}
}
