package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/log"
	"github.com/tckz/go-viewcount/internal/store"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel = flag.String("log-level", "info", "debug|info|warn|error")
	optTimeout  = flag.Duration("timeout", 10*time.Second, "time limit")
	storeConfig store.Config
)

func init() {
	godotenv.Load()

	storeConfig.RegisterFlags(flag.CommandLine)
	flag.Usage = func() {
		o := flag.CommandLine.Output()
		_, _ = o.Write([]byte("usage: " + myName + " [options] nid...\n"))
		flag.PrintDefaults()
	}
	flag.Parse()

	logger = log.MustSugar(log.WithLogLevel(*optLogLevel), log.WithApp(myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *optTimeout)
	defer cancel()

	cs, err := store.Open(ctx, storeConfig, nil)
	if err != nil {
		logger.Fatalf("*** store.Open: %v", err)
	}
	defer cs.Close()

	enc := json.NewEncoder(os.Stdout)
	for _, arg := range flag.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			logger.Errorf("*** ParseInt: %s, %v", arg, err)
			continue
		}

		rec, err := cs.Get(ctx, id)
		if errors.Is(err, counter.ErrNotFound) {
			logger.Infof("nid=%d not found", id)
			continue
		} else if err != nil {
			logger.Errorf("*** Get: nid=%d, %v", id, err)
			continue
		}

		if err := enc.Encode(rec); err != nil {
			logger.Fatalf("*** Encode: %v", err)
		}
	}
}
