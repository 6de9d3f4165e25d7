package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	vh "github.com/tckz/vegetahelper"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/tckz/go-viewcount/internal/loadgen"
	"github.com/tckz/go-viewcount/internal/log"
	"github.com/tckz/go-viewcount/internal/view"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration    = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput      = flag.String("output", "", "/path/to/results.bin or 'stdout'")
	optWorkers     = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optLogLevel    = flag.String("log-level", "info", "info|warn|error")
	optTarget      = flag.String("target", "http://localhost:8080/statistics", "URL of the statistics endpoint")
	optTopic       = flag.String("topic", "", "publish view events to this topic instead of POSTing")
	optCredentials = flag.String("credentials", "", "path/to/service-account.json (default: ADC)")
	optIDs         = flag.Int("ids", 100, "size of the nid pool")
	optIDBase      = flag.Int64("id-base", 1, "smallest nid of the pool")
	optJSON        = flag.Bool("json", false, "POST application/json instead of a form")
	optExpect      = flag.String("expect", "", "/path/to/expected.jsonl or 'stdout': views sent per nid")
)

func init() {
	godotenv.Load()

	flag.Var(optRate, "rate", "Number of requests per time unit")
	flag.Parse()

	logger = log.MustSugar(log.WithLogLevel(*optLogLevel), log.WithApp(myName))
}

type nopWriteCloser struct {
	io.Writer
}

func (c nopWriteCloser) Close() error {
	return nil
}

func openResultFile(out string) (io.WriteCloser, error) {
	switch out {
	case "stdout":
		return &nopWriteCloser{os.Stdout}, nil
	default:
		return os.Create(out)
	}
}

func postView(ctx context.Context, hc *http.Client, nid string) error {
	var req *http.Request
	var err error
	if *optJSON {
		b, _ := json.Marshal(view.Event{NID: nid})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, *optTarget, bytes.NewReader(b))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		form := url.Values{"nid": {nid}}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, *optTarget, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return err
	}

	res, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%s", res.Status)
	}
	return nil
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if *optOutput == "" {
		logger.Fatalf("*** --output must be specified.")
	}
	if *optIDs <= 0 {
		logger.Fatalf("*** --ids must be positive.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := lo.Map(lo.Range(*optIDs), func(i int, _ int) int64 {
		return *optIDBase + int64(i)
	})
	// views sent per id; written out with --expect
	sent := make([]atomic.Int64, len(ids))

	var topic *pubsub.Topic
	if *optTopic != "" {
		var opts []option.ClientOption
		if *optCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(*optCredentials))
		}
		cl, err := pubsub.NewClient(ctx, os.Getenv("PROJECT_ID"), opts...)
		if err != nil {
			logger.Fatalf("*** pubsub.NewClient: %v", err)
		}
		defer cl.Close()

		topic = cl.Topic(*optTopic)
		topic.PublishSettings.NumGoroutines = 30
		defer topic.Stop()
	}

	waiter := loadgen.NewPublishWaiter(ctx, 30)
	atkCtx, stopAttack := context.WithCancel(waiter.Context())
	defer stopAttack()

	hc := &http.Client{Timeout: 10 * time.Second}
	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		i := rand.Intn(len(ids))
		nid := strconv.FormatInt(ids[i], 10)

		if topic != nil {
			b, _ := json.Marshal(view.Event{NID: nid})
			if err := waiter.Add(ctx, topic.Publish(ctx, &pubsub.Message{Data: b})); err != nil {
				return nil, err
			}
		} else if err := postView(ctx, hc, nid); err != nil {
			return nil, err
		}
		sent[i].Add(1)
		return result, nil
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(atkCtx, *optRate.Rate, *optDuration, "viewcount")

	out, err := openResultFile(*optOutput)
	if err != nil {
		logger.Fatal(err)
	}
	defer out.Close()
	enc := vegeta.NewEncoder(out)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case s := <-sig:
			logger.Infof("Received signal: %s", s)
			stopAttack()
			// keep loop until 'res' is closed.
		case r, ok := <-res:
			if !ok {
				break loop
			}
			if err := enc.Encode(r); err != nil {
				logger.Errorf("*** Encode: %v", err)
				stopAttack()
				break loop
			}
		}
	}
	// No hit may be running when the waiter is closed.
	for range res {
	}

	if err := waiter.Close(); err != nil {
		logger.Errorf("*** publish: %v", err)
	}
	if topic != nil {
		logger.Infof("confirmed=%d", waiter.Confirmed())
	}

	var total int64
	for i := range ids {
		total += sent[i].Load()
	}
	logger.Infof("sent=%d over %d ids", total, len(ids))

	if *optExpect != "" {
		if err := writeExpected(*optExpect, ids, sent); err != nil {
			logger.Errorf("*** writeExpected: %v", err)
		}
	}
}

func writeExpected(path string, ids []int64, sent []atomic.Int64) error {
	out, err := openResultFile(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return loadgen.WriteExpected(out, ids, sent)
}
