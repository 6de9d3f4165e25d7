// Package store opens the counter.Store selected by configuration.
package store

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/datastore"
	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/store/dsstore"
	"github.com/tckz/go-viewcount/internal/store/fsstore"
	"github.com/tckz/go-viewcount/internal/store/memory"
	"github.com/tckz/go-viewcount/internal/store/mongostore"
	"github.com/tckz/go-viewcount/internal/store/redisstore"
	"github.com/tckz/go-viewcount/internal/store/sqlstore"
)

const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendDatastore = "datastore"
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
)

var Backends = []string{BackendMemory, BackendSQLite, BackendRedis, BackendDatastore, BackendFirestore, BackendMongo}

type Config struct {
	Backend string

	SQLitePath string

	RedisAddr      string
	RedisKeyPrefix string

	ProjectID   string
	Credentials string
	Namespace   string
	Kind        string
	FirestoreDB string
	Collection  string

	MongoURI string
	MongoDB  string
}

// RegisterFlags binds cfg to fs using the flag names shared by every command.
// ProjectID defaults to $PROJECT_ID.
func (cfg *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&cfg.Backend, "store", BackendMemory, strings.Join(Backends, "|"))
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", "./data/viewcount.db", "path/to/sqlite.db or :memory:")
	fs.StringVar(&cfg.RedisAddr, "redis", "localhost:6379", "addr:port of redis")
	fs.StringVar(&cfg.RedisKeyPrefix, "redis-key-prefix", redisstore.DefaultKeyPrefix, "prefix of counter hash keys")
	fs.StringVar(&cfg.ProjectID, "project", os.Getenv("PROJECT_ID"), "google cloud project id")
	fs.StringVar(&cfg.Credentials, "credentials", "", "path/to/service-account.json (default: ADC)")
	fs.StringVar(&cfg.Namespace, "ns", "", "datastore namespace")
	fs.StringVar(&cfg.Kind, "kind", dsstore.DefaultKind, "datastore kind")
	fs.StringVar(&cfg.FirestoreDB, "firestore-db", "(default)", "firestore database id")
	fs.StringVar(&cfg.Collection, "collection", fsstore.DefaultCollection, "firestore collection")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", "mongodb://localhost:27017", "mongodb connection uri")
	fs.StringVar(&cfg.MongoDB, "mongo-db", "viewcount", "mongodb database")
}

// GoogleOptions returns the client options shared by Google Cloud clients.
func (cfg *Config) GoogleOptions() []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	return opts
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config, clock counter.Clock) (counter.Store, error) {
	if clock == nil {
		clock = counter.RealClock{}
	}

	switch cfg.Backend {
	case BackendMemory, "":
		return memory.New(clock), nil

	case BackendSQLite:
		s, err := sqlstore.Open(ctx, cfg.SQLitePath, clock)
		if err != nil {
			return nil, fmt.Errorf("sqlstore.Open: %w", err)
		}
		return s, nil

	case BackendRedis:
		cl := redisstore.NewClient(cfg.RedisAddr)
		if err := cl.Ping(ctx).Err(); err != nil {
			_ = cl.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return redisstore.New(cl, redisstore.WithKeyPrefix(cfg.RedisKeyPrefix), redisstore.WithClock(clock)), nil

	case BackendDatastore:
		cl, err := datastore.NewClient(ctx, cfg.ProjectID, cfg.GoogleOptions()...)
		if err != nil {
			return nil, fmt.Errorf("datastore.NewClient: %w", err)
		}
		return dsstore.New(cl,
			dsstore.WithKind(cfg.Kind),
			dsstore.WithNamespace(cfg.Namespace),
			dsstore.WithClock(clock),
		), nil

	case BackendFirestore:
		cl, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, cfg.FirestoreDB, cfg.GoogleOptions()...)
		if err != nil {
			return nil, fmt.Errorf("firestore.NewClientWithDatabase: database=%s, %w", cfg.FirestoreDB, err)
		}
		return fsstore.New(cl, fsstore.WithCollection(cfg.Collection), fsstore.WithClock(clock)), nil

	case BackendMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB, clock)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store: %q (want one of %s)", cfg.Backend, strings.Join(Backends, ", "))
	}
}
