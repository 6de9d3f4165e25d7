// Package settings provides the feature switches that gate view counting.
package settings

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	// KeyCountContentViews switches view counting on globally.
	KeyCountContentViews = "count_content_views"
	// KeyCountContentViewsAsync switches counting through the asynchronous
	// report endpoint on.
	KeyCountContentViewsAsync = "count_content_views_ajax"

	EnvPrefix = "VIEWCOUNT"
)

var knownKeys = []string{KeyCountContentViews, KeyCountContentViewsAsync}

// Settings holds the current switch values. Reads are lock-free.
type Settings struct {
	v      *viper.Viper
	path   string
	logger *zap.SugaredLogger

	countViews atomic.Bool
	countAsync atomic.Bool
}

type Option func(s *Settings)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Settings) {
		s.logger = l
	}
}

// Load reads path (yaml, json, toml, ...; empty means no file) and overlays
// VIEWCOUNT_* environment variables. Both switches default to true.
func Load(path string, opts ...Option) (*Settings, error) {
	v := viper.New()
	v.SetDefault(KeyCountContentViews, true)
	v.SetDefault(KeyCountContentViewsAsync, true)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Settings{
		v:      v,
		path:   path,
		logger: zap.NewNop().Sugar(),
	}
	for _, e := range opts {
		e(s)
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the settings file and republishes the switches.
func (s *Settings) Reload() error {
	if s.path != "" {
		s.v.SetConfigFile(s.path)
		if err := s.v.ReadInConfig(); err != nil {
			return fmt.Errorf("viper.ReadInConfig: path=%s, %w", s.path, err)
		}
	}

	unknown := lo.Filter(s.v.AllKeys(), func(k string, _ int) bool {
		return !lo.Contains(knownKeys, k)
	})
	if len(unknown) > 0 {
		s.logger.Warnf("unknown settings ignored: %s", strings.Join(unknown, ","))
	}

	s.countViews.Store(s.v.GetBool(KeyCountContentViews))
	s.countAsync.Store(s.v.GetBool(KeyCountContentViewsAsync))
	s.logger.Infof("settings: %s=%t, %s=%t",
		KeyCountContentViews, s.countViews.Load(), KeyCountContentViewsAsync, s.countAsync.Load())
	return nil
}

// Watch reloads whenever the settings file changes. No-op without a file.
func (s *Settings) Watch() {
	if s.path == "" {
		return
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if err := s.Reload(); err != nil {
			s.logger.Errorf("Reload: %s, %v", e.Name, err)
		}
	})
	s.v.WatchConfig()
}

func (s *Settings) CountContentViews() bool {
	return s.countViews.Load()
}

func (s *Settings) CountContentViewsAsync() bool {
	return s.countAsync.Load()
}

// Enabled reports whether both switches are on.
func (s *Settings) Enabled() bool {
	return s.CountContentViews() && s.CountContentViewsAsync()
}

// Static is a fixed gate.
type Static bool

func (s Static) Enabled() bool {
	return bool(s)
}
