// Package config is the typed configuration tree of spec.md §6's
// Configuration options, loaded with github.com/spf13/viper and bound to
// CLI flags via github.com/spf13/cobra/github.com/spf13/pflag, the way
// this codebase's own internal configuration tree composes one struct
// per component. Watcher reloads blacklistedAssets and
// blacklistedAddresses via github.com/fsnotify/fsnotify once Watch is
// started; cmd/matcher does not start it, and the validator it builds
// keeps the blacklists read at startup.
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nimbusdex/matcher/core/apperrors"
	"github.com/nimbusdex/matcher/types"
)

// EventsQueueConfig selects and configures one of the two EventQueue
// transports spec.md §6 names.
type EventsQueueConfig struct {
	Type   string `mapstructure:"type"`
	Local  LocalQueueConfig  `mapstructure:"local"`
	Remote RemoteQueueConfig `mapstructure:"remote"`
}

// LocalQueueConfig's Path is a directory; local.Open creates events.log
// (and its companion offset file) inside it.
type LocalQueueConfig struct {
	Path string `mapstructure:"path"`
}

type RemoteQueueConfig struct {
	Bootstrap       []string `mapstructure:"bootstrap"`
	Topic           string   `mapstructure:"topic"`
	ClientID        string   `mapstructure:"clientId"`
	GroupID         string   `mapstructure:"groupId"`
	ProducerAcks    string   `mapstructure:"producerAcks"`
	ConsumerMaxPoll int      `mapstructure:"consumerMaxPoll"`
}

// MatchingRuleConfig is one scheduled tick-size change for a pair, the
// unmarshalled form of types.MatchingRule.
type MatchingRuleConfig struct {
	StartOffset uint64 `mapstructure:"startOffset"`
	TickEnabled bool   `mapstructure:"tickEnabled"`
	Ticks       uint64 `mapstructure:"ticks"`
}

// Config is the full tree spec.md §6 names, flattened one field per key.
type Config struct {
	Account string `mapstructure:"account"`
	DataDir string `mapstructure:"dataDir"`

	EventsQueue EventsQueueConfig `mapstructure:"eventsQueue"`

	SnapshotsInterval            uint64        `mapstructure:"snapshotsInterval"`
	SnapshotsLoadingTimeout      time.Duration `mapstructure:"snapshotsLoadingTimeout"`
	StartEventsProcessingTimeout time.Duration `mapstructure:"startEventsProcessingTimeout"`

	BlacklistedAssets    []string `mapstructure:"blacklistedAssets"`
	BlacklistedAddresses []string `mapstructure:"blacklistedAddresses"`

	OrderFeeMicroRate uint64   `mapstructure:"orderFee"`
	DeviationBps      uint64   `mapstructure:"deviation"`
	OrderRestrictions []string `mapstructure:"orderRestrictions"`

	MatchingRules map[string][]MatchingRuleConfig `mapstructure:"matchingRules"`
	AllowedOrderVersions []uint8 `mapstructure:"allowedOrderVersions"`

	PostgresConnection string `mapstructure:"postgresConnection"`

	APIPort    int `mapstructure:"apiPort"`
	SocketPort int `mapstructure:"socketPort"`
}

// NewDefaultConfig returns every field at the value the matcher runs
// with when no config file or flag overrides it.
func NewDefaultConfig() Config {
	return Config{
		Account:                       "matcher",
		DataDir:                       "./matcher-data",
		EventsQueue:                   EventsQueueConfig{Type: "local", Local: LocalQueueConfig{Path: "./matcher-data/events"}},
		SnapshotsInterval:             1000,
		SnapshotsLoadingTimeout:       30 * time.Second,
		StartEventsProcessingTimeout:  60 * time.Second,
		OrderFeeMicroRate:             0,
		DeviationBps:                  0,
		AllowedOrderVersions:          []uint8{uint8(types.OrderV3)},
		APIPort:                       8080,
		SocketPort:                    3005,
	}
}

// BindFlags registers the flags below on fs, following this codebase's
// own convention of one flag per config key with the key's default as
// the flag's default; orderRestrictions, matchingRules,
// allowedOrderVersions, postgresConnection and the remote queue's
// producerAcks/consumerMaxPoll have no flag (cmd/matcher passes its
// command's Flags() set as fs before calling Load).
func BindFlags(fs *pflag.FlagSet) {
	d := NewDefaultConfig()
	fs.String("account", d.Account, "matcher account identifier")
	fs.String("dataDir", d.DataDir, "directory for the embedded KVStore and local queue")
	fs.String("eventsQueue.type", d.EventsQueue.Type, "local or remote")
	fs.String("eventsQueue.local.path", d.EventsQueue.Local.Path, "local queue data directory")
	fs.StringSlice("eventsQueue.remote.bootstrap", d.EventsQueue.Remote.Bootstrap, "kafka bootstrap addresses")
	fs.String("eventsQueue.remote.topic", d.EventsQueue.Remote.Topic, "kafka topic")
	fs.String("eventsQueue.remote.clientId", d.EventsQueue.Remote.ClientID, "kafka client id")
	fs.String("eventsQueue.remote.groupId", d.EventsQueue.Remote.GroupID, "kafka consumer group id")
	fs.Uint64("snapshotsInterval", d.SnapshotsInterval, "events between automatic snapshots")
	fs.Duration("snapshotsLoadingTimeout", d.SnapshotsLoadingTimeout, "max time to restore every pair's snapshot at startup")
	fs.Duration("startEventsProcessingTimeout", d.StartEventsProcessingTimeout, "max time to reach Ready after restore")
	fs.StringSlice("blacklistedAssets", nil, "assets rejected by the validator")
	fs.StringSlice("blacklistedAddresses", nil, "addresses rejected by the validator")
	fs.Uint64("orderFee", d.OrderFeeMicroRate, "default fee micro-rate")
	fs.Uint64("deviation", d.DeviationBps, "max price deviation from best opposite, in bps")
	fs.Int("apiPort", d.APIPort, "HTTP status surface port")
	fs.Int("socketPort", d.SocketPort, "broker republish PUB socket port")
}

// Load reads path/config.yaml (if present), environment variables, and
// fs-bound flags, in increasing precedence, into a Config seeded with
// NewDefaultConfig's values.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	def := NewDefaultConfig()
	v.SetDefault("account", def.Account)
	v.SetDefault("dataDir", def.DataDir)
	v.SetDefault("eventsQueue", def.EventsQueue)
	v.SetDefault("snapshotsInterval", def.SnapshotsInterval)
	v.SetDefault("snapshotsLoadingTimeout", def.SnapshotsLoadingTimeout)
	v.SetDefault("startEventsProcessingTimeout", def.StartEventsProcessingTimeout)
	v.SetDefault("orderFee", def.OrderFeeMicroRate)
	v.SetDefault("deviation", def.DeviationBps)
	v.SetDefault("allowedOrderVersions", def.AllowedOrderVersions)
	v.SetDefault("apiPort", def.APIPort)
	v.SetDefault("socketPort", def.SocketPort)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, apperrors.Wrap(apperrors.KindInvalid, "config: read config file", err)
		}
	}
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, apperrors.Wrap(apperrors.KindInvalid, "config: bind flags", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, apperrors.Wrap(apperrors.KindInvalid, "config: unmarshal", err)
	}
	return cfg, nil
}

// Watcher holds the live-reloadable subset of Config (blacklists only,
// per spec.md §6) and notifies registered listeners on change, the way
// this codebase's own config watcher drives updates off fsnotify events
// on the config file rather than polling.
type Watcher struct {
	mu        sync.Mutex
	blacklistedAssets    map[types.AssetID]struct{}
	blacklistedAddresses map[types.PublicKey]struct{}
	listeners []func()
}

func NewWatcher(cfg Config) *Watcher {
	w := &Watcher{}
	w.apply(cfg)
	return w
}

func (w *Watcher) apply(cfg Config) {
	assets := make(map[types.AssetID]struct{}, len(cfg.BlacklistedAssets))
	for _, a := range cfg.BlacklistedAssets {
		assets[types.AssetID(a)] = struct{}{}
	}
	addrs := make(map[types.PublicKey]struct{}, len(cfg.BlacklistedAddresses))
	for _, a := range cfg.BlacklistedAddresses {
		var pk types.PublicKey
		copy(pk[:], a)
		addrs[pk] = struct{}{}
	}
	w.mu.Lock()
	w.blacklistedAssets = assets
	w.blacklistedAddresses = addrs
	w.mu.Unlock()
}

func (w *Watcher) BlacklistedAssets() map[types.AssetID]struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blacklistedAssets
}

func (w *Watcher) BlacklistedAddresses() map[types.PublicKey]struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blacklistedAddresses
}

func (w *Watcher) OnChange(fn func()) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Watch starts an fsnotify watch on path/config.yaml, re-running Load and
// re-applying the blacklists on every write, until the file watcher's own
// errors channel closes (the caller owns shutdown via its own context by
// just never calling Watch again; the goroutine exits when watcher.Close
// is called from the returned stop function).
func (w *Watcher) Watch(path string, fs *pflag.FlagSet) (stop func(), err error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalid, "config: start watcher", err)
	}
	configFile := filepath.Join(path, "config.yaml")
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, apperrors.Wrap(apperrors.KindInvalid, "config: watch path", err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Name != configFile {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path, fs)
				if err != nil {
					continue
				}
				w.apply(cfg)
				w.mu.Lock()
				listeners := append([]func(){}, w.listeners...)
				w.mu.Unlock()
				for _, l := range listeners {
					l()
				}
			case _, ok := <-fw.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() { fw.Close() }, nil
}

func (c Config) String() string {
	return fmt.Sprintf("Config{account=%s dataDir=%s eventsQueue=%s}", c.Account, c.DataDir, c.EventsQueue.Type)
}
