package main

import (
	"context"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nimbusdex/matcher/actor"
	"github.com/nimbusdex/matcher/api"
	"github.com/nimbusdex/matcher/blockchain/stub"
	"github.com/nimbusdex/matcher/broadcaster"
	"github.com/nimbusdex/matcher/broker"
	"github.com/nimbusdex/matcher/config"
	"github.com/nimbusdex/matcher/core/apperrors"
	"github.com/nimbusdex/matcher/eventqueue"
	"github.com/nimbusdex/matcher/eventqueue/local"
	"github.com/nimbusdex/matcher/eventqueue/remote"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/metrics"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/store"
	"github.com/nimbusdex/matcher/types"
	"github.com/nimbusdex/matcher/validator"
)

// run wires every component config.Config names and blocks until ctx is
// cancelled, following spec.md §6's exit-code contract: directory
// preparation failures and startup timeouts are promoted to *exitError
// before returning so main can set the process exit status accordingly.
func run(ctx context.Context, cfg config.Config) error {
	log := logging.NewLoggerFromEnv("info")
	defer log.AtExit()
	log.Info("starting matcher", zap.String("account", cfg.Account), zap.String("dataDir", cfg.DataDir))

	if err := prepareDataDir(cfg); err != nil {
		return &exitError{code: 1, err: err}
	}

	kv, err := store.Open(cfg.DataDir)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	defer kv.Close()

	chain := stub.New() // no production blockchain client exists; stub is the only implementation this repository provides.

	queue, err := buildQueue(cfg)
	if err != nil {
		return &exitError{code: 3, err: err}
	}
	defer queue.Close(5 * time.Second)

	pairs := store.NewAssetPairRegistry(kv)
	orderDB := store.NewOrderDB(kv)
	snapshots := store.NewSnapshotStore(kv)
	rates, err := store.NewRateCache(kv, 256)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	brokerCfg := broker.NewDefaultConfig()
	events, err := broker.New(ctx, log, brokerCfg)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	txs := broadcaster.New(chain, log)

	if err := metrics.Start(metrics.NewDefaultConfig()); err != nil {
		log.Warn("metrics server failed to start", zap.Error(err))
	}

	pairConfig := buildPairConfig(cfg)

	matcher := actor.NewMatcherActor(chain, queue, pairs, orderDB, snapshots, txs, events, pairConfig, log)

	watcher := config.NewWatcher(cfg)
	matcher.SetValidator(buildValidator(cfg, pairConfig, rates, matcher, watcher, chain))

	// matcher.Start's restore phase is synchronous and takes no context of
	// its own (spec.md §5's snapshot-restoration timeout), so it is raced
	// against a timer rather than cancelled outright: ctx itself must stay
	// live for the process lifetime, since Start hands it to every actor
	// goroutine it spawns.
	startErr := make(chan error, 1)
	go func() { startErr <- matcher.Start(ctx) }()
	select {
	case err = <-startErr:
		if err != nil {
			if apperrors.Is(err, apperrors.KindQueueUnavailable) {
				return &exitError{code: 3, err: err}
			}
			return &exitError{code: 2, err: err}
		}
	case <-time.After(cfg.SnapshotsLoadingTimeout):
		return &exitError{code: 2, err: apperrors.Timeout("snapshot restoration exceeded snapshotsLoadingTimeout")}
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := waitReady(ctx, matcher, cfg.StartEventsProcessingTimeout); err != nil {
		return &exitError{code: 2, err: err}
	}
	log.Info("matcher ready")

	apiServer := api.New(matcher, api.Config{Port: cfg.APIPort, AllowedOrigins: []string{"*"}}, log, events)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Warn("api server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Stop(shutdownCtx)
	return nil
}

func buildQueue(cfg config.Config) (eventqueue.Queue, error) {
	switch cfg.EventsQueue.Type {
	case "remote":
		return remote.New(remote.Config{
			Bootstrap:       cfg.EventsQueue.Remote.Bootstrap,
			Topic:           cfg.EventsQueue.Remote.Topic,
			ClientID:        cfg.EventsQueue.Remote.ClientID,
			GroupID:         cfg.EventsQueue.Remote.GroupID,
			ProducerAcks:    parseRequiredAcks(cfg.EventsQueue.Remote.ProducerAcks),
			ConsumerMaxPoll: cfg.EventsQueue.Remote.ConsumerMaxPoll,
		}), nil
	default:
		return local.Open(cfg.EventsQueue.Local.Path)
	}
}

func parseRequiredAcks(v string) kafka.RequiredAcks {
	switch v {
	case "none":
		return kafka.RequireNone
	case "leader":
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

func buildPairConfig(cfg config.Config) actor.PairConfig {
	pc := actor.PairConfig{
		Default: types.PairSettings{
			Rules:            types.MatchingRules{{StartOffset: 0, Aggregation: types.DisabledTickSize()}},
			MinFillUnit:      num.NewUint(1),
			SnapshotInterval: cfg.SnapshotsInterval,
		},
		Pairs: make(map[types.AssetPair]types.PairSettings),
	}
	for key, rules := range cfg.MatchingRules {
		pair, ok := types.ParsePairKey(key)
		if !ok {
			continue
		}
		schedule := make(types.MatchingRules, 0, len(rules))
		for _, r := range rules {
			agg := types.DisabledTickSize()
			if r.TickEnabled {
				agg = types.EnabledTickSize(num.NewUint(r.Ticks))
			}
			schedule = append(schedule, types.MatchingRule{StartOffset: r.StartOffset, Aggregation: agg})
		}
		pc.Pairs[pair] = types.PairSettings{
			Rules:            schedule,
			MinFillUnit:      num.NewUint(1),
			SnapshotInterval: cfg.SnapshotsInterval,
		}
	}
	return pc
}

func buildValidator(cfg config.Config, pairConfig actor.PairConfig, rates *store.RateCache, matcher *actor.MatcherActor, watcher *config.Watcher, chain *stub.Chain) *validator.Validator {
	allowedPairs := make(map[types.AssetPair]struct{})
	for key := range cfg.MatchingRules {
		if pair, ok := types.ParsePairKey(key); ok {
			allowedPairs[pair] = struct{}{}
		}
	}
	allowedVersions := make(map[types.OrderVersion]struct{})
	for _, v := range cfg.AllowedOrderVersions {
		allowedVersions[types.OrderVersion(v)] = struct{}{}
	}

	settings := validator.Settings{
		AllowedPairs:         allowedPairs,
		AllowedOrderVersions: allowedVersions,
		BlacklistedAssets:    watcher.BlacklistedAssets(),
		BlacklistedAddresses: watcher.BlacklistedAddresses(),
		MinExpiryWindow:      1,
		MaxExpiryWindow:      365 * 24 * 60 * 60,
		DeviationBps:         cfg.DeviationBps,
	}

	rules := func(pair types.AssetPair) types.TickSize {
		return pairConfig.SettingsFor(pair).Rules.RuleAt(0)
	}

	return validator.New(settings, rates, matcher, chain, rules, func() uint64 {
		return uint64(time.Now().Unix())
	})
}

// waitReady polls matcher.Status until Ready or timeout elapses.
func waitReady(ctx context.Context, matcher *actor.MatcherActor, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if matcher.Status() == actor.StatusReady {
			return nil
		}
		if time.Now().After(deadline) {
			return apperrors.Timeout("matcher did not reach Ready before startEventsProcessingTimeout elapsed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
