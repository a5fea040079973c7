package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/depthbridge/config"
	"github.com/spooky-finn/depthbridge/domain"
	"github.com/spooky-finn/depthbridge/infrastructure/httpserver"
	promclient "github.com/spooky-finn/depthbridge/infrastructure/prometheus"
	"github.com/spooky-finn/depthbridge/infrastructure/sink"
	"github.com/spooky-finn/depthbridge/maintainer"
	"github.com/spooky-finn/depthbridge/monitor"
	"github.com/spooky-finn/depthbridge/provider/binance"
	"github.com/spooky-finn/depthbridge/rpc"
	"github.com/spooky-finn/depthbridge/usecase"
	"golang.org/x/time/rate"
)

var logger = logrus.WithField("component", "main")

func main() {
	conf, err := config.Load(".env")
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	setupLogging(conf)

	symbols, err := domain.ParseSymbols(strings.Join(conf.Symbols, ","))
	if err != nil {
		logger.WithError(err).Fatal("invalid symbols")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := promclient.NewMetrics()

	limiter := rate.NewLimiter(rate.Limit(conf.SnapshotRateLimit), conf.SnapshotRateBurst)
	syncAPI := binance.NewBinanceSyncAPI(conf.RestEndpoint, limiter, nil)
	streamClient := binance.NewBinanceStreamClient(binance.StreamClientOptions{
		Endpoint:     conf.StreamEndpoint,
		ReconnectMin: conf.ReconnectMin,
		ReconnectMax: conf.ReconnectMax,
		ReadTimeout:  conf.ReadTimeout,
	})
	streamAPI := binance.NewBinanceStreamAPI(streamClient, conf.DepthStreamSuffix)

	engine := maintainer.NewEngine(streamAPI, syncAPI, &binance.BinanceDepthUpdateValidator{}, maintainer.Options{
		Symbols:          symbols,
		Depth:            conf.Depth,
		SnapshotLimit:    conf.SnapshotLimit,
		MaxPendingEvents: conf.MaxPendingEvents,
		PollInterval:     conf.SnapshotPollInterval,
		RetryMin:         conf.SnapshotRetryMin,
	}, metrics)

	sinks, closeSinks := buildSinks(conf)
	defer closeSinks()

	spreadMonitor := monitor.NewSpreadMonitor(conf.FeeThreshold, metrics, sinks...)
	snapshots := usecase.NewOrderBookSnapshotUseCase(engine, syncAPI, conf.AutoTrack)

	var wg sync.WaitGroup
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				logger.WithError(err).Errorf("%s stopped", name)
				stop()
			}
		}()
	}

	run("http server", func() error {
		return httpserver.NewServer(snapshots, engine, metrics.Handler()).ListenAndServe(ctx, conf.HTTPAddr)
	})
	run("grpc server", func() error {
		srv := rpc.NewServer(snapshots, engine, &rpc.ValidationServiceConfig{
			DefaultDepth: conf.Depth,
			MaxDepth:     conf.SnapshotLimit,
		})
		return rpc.Serve(ctx, conf.GRPCAddr, srv)
	})
	run("spread monitor", func() error {
		spreadMonitor.Run(ctx, engine.Updates())
		return nil
	})
	run("engine", func() error {
		return engine.Run(ctx)
	})

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
}

func setupLogging(conf config.Config) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	config.DebugMode = conf.Debug
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		logger.WithError(err).Warnf("unknown log level %q, using info", conf.LogLevel)
		level = logrus.InfoLevel
	}
	if config.DebugMode && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
}

func buildSinks(conf config.Config) ([]monitor.SignalSink, func()) {
	sinks := []monitor.SignalSink{sink.NewLogSink()}
	closers := make([]func(), 0)

	if conf.NATSURL != "" {
		nc, err := sink.ConnectNATS(conf.NATSURL)
		if err != nil {
			logger.WithError(err).Error("nats sink disabled")
		} else {
			sinks = append(sinks, sink.NewNATSSink(nc, conf.NATSSubject))
			closers = append(closers, nc.Close)
		}
	}

	if len(conf.KafkaBrokers) > 0 {
		kafkaSink := sink.NewKafkaSink(sink.NewKafkaWriter(conf.KafkaBrokers, conf.KafkaTopic))
		sinks = append(sinks, kafkaSink)
		closers = append(closers, func() {
			if err := kafkaSink.Close(); err != nil {
				logger.WithError(err).Warn("failed to close kafka writer")
			}
		})
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
