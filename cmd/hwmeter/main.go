package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/agent"
	"github.com/HerbHall/hwmeter/internal/config"
	"github.com/HerbHall/hwmeter/internal/host"
	"github.com/HerbHall/hwmeter/internal/inspector"
	"github.com/HerbHall/hwmeter/internal/inspector/local"
	"github.com/HerbHall/hwmeter/internal/inspector/snmp"
	"github.com/HerbHall/hwmeter/internal/pollster"
	"github.com/HerbHall/hwmeter/internal/publish"
	"github.com/HerbHall/hwmeter/internal/server"
	"github.com/HerbHall/hwmeter/internal/store"
	"github.com/HerbHall/hwmeter/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.GetBool("log.development"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("hwmeter starting", zap.String("version", version.Short()))

	hosts, err := cfg.Hosts()
	if err != nil {
		logger.Fatal("failed to load host list", zap.Error(err))
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		version.Collector(),
	)
	metrics := agent.NewMetrics(promReg)

	// Inspectors, in priority order.
	registry := inspector.NewRegistry(logger.Named("inspector"))
	for _, register := range []func(*inspector.Registry) error{snmp.Register, local.Register} {
		if err := register(registry); err != nil {
			logger.Fatal("failed to register inspector", zap.Error(err))
		}
	}
	inspectors, err := registry.Build(
		cfg.GetStringSlice("inspectors.enabled"),
		cfg.InspectorSettings(registry.Names()),
		cfg.GetStringSlice("inspectors.disabled"),
	)
	if err != nil {
		logger.Fatal("failed to build inspectors", zap.Error(err))
	}
	manager := inspector.NewManager(inspectors, logger.Named("manager"),
		inspector.WithFailureCounter(metrics.InspectionFailures))

	resolver := host.NewResolver(
		host.NewICMPProber(cfg.GetDuration("identity.probe_timeout"), cfg.GetInt("identity.probe_count")),
		logger.Named("resolver"),
	)

	tracker := pollster.NewUtilizationTracker()
	pollsters, err := pollster.Select(
		pollster.Defaults(tracker, logger.Named("pollster"), pollster.SystemClock()),
		cfg.GetStringSlice("pollsters.enabled"),
	)
	if err != nil {
		logger.Fatal("failed to select pollsters", zap.Error(err))
	}

	// Sinks. The store doubles as the API's sample reader.
	var (
		sinks   []publish.Sink
		samples server.SampleReader
	)
	if cfg.GetBool("publish.log") {
		sinks = append(sinks, publish.NewLogSink(logger.Named("samples")))
	}
	if cfg.GetBool("store.enabled") {
		st, err := store.New(cfg.GetString("store.path"))
		if err != nil {
			logger.Fatal("failed to open store", zap.Error(err))
		}
		defer st.Close()
		sinks = append(sinks, publish.NewStoreSink(st))
		samples = st
	}
	if cfg.GetBool("publish.prometheus") {
		prom := publish.NewPrometheusSink("hwmeter")
		promReg.MustRegister(prom)
		sinks = append(sinks, prom)
	}
	if cfg.GetBool("publish.mqtt.enabled") {
		var mqttConf publish.MQTTConfig
		if err := cfg.UnmarshalKey("publish.mqtt", &mqttConf); err != nil {
			logger.Fatal("invalid mqtt configuration", zap.Error(err))
		}
		sink, err := publish.NewMQTTSink(mqttConf, logger.Named("mqtt"))
		if err != nil {
			logger.Fatal("failed to connect mqtt sink", zap.Error(err))
		}
		sinks = append(sinks, sink)
	}
	fanout := publish.NewFanout(logger.Named("publish"), sinks...)
	defer fanout.Close()

	agentConf := agent.DefaultConfig()
	agentConf.Interval = cfg.GetDuration("poll.interval")
	agentConf.Workers = cfg.GetInt("poll.workers")
	agentConf.DisabledPollsters = cfg.GetStringSlice("pollsters.disabled")

	a := agent.New(agentConf, agent.Deps{
		Hosts:     hosts,
		Resolver:  resolver,
		Manager:   manager,
		Pollsters: pollsters,
		Sink:      fanout,
		Metrics:   metrics,
		Tracker:   tracker,
	}, logger.Named("agent"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var srv *server.Server
	if cfg.GetBool("server.enabled") {
		addr := net.JoinHostPort(cfg.GetString("server.host"), cfg.GetString("server.port"))
		srv = server.New(addr, server.Deps{
			Samples:    samples,
			Inspectors: manager,
			Status:     a,
			Gatherer:   promReg,
			RateLimit:  cfg.GetFloat64("server.rate_limit"),
		}, logger.Named("server"))

		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("server error", zap.Error(err))
				cancel()
			}
		}()
	}

	logger.Info("hwmeter ready",
		zap.Int("hosts", len(hosts)),
		zap.Strings("inspectors", inspectorNames(inspectors)),
		zap.Strings("pollsters", a.EnabledPollsters()),
	)

	if err := a.Run(ctx); err != nil {
		logger.Error("agent stopped", zap.Error(err))
	}

	logger.Info("shutting down")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}

	logger.Info("hwmeter stopped")
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func inspectorNames(insps []inspector.Inspector) []string {
	names := make([]string, 0, len(insps))
	for _, i := range insps {
		names = append(names, i.Name())
	}
	return names
}
