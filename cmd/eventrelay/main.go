package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"eventrelay/config"
	inputredis "eventrelay/internal/input/redis"
	"eventrelay/internal/logger"
	"eventrelay/internal/metrics"
	"eventrelay/internal/output/filebus"
	"eventrelay/internal/output/httpbus"
	"eventrelay/internal/output/redisbus"
	"eventrelay/internal/output/snsbus"
	"eventrelay/internal/pipeline"
	"eventrelay/internal/publisher"
	"eventrelay/internal/rules"
)

const defaultConfigName = "eventrelay.yml"

func findConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return defaultConfigName
}

func loadConfig(configArg string) (*config.Config, string) {
	configPath := findConfigFile(configArg)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.ApplyDefaults(cfg)

	l := cfg.EventRelay.Logging
	if err := logger.Init(l.Enabled, l.Level, l.File, l.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return cfg, configPath
}

func newBus(cfg config.PublishConfig) (publisher.Bus, error) {
	switch cfg.Mode {
	case "sns":
		return snsbus.New(snsbus.Config{RegionEnv: cfg.SNS.RegionEnv, Endpoint: cfg.SNS.Endpoint}), nil
	case "redis":
		return redisbus.New(redisbus.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			MaxLen:   cfg.Redis.MaxLen,
		})
	case "http":
		return httpbus.New(httpbus.Config{
			URL:     cfg.HTTP.URL,
			Timeout: cfg.HTTP.Timeout,
			Headers: cfg.HTTP.Headers,
		})
	case "file":
		return filebus.New(cfg.File.Path)
	default:
		return nil, fmt.Errorf("unknown publish mode: %s", cfg.Mode)
	}
}

func newEngine(cfg config.RulesConfig) rules.Engine {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Path) == "" {
		logger.Warnf("Rules enabled but rules.path is empty; suppression disabled")
		return nil
	}
	engine, stats, err := rules.NewSigmaEngine(cfg.Path)
	if err != nil {
		logger.Errorf("Failed to load Sigma rules from %s: %v", cfg.Path, err)
		log.Fatalf("Failed to load Sigma rules: %v", err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedDatasource,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; suppression is effectively disabled")
	}
	return engine
}

func serveMetrics(cfg config.MetricsConfig) *http.Server {
	if !cfg.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server error: %v", err)
		}
	}()
	logger.Infof("Metrics listening on %s", cfg.Addr)
	return srv
}

func runRelay(args []string) {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}
	cfg, configPath := loadConfig(configArg)
	defer logger.Close()

	logger.Infof("EventRelay starting")
	logger.Infof("Config loaded from: %s", configPath)

	rc := cfg.EventRelay
	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:          rc.Input.Redis.Addr,
		Password:      rc.Input.Redis.Password,
		DB:            rc.Input.Redis.DB,
		Key:           rc.Input.Redis.Key,
		BlockTimeout:  rc.Input.Redis.BlockTimeout,
		DeadLetterKey: rc.Input.Redis.DeadLetterKey,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}

	bus, err := newBus(rc.Publish)
	if err != nil {
		logger.Errorf("Failed to create message bus: %v", err)
		log.Fatalf("Failed to create message bus: %v", err)
	}
	logger.Infof("Publish mode: %s (topic=%s)", rc.Publish.Mode, rc.Publish.Topic)

	metricsSrv := serveMetrics(rc.Metrics)

	pipe := pipeline.NewRelayPipeline(
		consumer,
		newEngine(rc.Rules),
		publisher.New(bus),
		rc.Publish.Topic,
		rc.Pipeline.Workers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	<-done

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	if metricsSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		metricsSrv.Shutdown(shutdownCtx)
		stop()
	}

	logger.Infof("EventRelay stopped")
}

func runPublish(args []string) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	input := fs.String("input", "-", "JSONL file with raw audit events, - for stdin")
	topic := fs.String("topic", "", "Topic override")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, _ := loadConfig(*configArg)
	defer logger.Close()

	target := cfg.EventRelay.Publish.Topic
	if *topic != "" {
		target = *topic
	}

	var r io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open input: %v\n", err)
			return 1
		}
		defer f.Close()
		r = f
	}

	bus, err := newBus(cfg.EventRelay.Publish)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create message bus: %v\n", err)
		return 1
	}
	pub := publisher.New(bus)
	defer pub.Close()

	sent, failed := publishLines(context.Background(), pub, r, target)
	fmt.Printf("published=%d failed=%d topic=%s\n", sent, failed, target)
	if failed > 0 {
		return 1
	}
	return 0
}

func publishLines(ctx context.Context, pub *publisher.Publisher, r io.Reader, topic string) (sent, failed int) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if res := pub.PublishRaw(ctx, []byte(line), topic); res.OK() {
			sent++
		} else {
			failed++
		}
	}
	if err := scanner.Err(); err != nil {
		// The rest of the input was not read; report it as a failure.
		logger.Errorf("Failed to read input after %d events: %v", sent+failed, err)
		failed++
	}
	return sent, failed
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runRelay(os.Args[2:])
			return
		case "publish":
			os.Exit(runPublish(os.Args[2:]))
		default:
			// A bare config path runs the relay.
			runRelay(os.Args[1:])
			return
		}
	}

	runRelay(nil)
}
