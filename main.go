package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maintenance-cloud/internal/config"
	"maintenance-cloud/internal/features"
	"maintenance-cloud/internal/ingest"
	"maintenance-cloud/internal/model"
	"maintenance-cloud/internal/mqttbus"
	"maintenance-cloud/internal/observability/metrics"
	"maintenance-cloud/internal/prediction"
	storagepg "maintenance-cloud/internal/readings/infrastructure/postgres"
	"maintenance-cloud/internal/report"
	"maintenance-cloud/internal/upstream"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	if err := config.Watch(configPath, logger); err != nil {
		logger.Printf("config watch error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	codec, err := loadCodec(cfg.Model.CodecPath)
	if err != nil {
		logger.Fatalf("feature codec error: %v", err)
	}
	encoder, err := features.NewEncoder(codec)
	if err != nil {
		logger.Fatalf("feature encoder error: %v", err)
	}

	runtime, err := model.NewRuntime(cfg.Model.Path, cfg.Model.Version)
	if err != nil {
		logger.Fatalf("model runtime error: %v", err)
	}
	if err := runtime.Load(); err != nil {
		// The service stays up without a model: readings are still
		// ingested and carry a placeholder verdict.
		logger.Printf("model load error: %v, serving placeholder predictions", err)
	} else if runtime.NumFeatures() != codec.VectorLength() {
		logger.Fatalf("model expects %d features, codec produces %d", runtime.NumFeatures(), codec.VectorLength())
	}
	defer runtime.Close()

	orchestrator, err := prediction.NewOrchestrator(encoder, runtime, logger)
	if err != nil {
		logger.Fatalf("prediction orchestrator error: %v", err)
	}

	repo := storagepg.NewReadingRepository(db)
	query := storagepg.NewReadingQuery(db)

	consumer, err := ingest.NewConsumer(repo, orchestrator, logger, cfg.Ingest.Buffer)
	if err != nil {
		logger.Fatalf("ingest consumer error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx, cfg.Ingest.Workers)

	broker, err := mqttbus.NewClient(mqttbus.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	}, logger)
	if err != nil {
		logger.Fatalf("mqtt client error: %v", err)
	}
	if err := broker.Connect(); err != nil {
		logger.Fatalf("mqtt connect error: %v", err)
	}
	defer broker.Disconnect()

	topic := mqttbus.SharedTopic(cfg.Ingest.Group, cfg.MQTT.Topic)
	if err := broker.Subscribe(topic, consumer.Submit); err != nil {
		logger.Fatalf("mqtt subscribe error: %v", err)
	}

	var fetcher *upstream.Fetcher
	if cfg.Upstream.URL != "" {
		fetcher, err = upstream.NewFetcher(cfg.Upstream.URL, cfg.MQTT.Topic, broker, logger,
			upstream.WithRetryDelay(cfg.Upstream.RetryDelay))
		if err != nil {
			logger.Fatalf("upstream fetcher error: %v", err)
		}
		go fetcher.Run(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/exports/readings.xlsx", report.NewExportReadingsXLSXHandler(query))
	mux.Handle("/api/v1/reports/health.pdf", report.NewHealthPDFHandler(query))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		status := "model=ready"
		if !runtime.IsReady() {
			status = "model=not_ready"
		}
		if fetcher != nil {
			status += " upstream=" + fetcher.State().String()
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(status))
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Printf("received %s, shutting down", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	consumer.Wait()
}

func loadCodec(path string) (*features.Codec, error) {
	if path == "" {
		return features.DefaultCodec()
	}
	return features.LoadCodec(path)
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
