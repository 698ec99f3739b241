package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/logging"
	"github.com/rcliao/wip-ledger/internal/observe"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Track observations from a Kafka topic",
		Long:  "Consume JSON observations from Kafka and fold each into the ledger. Serves Prometheus metrics when --metrics-addr (or WIP_METRICS_ADDR) is set.",
		Run:   runConsume,
	}

	cmd.Flags().String("metrics-addr", "", "Metrics listen address, e.g. :9090")

	RootCmd.AddCommand(cmd)
}

func runConsume(cmd *cobra.Command, args []string) {
	cfg := resolveConfig()
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr.Value
	}

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		exitErr("consume", fmt.Errorf("no Kafka brokers configured (WIP_KAFKA_BROKERS or kafka.brokers)"))
	}

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if metricsAddr != "" {
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			logging.Info("consume", "metrics listening on %s", metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Info("consume", "metrics server error: %v", err)
			}
		}()
	}

	reader := observe.NewReader(observe.ReaderConfig{
		Brokers: brokers,
		Topic:   cfg.KafkaTopic.Value,
		GroupID: cfg.KafkaGroup.Value,
	})
	defer reader.Close()

	handler := observe.NewTrackHandler(newTracker(cfg, s))
	proc := observe.NewProcessor(reader, handler, observe.WithLogger(logging.New("observe")))

	logging.Info("consume", "consuming %s from %v (group %s)", cfg.KafkaTopic.Value, brokers, cfg.KafkaGroup.Value)
	err = proc.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
			logging.Info("consume", "metrics shutdown error: %v", serr)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		exitErr("consume", err)
	}
	logging.Info("consume", "stopped")
}
