package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antispam_violations_total",
			Help: "Total number of antispam violations detected",
		},
		[]string{"filter"},
	)

	enforcementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antispam_enforcements_total",
			Help: "Total number of enforcement actions applied",
		},
		[]string{"action"},
	)

	messageProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "Time spent processing messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(violationsTotal)
	prometheus.MustRegister(enforcementsTotal)
	prometheus.MustRegister(messageProcessingDuration)
}

// Serve blocks on the metrics endpoint until the context is canceled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("metrics server shutdown failed")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RecordViolation records a detected violation by filter id.
func RecordViolation(filter string) {
	violationsTotal.WithLabelValues(filter).Inc()
}

// RecordEnforcement records an applied enforcement action.
func RecordEnforcement(action string) {
	enforcementsTotal.WithLabelValues(action).Inc()
}

// StartMessageProcessing returns a function to record message processing duration.
func StartMessageProcessing() func(status string) {
	start := time.Now()
	return func(status string) {
		messageProcessingDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}
