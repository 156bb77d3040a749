// Package metrics holds the prometheus collectors of the bus tools.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	FramesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linbus_frames_received_total",
			Help: "Frames read from the bus that match the description.",
		},
		[]string{"frame"},
	)

	ReceptionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linbus_reception_errors_total",
			Help: "Frames reported with a nonzero error bitfield.",
		},
		[]string{"frame"},
	)

	UnknownFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linbus_unknown_frames_total",
		Help: "Frames whose identifier is not in the description.",
	})

	DecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linbus_decode_errors_total",
		Help: "Received payloads that did not match their frame layout.",
	})

	SignalChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linbus_signal_changes_total",
		Help: "Signal observations that differed from the last seen value.",
	})

	FuzzUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linbus_fuzz_updates_total",
			Help: "Payload updates pushed by the fuzz loop.",
		},
		[]string{"frame"},
	)
)

// Collectors returns every collector of the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		FramesReceived,
		ReceptionErrors,
		UnknownFrames,
		DecodeErrors,
		SignalChanges,
		FuzzUpdates,
	}
}

// Register adds the collectors to reg. Collectors already registered are
// accepted.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler serves the metrics of g plus a /health probe.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve registers the collectors with the default registry and serves them
// on addr in the background.
func Serve(addr string, log *logrus.Logger) error {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	log.Infof("metrics server listening on %s", addr)
	go func() {
		if err := http.ListenAndServe(addr, Handler(prometheus.DefaultGatherer)); err != nil {
			log.Errorf("metrics server: %v", err)
		}
	}()
	return nil
}
