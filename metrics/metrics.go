// Package metrics exposes Prometheus counters for model construction.
//
// The counters are always updated; they are only exported once Register has
// been called with a registry.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ModelsRejected counts constructions that returned an error, by operator.
	ModelsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gossf",
		Name:      "models_rejected_total",
		Help:      "Total number of model constructions rejected, by operator",
	}, []string{"op"})

	// SquareRoots counts lazily computed innovation square roots.
	SquareRoots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gossf",
		Name:      "square_roots_total",
		Help:      "Total number of cached innovation square roots computed",
	})
)

// Register exports the package counters on reg. Registering twice on the same
// registry is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{ModelsRejected, SquareRoots} {
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
