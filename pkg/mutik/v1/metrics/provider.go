package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistryProvider defines the interface for accessing the metrics registry
// that stores and event listeners register their collectors with. Applications
// expose it through their chosen method (e.g. a Prometheus HTTP endpoint).
type RegistryProvider interface {
	// Registry returns the Prometheus registry holding mutik metrics.
	Registry() *prometheus.Registry
}
