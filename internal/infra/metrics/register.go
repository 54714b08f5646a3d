package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerMu sync.Mutex

// register adds collectors to the default registry, tolerating repeats so
// init order never matters in tests.
func register(cs ...prometheus.Collector) {
	registerMu.Lock()
	defer registerMu.Unlock()
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
		}
	}
}

// norm keeps label values low-cardinality and predictable.
func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return strings.ReplaceAll(s, " ", "_")
}
