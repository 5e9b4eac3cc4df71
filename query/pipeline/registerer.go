package pipeline

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// reusableRegistry lets the same metrics be registered more than once, e.g.
// when every run of a process builds its own Metrics on a shared registry. A
// collector replacing a registered one takes its place and starts from zero.
// The underlying registry is the source of truth, so any number of wrappers
// over it behave the same.
type reusableRegistry struct {
	reg prometheus.Registerer
}

var _ prometheus.Registerer = (*reusableRegistry)(nil)

func newReusableRegistry(reg prometheus.Registerer) *reusableRegistry {
	return &reusableRegistry{reg: reg}
}

func (r *reusableRegistry) Register(c prometheus.Collector) error {
	err := r.reg.Register(c)
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return err
	}
	r.reg.Unregister(are.ExistingCollector)
	return r.reg.Register(c)
}

func (r *reusableRegistry) MustRegister(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

func (r *reusableRegistry) Unregister(c prometheus.Collector) bool {
	return r.reg.Unregister(c)
}
