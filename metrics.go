// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fskv

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics is nil when WithMetrics wasn't used; all methods accept a nil
// receiver.
type metrics struct {
	ops     *prometheus.CounterVec
	entries prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, root string) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}
	labels := prometheus.Labels{"root": root}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "fskv",
		Name:        "operations_total",
		Help:        "Store operations by operation and outcome.",
		ConstLabels: labels,
	}, []string{"op", "result"})
	entries := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "fskv",
		Name:        "entries",
		Help:        "Number of key/value entries in the store.",
		ConstLabels: labels,
	})

	var err error
	if ops, err = register(reg, ops); err != nil {
		return nil, err
	}
	if entries, err = register(reg, entries); err != nil {
		return nil, err
	}
	return &metrics{ops: ops, entries: entries}, nil
}

// register adds c to reg, reusing an identical collector registered by an
// earlier Open of the same root.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("prometheus.Register: %w", err)
	}
	return c, nil
}

func (m *metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, kindOf(err)).Inc()
}

func (m *metrics) setEntries(n uint64) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}
