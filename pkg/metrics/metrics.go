/*
Copyright 2026 The Scale-to-Zero Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics registers the Prometheus collectors this controller
// exposes, following the same client_golang + controller-runtime metrics
// registry convention the teacher stack uses.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	ScaleUpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scale_to_zero",
		Name:      "scale_up_total",
		Help:      "Total number of workload scale-up patches issued, by result.",
	}, []string{"result"})

	ScaleDownTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scale_to_zero",
		Name:      "scale_down_total",
		Help:      "Total number of workload scale-down patches issued, by result.",
	}, []string{"result"})

	RegistrySize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scale_to_zero",
		Name:      "registry_size",
		Help:      "Current number of tracked service registry entries.",
	})

	ScalingPriority = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "scale_to_zero",
		Name:      "scaling_priority",
		Help:      "Current scaling priority for each tracked service, by service IP.",
	}, []string{"service_ip"})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scale_to_zero",
		Name:      "rate_limited_total",
		Help:      "Total number of scale-up invocations suppressed by the per-IP rate limit.",
	})

	KernelSyncErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scale_to_zero",
		Name:      "kernel_sync_errors_total",
		Help:      "Total number of per-key kernel map sync failures.",
	})
)

// MustRegister registers every collector in this package with
// controller-runtime's global metrics registry, the same registry
// kubebuilder-generated operators expose on /metrics.
func MustRegister() {
	metrics.Registry.MustRegister(
		ScaleUpTotal,
		ScaleDownTotal,
		RegistrySize,
		ScalingPriority,
		RateLimitedTotal,
		KernelSyncErrorsTotal,
	)
}
