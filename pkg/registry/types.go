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

// Package registry holds the process-wide authoritative map from service
// IP to ServiceData: the single source of truth for availability, timing
// and topology that the kernel classifier, the reconciler and the scale
// engine all read and mutate.
package registry

import "time"

// WorkloadKind identifies the kind of workload backing a service.
type WorkloadKind string

const (
	KindDeployment  WorkloadKind = "deployment"
	KindStatefulSet WorkloadKind = "stateful_set"
)

// HPAConfig captures enough of a HorizontalPodAutoscaler's spec to
// recreate it faithfully after a scale-to-zero excursion. Metrics and
// behavior are preserved verbatim as JSON so recreation is lossless even
// for fields this controller never interprets.
type HPAConfig struct {
	MinReplicas                    *int32
	MaxReplicas                    int32
	TargetCPUUtilizationPercentage *int32
	MetricsJSON                    string
	BehaviorJSON                   string
}

// ServiceData is one registry entry, keyed externally by the service's
// cluster IP.
type ServiceData struct {
	ScaleDownTime  time.Duration
	LastPacketTime time.Time

	Kind      WorkloadKind
	Name      string
	Namespace string

	// BackendAvailable mirrors "replicas >= 1"; this is the only field
	// exported to the kernel map.
	BackendAvailable bool

	// Dependencies are peers this service calls (children); Dependents
	// are peers that call this service (parents). Entries are IP, name,
	// or namespace/name strings, resolved lazily.
	Dependencies []string
	Dependents   []string

	// ScalingPriority orders scale traversal: lower scales down first
	// and up last (parent), higher scales up first and down last
	// (child).
	ScalingPriority int32

	HPAEnabled bool
	HPAName    string
	HPADeleted bool
	HPAConfig  *HPAConfig
}

// IsParent reports whether priority places this entry on the parent side
// of the auto-priority split (priority 50 or lower).
func (s ServiceData) IsParent() bool {
	return s.ScalingPriority <= 50
}

// WorkloadKey identifies a Deployment or StatefulSet so that replica
// events on it can be joined back to the service that references it.
type WorkloadKey struct {
	Kind      WorkloadKind
	Name      string
	Namespace string
}
