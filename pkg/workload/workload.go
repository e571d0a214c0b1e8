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

// Package workload abstracts the four-field capability set the scaler
// needs from a Deployment or StatefulSet (name, kind, namespace,
// replicas) behind one client, instead of branching on kind everywhere a
// workload is touched. Ported from spec.md §9's "ad-hoc polymorphism"
// redesign note.
package workload

import (
	"context"
	"fmt"

	"github.com/scale-to-zero/scaler/pkg/registry"
)

// Ref identifies a Deployment or StatefulSet.
type Ref struct {
	Kind      registry.WorkloadKind
	Name      string
	Namespace string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Namespace, r.Name)
}

// ClusterClient is the abstract collaborator spec.md treats as external:
// the thin slice of a cluster API client the scaler actually needs.
// Production wiring is scale-client backed (see scaleclient.go); tests
// supply a fake.
type ClusterClient interface {
	// GetReplicas returns the current replica count for ref.
	GetReplicas(ctx context.Context, ref Ref) (int32, error)
	// SetReplicas patches ref's replica count.
	SetReplicas(ctx context.Context, ref Ref, replicas int32) error
}

// ParseReference parses a service's "scale-to-zero/reference" annotation
// value, which is either "kind/name" (same namespace as the service) or
// "kind/namespace/name" (cross-namespace). It returns an error for any
// other shape; the caller logs and skips the event, per spec.md §4.4.
func ParseReference(value, serviceNamespace string) (Ref, error) {
	parts := splitNonEmpty(value, '/')
	switch len(parts) {
	case 2:
		kind, err := parseKind(parts[0])
		if err != nil {
			return Ref{}, err
		}
		return Ref{Kind: kind, Name: parts[1], Namespace: serviceNamespace}, nil
	case 3:
		kind, err := parseKind(parts[0])
		if err != nil {
			return Ref{}, err
		}
		return Ref{Kind: kind, Namespace: parts[1], Name: parts[2]}, nil
	default:
		return Ref{}, fmt.Errorf("invalid reference annotation %q: expected 'kind/name' or 'kind/namespace/name'", value)
	}
}

func parseKind(s string) (registry.WorkloadKind, error) {
	switch s {
	case "deployment":
		return registry.KindDeployment, nil
	case "stateful_set", "statefulset":
		return registry.KindStatefulSet, nil
	default:
		return "", fmt.Errorf("unknown workload kind %q: expected 'deployment' or 'stateful_set'", s)
	}
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
