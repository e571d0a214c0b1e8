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

// Package coordination defines the multi-node coordination seam spec.md
// §1 calls out as an external collaborator whose implementation is
// explicitly out of scope: "an optional coordinator interface is
// mentioned but its implementation is excluded - the provided source is
// a stub." NoopCoordinator is what single-node mode uses; EtcdCoordinator
// is kept as the same kind of stub the ported source carried, wired
// enough to compile and to prove out leader-election membership but not
// a complete distributed algorithm.
package coordination

import "context"

// Coordinator arbitrates which controller instance is allowed to drive
// scale decisions when more than one replica is running.
type Coordinator interface {
	// IsLeader reports whether this instance currently holds leadership.
	// Single-node deployments are trivially always the leader.
	IsLeader(ctx context.Context) (bool, error)
	// Close releases any held lease or connection.
	Close() error
}

// NoopCoordinator is used when USE_ETCD_COORDINATION is false: this
// instance is always considered the leader, matching today's
// single-node deployment model.
type NoopCoordinator struct{}

func NewNoopCoordinator() *NoopCoordinator { return &NoopCoordinator{} }

func (NoopCoordinator) IsLeader(context.Context) (bool, error) { return true, nil }
func (NoopCoordinator) Close() error                           { return nil }
