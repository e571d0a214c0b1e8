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

package reconciler

import (
	"sync"

	"github.com/scale-to-zero/scaler/pkg/registry"
)

// WorkloadIndex is the auxiliary map spec.md §4.4 calls
// `WorkloadReference -> Service`: it lets a Deployment/StatefulSet event
// find the service IP whose registry entry should receive the new
// backend-available value.
type WorkloadIndex struct {
	mu   sync.RWMutex
	byWL map[registry.WorkloadKey]string
}

func NewWorkloadIndex() *WorkloadIndex {
	return &WorkloadIndex{byWL: make(map[registry.WorkloadKey]string)}
}

// Bind records that workload key wl backs the service at serviceIP.
func (idx *WorkloadIndex) Bind(wl registry.WorkloadKey, serviceIP string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byWL[wl] = serviceIP
}

// Lookup returns the service IP bound to wl, if any.
func (idx *WorkloadIndex) Lookup(wl registry.WorkloadKey) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ip, ok := idx.byWL[wl]
	return ip, ok
}
