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

package scaling

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/scale-to-zero/scaler/pkg/classifier"
	"github.com/scale-to-zero/scaler/pkg/metrics"
	"github.com/scale-to-zero/scaler/pkg/registry"
)

// syncInterval is the kernel-map convergence period, spec.md §4.5.4.
const syncInterval = 100 * time.Millisecond

func availableValue(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// KernelMapSync is the manager.Runnable implementing spec.md §4.5.4: it
// converges classifier.ServiceMap towards the registry's
// {ip: backend_available} view every syncInterval.
type KernelMapSync struct {
	Log      logr.Logger
	Registry *registry.Registry
	Map      classifier.ServiceMap
}

func NewKernelMapSync(log logr.Logger, reg *registry.Registry, m classifier.ServiceMap) *KernelMapSync {
	return &KernelMapSync{Log: log, Registry: reg, Map: m}
}

// Start implements manager.Runnable.
func (s *KernelMapSync) Start(ctx context.Context) error {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SyncOnce()
		}
	}
}

// SyncOnce runs a single convergence pass. Exported so tests can drive
// it deterministically instead of waiting on the ticker.
func (s *KernelMapSync) SyncOnce() {
	desired := make(map[uint32]uint32)
	for ip, data := range s.Registry.Snapshot() {
		u32, ok := classifier.IPToUint32(ip)
		if !ok {
			s.Log.V(1).Info("skipping non-IPv4 registry key during kernel map sync", "key", ip)
			continue
		}
		desired[u32] = availableValue(data.BackendAvailable)
	}

	existingKeys, err := s.Map.Keys()
	if err != nil {
		metrics.KernelSyncErrorsTotal.Inc()
		s.Log.Error(err, "failed to list kernel map keys, skipping this sync tick")
		return
	}
	existing := make(map[uint32]struct{}, len(existingKeys))
	for _, k := range existingKeys {
		existing[k] = struct{}{}
	}

	for ip, want := range desired {
		got, present, err := s.Map.Get(ip)
		if err != nil {
			metrics.KernelSyncErrorsTotal.Inc()
			s.Log.Error(err, "failed to read kernel map entry", "ip", classifier.Uint32ToIP(ip))
			continue
		}
		if !present || got != want {
			if err := s.Map.Upsert(ip, want); err != nil {
				metrics.KernelSyncErrorsTotal.Inc()
				s.Log.Error(err, "failed to upsert kernel map entry", "ip", classifier.Uint32ToIP(ip))
			}
		}
	}

	for ip := range existing {
		if _, wanted := desired[ip]; !wanted {
			if err := s.Map.Delete(ip); err != nil {
				metrics.KernelSyncErrorsTotal.Inc()
				s.Log.Error(err, "failed to remove stale kernel map entry", "ip", classifier.Uint32ToIP(ip))
			}
		}
	}
}
