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
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/scale-to-zero/scaler/pkg/metrics"
	"github.com/scale-to-zero/scaler/pkg/registry"
	"github.com/scale-to-zero/scaler/pkg/workload"
)

// scaleDownInterval is the scale-down pump's tick period, spec.md
// §4.5.3.
const scaleDownInterval = 1 * time.Second

// AutoscalerDeleter is the C6 operation the scale-down sweep calls
// ahead of patching a workload to zero, and to reap an orphaned
// autoscaler on an already-unavailable entry.
type AutoscalerDeleter interface {
	DeleteForService(ctx context.Context, serviceIP string) error
}

// ScaleDownPump is the manager.Runnable implementing spec.md §4.5.3: a
// 1-second sweep, priority-ascending, that scales idle services to zero
// and reaps orphaned autoscalers.
type ScaleDownPump struct {
	Log           logr.Logger
	Registry      *registry.Registry
	ClusterClient workload.ClusterClient
	Autoscaler    AutoscalerDeleter

	now func() time.Time
}

func NewScaleDownPump(log logr.Logger, reg *registry.Registry, cc workload.ClusterClient, autoscaler AutoscalerDeleter) *ScaleDownPump {
	return &ScaleDownPump{Log: log, Registry: reg, ClusterClient: cc, Autoscaler: autoscaler}
}

func (p *ScaleDownPump) nower() func() time.Time {
	if p.now != nil {
		return p.now
	}
	return time.Now
}

// Start implements manager.Runnable: it ticks every scaleDownInterval
// until ctx is cancelled.
func (p *ScaleDownPump) Start(ctx context.Context) error {
	ticker := time.NewTicker(scaleDownInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep runs one pass of the scale-down pump. It is exported so tests
// (and a manual trigger, if ever needed) can drive it without waiting on
// the ticker.
func (p *ScaleDownPump) Sweep(ctx context.Context) {
	snapshot := p.Registry.Snapshot()
	metrics.RegistrySize.Set(float64(len(snapshot)))

	type entry struct {
		ip   string
		data registry.ServiceData
	}
	entries := make([]entry, 0, len(snapshot))
	for ip, data := range snapshot {
		entries = append(entries, entry{ip: ip, data: data})
		metrics.ScalingPriority.WithLabelValues(ip).Set(float64(data.ScalingPriority))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].data.ScalingPriority < entries[j].data.ScalingPriority
	})

	now := p.nower()()

	for _, e := range entries {
		if e.data.HPAEnabled && !e.data.BackendAvailable && !e.data.HPADeleted {
			if err := p.Autoscaler.DeleteForService(ctx, e.ip); err != nil {
				p.Log.Error(err, "failed to delete orphaned autoscaler", "serviceIP", e.ip)
			}
		}

		if !e.data.BackendAvailable || now.Sub(e.data.LastPacketTime) <= e.data.ScaleDownTime {
			continue
		}

		p.Registry.WithEntryMut(e.ip, func(d *registry.ServiceData) bool {
			d.BackendAvailable = false
			return true
		})

		if e.data.HPAEnabled && !e.data.HPADeleted {
			if err := p.Autoscaler.DeleteForService(ctx, e.ip); err != nil {
				p.Log.Error(err, "failed to delete autoscaler before scale-down, proceeding anyway", "serviceIP", e.ip)
			}
		}

		ref := workload.Ref{Kind: e.data.Kind, Name: e.data.Name, Namespace: e.data.Namespace}
		if err := p.ClusterClient.SetReplicas(ctx, ref, 0); err != nil {
			metrics.ScaleDownTotal.WithLabelValues("error").Inc()
			p.Log.Error(err, "failed to scale down workload", "serviceIP", e.ip, "ref", ref.String())
			continue
		}
		metrics.ScaleDownTotal.WithLabelValues("success").Inc()
		p.Log.Info("scaled down idle service", "serviceIP", e.ip, "ref", ref.String())
	}
}
