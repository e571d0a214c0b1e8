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

// Package scaling is the scale engine (C5): it consumes packet events
// and a periodic timer, performs ordered scale-up on ingress and ordered
// scale-down on idle, delegates autoscaler lifecycle to the suspension
// controller, and syncs the registry to the kernel map.
package scaling

import (
	"context"
	"net"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/scale-to-zero/scaler/pkg/classifier"
	"github.com/scale-to-zero/scaler/pkg/metrics"
	"github.com/scale-to-zero/scaler/pkg/registry"
	"github.com/scale-to-zero/scaler/pkg/workload"
)

// rateLimitWindow is the 5-second per-IP scale-up rate limit, spec.md
// §4.5.2.
const rateLimitWindow = 5 * time.Second

// scaleUpSpacer is the pause enforced between consecutive workload
// patches during a scale-up traversal, spec.md §4.5.2 step 3.
const scaleUpSpacer = 500 * time.Millisecond

// hpaRecreateDelay is the deployment-stabilization wait before an
// asynchronous autoscaler recreate runs after a scale-up, spec.md
// §4.5.2 step 4.
const hpaRecreateDelay = 10 * time.Second

// AutoscalerRecreator is the C6 operation the engine schedules
// fire-and-forget after scaling up an HPA-enabled service.
type AutoscalerRecreator interface {
	RecreateForService(ctx context.Context, serviceIP string) error
}

// Engine implements the packet pump and the scale-up traversal.
type Engine struct {
	Log           logr.Logger
	Registry      *registry.Registry
	ClusterClient workload.ClusterClient
	Autoscaler    AutoscalerRecreator

	// now is overridden in tests.
	now func() time.Time
	// sleep is overridden in tests to avoid a real 500ms wait per entry.
	sleep func(time.Duration)
}

func New(log logr.Logger, reg *registry.Registry, cc workload.ClusterClient, autoscaler AutoscalerRecreator) *Engine {
	return &Engine{Log: log, Registry: reg, ClusterClient: cc, Autoscaler: autoscaler}
}

func (e *Engine) nower() func() time.Time {
	if e.now != nil {
		return e.now
	}
	return time.Now
}

func (e *Engine) sleeper() func(time.Duration) {
	if e.sleep != nil {
		return e.sleep
	}
	return time.Sleep
}

// ProcessPacket implements spec.md §4.5.1. Loopback addresses are
// rejected outright; they never reach the kernel classifier in practice,
// but the check is kept to preserve the documented contract.
func (e *Engine) ProcessPacket(ctx context.Context, evt classifier.PacketEvent) {
	ip := classifier.Uint32ToIP(evt.IPv4)
	if parsed := net.ParseIP(ip); parsed != nil && parsed.IsLoopback() {
		return
	}

	t := e.nower()()

	var dependencies, dependents []string
	e.Registry.WithEntry(ip, func(d registry.ServiceData) {
		dependencies = append([]string(nil), d.Dependencies...)
		dependents = append([]string(nil), d.Dependents...)
	})
	e.Registry.WithEntryMut(ip, func(d *registry.ServiceData) bool {
		d.LastPacketTime = t
		return true
	})

	for _, target := range dependencies {
		e.Registry.TouchRelationship(target, t)
	}
	for _, target := range dependents {
		e.Registry.TouchRelationship(target, t)
	}

	if evt.Action == classifier.ActionWake {
		if err := e.ScaleUp(ctx, ip); err != nil && !IsRateLimited(err) {
			e.Log.Error(err, "scale up failed", "serviceIP", ip)
		}
	}
}

// ScaleUp implements spec.md §4.5.2: rate limiting, cascade selection,
// priority-descending traversal with a spacer, and deferred autoscaler
// recreation.
func (e *Engine) ScaleUp(ctx context.Context, ip string) error {
	now := e.nower()()
	if !e.Registry.TryScaleUp(ip, now, rateLimitWindow) {
		metrics.RateLimitedTotal.Inc()
		return &RateLimitedError{ServiceIP: ip, Window: rateLimitWindow.String()}
	}

	toScale := e.buildScaleUpSet(ip)
	sort.SliceStable(toScale, func(i, j int) bool {
		return toScale[i].priority > toScale[j].priority
	})

	for i, target := range toScale {
		if err := e.scaleUpOne(ctx, target); err != nil {
			e.Log.Error(err, "failed to scale up target, continuing traversal", "serviceIP", target.ip)
		}
		if i < len(toScale)-1 {
			e.sleeper()(scaleUpSpacer)
		}
	}

	return nil
}

type scaleTarget struct {
	ip       string
	priority int32
	data     registry.ServiceData
}

// buildScaleUpSet resolves the triggering service plus every direct
// dependency/dependent that is currently unavailable, per spec.md
// §4.5.2 step 1.
func (e *Engine) buildScaleUpSet(ip string) []scaleTarget {
	seen := make(map[string]struct{})
	var out []scaleTarget

	add := func(candidate string) {
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		data, ok := e.Registry.Get(candidate)
		if !ok {
			return
		}
		out = append(out, scaleTarget{ip: candidate, priority: data.ScalingPriority, data: data})
	}

	add(ip)

	if root, ok := e.Registry.Get(ip); ok {
		for _, dep := range root.Dependencies {
			for _, resolved := range e.Registry.ResolveTarget(dep) {
				if data, ok := e.Registry.Get(resolved); ok && !data.BackendAvailable {
					add(resolved)
				}
			}
		}
		for _, dep := range root.Dependents {
			for _, resolved := range e.Registry.ResolveTarget(dep) {
				if data, ok := e.Registry.Get(resolved); ok && !data.BackendAvailable {
					add(resolved)
				}
			}
		}
	}

	return out
}

func (e *Engine) scaleUpOne(ctx context.Context, target scaleTarget) error {
	ref := workload.Ref{Kind: target.data.Kind, Name: target.data.Name, Namespace: target.data.Namespace}
	if err := e.ClusterClient.SetReplicas(ctx, ref, 1); err != nil {
		metrics.ScaleUpTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.ScaleUpTotal.WithLabelValues("success").Inc()

	e.Registry.WithEntryMut(target.ip, func(d *registry.ServiceData) bool {
		d.BackendAvailable = true
		return true
	})

	if target.data.HPAEnabled {
		serviceIP := target.ip
		go func() {
			select {
			case <-time.After(hpaRecreateDelay):
			case <-ctx.Done():
				return
			}
			recreateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := e.Autoscaler.RecreateForService(recreateCtx, serviceIP); err != nil {
				e.Log.Error(err, "deferred autoscaler recreate failed", "serviceIP", serviceIP)
			}
		}()
	}

	return nil
}
