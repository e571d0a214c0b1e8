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

// Package autoscaler implements the HPA suspension controller (C6): it
// deletes a HorizontalPodAutoscaler ahead of a scale-to-zero excursion,
// captures enough of its spec to recreate it faithfully, and rebuilds it
// once the workload has warmed back up. Structurally grounded on the
// create/patch shape of controllers/keda's HPA reconciliation, adapted
// from "reconcile towards a ScaledObject's desired HPA" to "suspend and
// later restore one HPA around a zero-replica excursion".
package autoscaler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/scale-to-zero/scaler/pkg/registry"
)

// Controller deletes and recreates HorizontalPodAutoscaler objects
// around a scale-to-zero excursion, per spec.md §4.6.
type Controller struct {
	client.Client
	Log      logr.Logger
	Registry *registry.Registry

	mu         sync.Mutex
	suspended  map[string]struct{} // namespace/name membership set
}

func NewController(c client.Client, log logr.Logger, reg *registry.Registry) *Controller {
	return &Controller{
		Client:    c,
		Log:       log,
		Registry:  reg,
		suspended: make(map[string]struct{}),
	}
}

func suspendedKey(namespace, name string) string {
	return namespace + "/" + name
}

// Delete fetches the autoscaler, captures its config, deletes it, and
// records namespace/name as suspended. A missing autoscaler is a no-op
// success: spec.md §7 item 4 treats "nothing to suspend" as success.
func (c *Controller) Delete(ctx context.Context, namespace, name string) (*registry.HPAConfig, error) {
	var hpa autoscalingv2.HorizontalPodAutoscaler
	if err := c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &hpa); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting hpa %s/%s: %w", namespace, name, err)
	}

	cfg, err := captureConfig(&hpa)
	if err != nil {
		return nil, fmt.Errorf("capturing hpa %s/%s config: %w", namespace, name, err)
	}

	if err := c.Client.Delete(ctx, &hpa); err != nil && !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("deleting hpa %s/%s: %w", namespace, name, err)
	}

	c.mu.Lock()
	c.suspended[suspendedKey(namespace, name)] = struct{}{}
	c.mu.Unlock()

	return cfg, nil
}

// Recreate rebuilds the autoscaler from cfg, waiting out any existing
// object with the same name first. Per spec.md §4.6, custom metrics and
// behavior are overlaid by parsing the stored JSON; a parse failure
// silently falls back to the single CPU metric, preserving the ported
// source's behavior rather than failing the recreate.
func (c *Controller) Recreate(ctx context.Context, namespace, name, workloadName string, cfg *registry.HPAConfig) error {
	var existing autoscalingv2.HorizontalPodAutoscaler
	if err := c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &existing); err == nil {
		if err := c.Client.Delete(ctx, &existing); err != nil && !apierrors.IsNotFound(err) {
			return fmt.Errorf("deleting existing hpa %s/%s before recreate: %w", namespace, name, err)
		}
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if !apierrors.IsNotFound(err) {
		return fmt.Errorf("checking for existing hpa %s/%s: %w", namespace, name, err)
	}

	hpa := buildHPA(namespace, name, workloadName, cfg)
	if err := c.Client.Create(ctx, hpa); err != nil {
		return fmt.Errorf("creating hpa %s/%s: %w", namespace, name, err)
	}

	c.mu.Lock()
	delete(c.suspended, suspendedKey(namespace, name))
	c.mu.Unlock()

	return nil
}

// DeleteForService is the registry-aware wrapper spec.md §4.6 calls
// delete_for_service: it reads ServiceData for serviceIP, deletes that
// service's autoscaler, and persists hpa_deleted/hpa_config back.
func (c *Controller) DeleteForService(ctx context.Context, serviceIP string) error {
	data, ok := c.Registry.Get(serviceIP)
	if !ok {
		return fmt.Errorf("no registry entry for service %s", serviceIP)
	}
	if !data.HPAEnabled || data.HPADeleted {
		return nil
	}

	cfg, err := c.Delete(ctx, data.Namespace, data.HPAName)
	if err != nil {
		return err
	}
	if cfg == nil {
		// Nothing existed to suspend; still mark deleted so scaling
		// proceeds, matching spec.md §7 item 4.
		cfg = data.HPAConfig
	}

	c.Registry.WithEntryMut(serviceIP, func(d *registry.ServiceData) bool {
		d.HPADeleted = true
		d.HPAConfig = cfg
		return true
	})
	return nil
}

// RecreateForService is recreate_for_service: read ServiceData,
// recreate the autoscaler from its captured config, persist
// hpa_deleted=false back.
func (c *Controller) RecreateForService(ctx context.Context, serviceIP string) error {
	data, ok := c.Registry.Get(serviceIP)
	if !ok {
		return fmt.Errorf("no registry entry for service %s", serviceIP)
	}
	if !data.HPAEnabled {
		return nil
	}

	cfg := data.HPAConfig
	if cfg == nil {
		cfg = &registry.HPAConfig{MaxReplicas: 5}
	}

	if err := c.Recreate(ctx, data.Namespace, data.HPAName, data.Name, cfg); err != nil {
		return err
	}

	c.Registry.WithEntryMut(serviceIP, func(d *registry.ServiceData) bool {
		d.HPADeleted = false
		return true
	})
	return nil
}

func captureConfig(hpa *autoscalingv2.HorizontalPodAutoscaler) (*registry.HPAConfig, error) {
	cfg := &registry.HPAConfig{
		MinReplicas: hpa.Spec.MinReplicas,
		MaxReplicas: hpa.Spec.MaxReplicas,
	}

	for _, m := range hpa.Spec.Metrics {
		if m.Type == autoscalingv2.ResourceMetricSourceType && m.Resource != nil && m.Resource.Name == corev1.ResourceCPU {
			if m.Resource.Target.AverageUtilization != nil {
				v := *m.Resource.Target.AverageUtilization
				cfg.TargetCPUUtilizationPercentage = &v
			}
			break
		}
	}

	if len(hpa.Spec.Metrics) > 0 {
		b, err := json.Marshal(hpa.Spec.Metrics)
		if err != nil {
			return nil, err
		}
		cfg.MetricsJSON = string(b)
	}

	if hpa.Spec.Behavior != nil {
		b, err := json.Marshal(hpa.Spec.Behavior)
		if err != nil {
			return nil, err
		}
		cfg.BehaviorJSON = string(b)
	}

	return cfg, nil
}

func buildHPA(namespace, name, workloadName string, cfg *registry.HPAConfig) *autoscalingv2.HorizontalPodAutoscaler {
	hpa := &autoscalingv2.HorizontalPodAutoscaler{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Annotations: map[string]string{
				"scale-to-zero/recreated-at": time.Now().Format(time.RFC3339),
			},
		},
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			ScaleTargetRef: autoscalingv2.CrossVersionObjectReference{
				APIVersion: "apps/v1",
				Kind:       "Deployment",
				Name:       workloadName,
			},
			MinReplicas: cfg.MinReplicas,
			MaxReplicas: cfg.MaxReplicas,
		},
	}

	var metrics []autoscalingv2.MetricSpec
	if cfg.MetricsJSON != "" {
		if err := json.Unmarshal([]byte(cfg.MetricsJSON), &metrics); err != nil {
			metrics = nil
		}
	}
	if len(metrics) == 0 && cfg.TargetCPUUtilizationPercentage != nil {
		target := *cfg.TargetCPUUtilizationPercentage
		metrics = []autoscalingv2.MetricSpec{{
			Type: autoscalingv2.ResourceMetricSourceType,
			Resource: &autoscalingv2.ResourceMetricSource{
				Name: corev1.ResourceCPU,
				Target: autoscalingv2.MetricTarget{
					Type:               autoscalingv2.UtilizationMetricType,
					AverageUtilization: &target,
				},
			},
		}}
	}
	hpa.Spec.Metrics = metrics

	if cfg.BehaviorJSON != "" {
		var behavior autoscalingv2.HorizontalPodAutoscalerBehavior
		if err := json.Unmarshal([]byte(cfg.BehaviorJSON), &behavior); err == nil {
			hpa.Spec.Behavior = &behavior
		}
	}

	return hpa
}
