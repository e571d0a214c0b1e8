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
	"context"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/scale-to-zero/scaler/pkg/registry"
	"github.com/scale-to-zero/scaler/pkg/workload"
)

// AutoscalerRecreator is the slice of the autoscaler suspension
// controller (C6) the service reconciler needs: a fire-and-forget
// recreate keyed by the service's registry IP, per spec.md §4.4 step 7.
type AutoscalerRecreator interface {
	RecreateForService(ctx context.Context, serviceIP string) error
}

// ServiceReconciler implements C4's service-event half: parsing
// annotations, resolving the backing workload, and inserting the
// registry entry. Modeled on the watch-then-reconcile shape KEDA's
// ScaledObjectReconciler uses, generalized from a CRD watch to a plain
// corev1.Service watch since this system is annotation-driven rather
// than CRD-driven.
type ServiceReconciler struct {
	client.Client
	Log            logr.Logger
	Registry       *registry.Registry
	WorkloadIndex  *WorkloadIndex
	ClusterClient  workload.ClusterClient
	Autoscaler     AutoscalerRecreator
}

func (r *ServiceReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := r.Log.WithValues("service", req.NamespacedName)

	var svc corev1.Service
	if err := r.Get(ctx, req.NamespacedName, &svc); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	parsed, err := ParseServiceAnnotations(svc.Name, svc.Annotations)
	if err != nil {
		if IsSkip(err) {
			return ctrl.Result{}, nil
		}
		log.Info("skipping service with malformed scale-to-zero annotations", "error", err.Error())
		return ctrl.Result{}, nil
	}

	ref, err := workload.ParseReference(parsed.Reference, svc.Namespace)
	if err != nil {
		log.Info("skipping service with malformed reference annotation", "error", err.Error())
		return ctrl.Result{}, nil
	}

	replicas, err := r.ClusterClient.GetReplicas(ctx, ref)
	if err != nil {
		log.Error(err, "failed to resolve backing workload, will retry", "ref", ref.String())
		return ctrl.Result{}, err
	}

	serviceIP := svc.Spec.ClusterIP
	if serviceIP == "" || serviceIP == corev1.ClusterIPNone {
		log.V(1).Info("service has no cluster IP yet, requeueing")
		return ctrl.Result{RequeueAfter: 2 * time.Second}, nil
	}

	wlKey := registry.WorkloadKey{Kind: ref.Kind, Name: ref.Name, Namespace: ref.Namespace}
	r.WorkloadIndex.Bind(wlKey, serviceIP)

	priority := CalculateScalingPriority(parsed.ScalingPriority, parsed.Dependencies, parsed.Dependents)

	data := registry.ServiceData{
		ScaleDownTime:    time.Duration(parsed.ScaleDownSeconds) * time.Second,
		LastPacketTime:   time.Now(),
		Kind:             ref.Kind,
		Name:             ref.Name,
		Namespace:        ref.Namespace,
		BackendAvailable: replicas >= 1,
		Dependencies:     parsed.Dependencies,
		Dependents:       parsed.Dependents,
		ScalingPriority:  priority,
		HPAEnabled:       parsed.HPAEnabled,
		HPAName:          parsed.HPAName,
	}
	if parsed.HPAEnabled {
		data.HPAConfig = &registry.HPAConfig{
			MinReplicas:                    parsed.MinReplicas,
			MaxReplicas:                    parsed.MaxReplicas,
			TargetCPUUtilizationPercentage: parsed.TargetCPUPercent,
		}
	}

	r.Registry.Upsert(serviceIP, data)
	log.Info("registered service", "ref", ref.String(), "priority", priority, "backendAvailable", data.BackendAvailable)

	if parsed.HPAEnabled && replicas >= 1 {
		go func() {
			recreateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := r.Autoscaler.RecreateForService(recreateCtx, serviceIP); err != nil {
				log.Error(err, "failed to recreate autoscaler for newly registered service", "serviceIP", serviceIP)
			}
		}()
	}

	return ctrl.Result{}, nil
}

func (r *ServiceReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Service{}).
		Complete(r)
}
