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
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/scale-to-zero/scaler/pkg/registry"
)

// stabilizationDelay is the fixed window spec.md §4.4 imposes between a
// workload event and publishing the new backend-available bit: no health
// probe is performed, this delay stands in for one (documented upstream
// as a TODO).
const stabilizationDelay = 2 * time.Second

// WorkloadReconciler implements C4's workload-event half for a single
// kind (Deployment or StatefulSet): on any event, look up the bound
// service via WorkloadIndex and, after stabilizationDelay, publish
// replicas >= 1 as BackendAvailable.
type WorkloadReconciler struct {
	client.Client
	Log           logr.Logger
	Kind          registry.WorkloadKind
	Registry      *registry.Registry
	WorkloadIndex *WorkloadIndex
	// sleep is overridden in tests to avoid a real 2-second wait.
	sleep func(time.Duration)
}

func (r *WorkloadReconciler) sleeper() func(time.Duration) {
	if r.sleep != nil {
		return r.sleep
	}
	return time.Sleep
}

func (r *WorkloadReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := r.Log.WithValues("kind", r.Kind, "workload", req.NamespacedName)

	wlKey := registry.WorkloadKey{Kind: r.Kind, Name: req.Name, Namespace: req.Namespace}
	serviceIP, ok := r.WorkloadIndex.Lookup(wlKey)
	if !ok {
		// No service references this workload (yet); nothing to publish.
		return ctrl.Result{}, nil
	}

	replicas, found, err := r.currentReplicas(ctx, req)
	if err != nil {
		return ctrl.Result{}, err
	}
	if !found {
		// Workload deleted; leave the registry entry dormant per spec.md
		// §9 (entries are never removed today).
		return ctrl.Result{}, nil
	}

	go func() {
		r.sleeper()(stabilizationDelay)
		available := replicas >= 1
		r.Registry.WithEntryMut(serviceIP, func(d *registry.ServiceData) bool {
			d.BackendAvailable = available
			return true
		})
		log.V(1).Info("published backend availability", "serviceIP", serviceIP, "available", available)
	}()

	return ctrl.Result{}, nil
}

func (r *WorkloadReconciler) currentReplicas(ctx context.Context, req ctrl.Request) (int32, bool, error) {
	switch r.Kind {
	case registry.KindDeployment:
		var d appsv1.Deployment
		if err := r.Get(ctx, req.NamespacedName, &d); err != nil {
			if apierrors.IsNotFound(err) {
				return 0, false, nil
			}
			return 0, false, err
		}
		return d.Status.Replicas, true, nil
	case registry.KindStatefulSet:
		var s appsv1.StatefulSet
		if err := r.Get(ctx, req.NamespacedName, &s); err != nil {
			if apierrors.IsNotFound(err) {
				return 0, false, nil
			}
			return 0, false, err
		}
		return s.Status.Replicas, true, nil
	default:
		return 0, false, nil
	}
}

func (r *WorkloadReconciler) SetupWithManager(mgr ctrl.Manager) error {
	b := ctrl.NewControllerManagedBy(mgr)
	switch r.Kind {
	case registry.KindDeployment:
		b = b.For(&appsv1.Deployment{})
	case registry.KindStatefulSet:
		b = b.For(&appsv1.StatefulSet{})
	}
	return b.Complete(r)
}
