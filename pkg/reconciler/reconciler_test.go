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
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/scale-to-zero/scaler/pkg/registry"
	"github.com/scale-to-zero/scaler/pkg/workload"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, corev1.AddToScheme(scheme))
	require.NoError(t, appsv1.AddToScheme(scheme))
	return scheme
}

type fakeAutoscalerRecreator struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeAutoscalerRecreator) RecreateForService(_ context.Context, serviceIP string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, serviceIP)
	return nil
}

func TestServiceReconcilerRegistersService(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "api",
			Namespace: "default",
			Annotations: map[string]string{
				annotationReference:    "deployment/api",
				annotationScaleDownTime: "60",
				annotationHPAEnabled:   "true",
			},
		},
		Spec: corev1.ServiceSpec{ClusterIP: "10.0.0.5"},
	}

	cl := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(svc).Build()
	reg := registry.New()
	idx := NewWorkloadIndex()
	cc := workload.NewFakeClusterClient()
	cc.Seed(workload.Ref{Kind: registry.KindDeployment, Name: "api", Namespace: "default"}, 2)
	autoscaler := &fakeAutoscalerRecreator{}

	r := &ServiceReconciler{
		Client:        cl,
		Log:           testr.New(t),
		Registry:      reg,
		WorkloadIndex: idx,
		ClusterClient: cc,
		Autoscaler:    autoscaler,
	}

	_, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "api", Namespace: "default"}})
	require.NoError(t, err)

	data, ok := reg.Get("10.0.0.5")
	require.True(t, ok)
	assert.True(t, data.BackendAvailable)
	assert.Equal(t, registry.KindDeployment, data.Kind)
	assert.EqualValues(t, 60*time.Second, data.ScaleDownTime)

	ip, ok := idx.Lookup(registry.WorkloadKey{Kind: registry.KindDeployment, Name: "api", Namespace: "default"})
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5", ip)

	require.Eventually(t, func() bool {
		autoscaler.mu.Lock()
		defer autoscaler.mu.Unlock()
		return len(autoscaler.calls) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestServiceReconcilerSkipsUnannotated(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "plain", Namespace: "default"},
		Spec:       corev1.ServiceSpec{ClusterIP: "10.0.0.9"},
	}
	cl := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(svc).Build()
	reg := registry.New()

	r := &ServiceReconciler{
		Client:        cl,
		Log:           testr.New(t),
		Registry:      reg,
		WorkloadIndex: NewWorkloadIndex(),
		ClusterClient: workload.NewFakeClusterClient(),
		Autoscaler:    &fakeAutoscalerRecreator{},
	}

	_, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "plain", Namespace: "default"}})
	require.NoError(t, err)

	_, ok := reg.Get("10.0.0.9")
	assert.False(t, ok)
}

func TestWorkloadReconcilerPublishesAfterStabilization(t *testing.T) {
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "api", Namespace: "default"},
		Status:     appsv1.DeploymentStatus{Replicas: 1},
	}
	cl := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(dep).WithStatusSubresource(dep).Build()
	reg := registry.New()
	reg.Upsert("10.0.0.5", registry.ServiceData{Kind: registry.KindDeployment, Name: "api", Namespace: "default", BackendAvailable: false})

	idx := NewWorkloadIndex()
	idx.Bind(registry.WorkloadKey{Kind: registry.KindDeployment, Name: "api", Namespace: "default"}, "10.0.0.5")

	var slept time.Duration
	r := &WorkloadReconciler{
		Client:        cl,
		Log:           testr.New(t),
		Kind:          registry.KindDeployment,
		Registry:      reg,
		WorkloadIndex: idx,
		sleep:         func(d time.Duration) { slept = d },
	}

	_, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "api", Namespace: "default"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		data, _ := reg.Get("10.0.0.5")
		return data.BackendAvailable
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, stabilizationDelay, slept)
}

func TestWorkloadReconcilerIgnoresUnboundWorkload(t *testing.T) {
	dep := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "orphan", Namespace: "default"}}
	cl := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(dep).Build()

	r := &WorkloadReconciler{
		Client:        cl,
		Log:           testr.New(t),
		Kind:          registry.KindDeployment,
		Registry:      registry.New(),
		WorkloadIndex: NewWorkloadIndex(),
	}

	res, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "orphan", Namespace: "default"}})
	require.NoError(t, err)
	assert.Equal(t, ctrl.Result{}, res)
}
