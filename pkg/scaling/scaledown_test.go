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
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scale-to-zero/scaler/pkg/registry"
	"github.com/scale-to-zero/scaler/pkg/workload"
)

func TestSweepScalesDownIdleParentAndChildWithAutoscaler(t *testing.T) {
	reg := registry.New()
	base := time.Unix(1_000_000, 0)

	reg.Upsert("10.0.0.1", registry.ServiceData{
		Kind: registry.KindDeployment, Name: "parent", Namespace: "default",
		ScalingPriority: 10, ScaleDownTime: 60 * time.Second,
		LastPacketTime: base.Add(-2 * time.Minute), BackendAvailable: true,
		HPAEnabled: true, HPAName: "parent-hpa",
	})
	reg.Upsert("10.0.0.2", registry.ServiceData{
		Kind: registry.KindDeployment, Name: "child", Namespace: "default",
		ScalingPriority: 95, ScaleDownTime: 60 * time.Second,
		LastPacketTime: base.Add(-2 * time.Minute), BackendAvailable: true,
		HPAEnabled: true, HPAName: "child-hpa",
	})

	cc := workload.NewFakeClusterClient()
	cc.Seed(workload.Ref{Kind: registry.KindDeployment, Name: "parent", Namespace: "default"}, 1)
	cc.Seed(workload.Ref{Kind: registry.KindDeployment, Name: "child", Namespace: "default"}, 1)

	autoscaler := &fakeAutoscaler{}
	pump := NewScaleDownPump(testr.New(t), reg, cc, autoscaler)
	pump.now = func() time.Time { return base }

	pump.Sweep(context.Background())

	parent, _ := reg.Get("10.0.0.1")
	child, _ := reg.Get("10.0.0.2")
	assert.False(t, parent.BackendAvailable)
	assert.False(t, child.BackendAvailable)
	assert.True(t, autoscaler.deletedFor("10.0.0.1"))
	assert.True(t, autoscaler.deletedFor("10.0.0.2"))

	replicas, _ := cc.GetReplicas(context.Background(), workload.Ref{Kind: registry.KindDeployment, Name: "parent", Namespace: "default"})
	assert.EqualValues(t, 0, replicas)
}

func TestSweepSkipsServicesWithRecentTraffic(t *testing.T) {
	reg := registry.New()
	base := time.Unix(1_000_000, 0)
	reg.Upsert("10.0.0.1", registry.ServiceData{
		Kind: registry.KindDeployment, Name: "api", Namespace: "default",
		ScaleDownTime: 60 * time.Second, LastPacketTime: base.Add(-10 * time.Second),
		BackendAvailable: true,
	})
	cc := workload.NewFakeClusterClient()
	cc.Seed(workload.Ref{Kind: registry.KindDeployment, Name: "api", Namespace: "default"}, 1)

	pump := NewScaleDownPump(testr.New(t), reg, cc, &fakeAutoscaler{})
	pump.now = func() time.Time { return base }
	pump.Sweep(context.Background())

	data, _ := reg.Get("10.0.0.1")
	assert.True(t, data.BackendAvailable)
}

func TestSweepReapsOrphanedAutoscaler(t *testing.T) {
	reg := registry.New()
	base := time.Unix(1_000_000, 0)
	reg.Upsert("10.0.0.1", registry.ServiceData{
		Kind: registry.KindDeployment, Name: "api", Namespace: "default",
		ScaleDownTime: 60 * time.Second, LastPacketTime: base,
		BackendAvailable: false, HPAEnabled: true, HPADeleted: false,
	})
	cc := workload.NewFakeClusterClient()
	cc.Seed(workload.Ref{Kind: registry.KindDeployment, Name: "api", Namespace: "default"}, 0)
	autoscaler := &fakeAutoscaler{}

	pump := NewScaleDownPump(testr.New(t), reg, cc, autoscaler)
	pump.now = func() time.Time { return base }
	pump.Sweep(context.Background())

	assert.True(t, autoscaler.deletedFor("10.0.0.1"))
}

func TestSweepOrdersPriorityAscending(t *testing.T) {
	reg := registry.New()
	base := time.Unix(1_000_000, 0)
	var order []string
	reg.Upsert("10.0.0.2", registry.ServiceData{
		Kind: registry.KindDeployment, Name: "child", Namespace: "default",
		ScalingPriority: 95, ScaleDownTime: time.Second, LastPacketTime: base.Add(-time.Hour), BackendAvailable: true,
	})
	reg.Upsert("10.0.0.1", registry.ServiceData{
		Kind: registry.KindDeployment, Name: "parent", Namespace: "default",
		ScalingPriority: 10, ScaleDownTime: time.Second, LastPacketTime: base.Add(-time.Hour), BackendAvailable: true,
	})

	cc := workload.NewFakeClusterClient()
	cc.Seed(workload.Ref{Kind: registry.KindDeployment, Name: "child", Namespace: "default"}, 1)
	cc.Seed(workload.Ref{Kind: registry.KindDeployment, Name: "parent", Namespace: "default"}, 1)

	pump := NewScaleDownPump(testr.New(t), reg, &orderTrackingClient{ClusterClient: cc, order: &order}, &fakeAutoscaler{})
	pump.now = func() time.Time { return base }
	pump.Sweep(context.Background())

	require.Len(t, order, 2)
	assert.Equal(t, "parent", order[0])
	assert.Equal(t, "child", order[1])
}

type orderTrackingClient struct {
	workload.ClusterClient
	order *[]string
}

func (c *orderTrackingClient) SetReplicas(ctx context.Context, ref workload.Ref, replicas int32) error {
	*c.order = append(*c.order, ref.Name)
	return c.ClusterClient.SetReplicas(ctx, ref, replicas)
}
