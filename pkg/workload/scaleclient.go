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

package workload

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/scale"

	"github.com/scale-to-zero/scaler/pkg/registry"
)

// scaleClusterClient implements ClusterClient against the cluster's
// generic /scale subresource, the same mechanism the Horizontal Pod
// Autoscaler itself uses to touch arbitrary scalable resources.
// Construction mirrors KEDA's pkg/k8s.InitScaleClient: a discovery
// client feeds a DiscoveryScaleKindResolver, so scale.New can map an
// arbitrary GroupResource to its /scale endpoint without a hardcoded
// REST path per kind.
type scaleClusterClient struct {
	log          logr.Logger
	scalesGetter scale.ScalesGetter
}

// NewScaleClusterClient builds a ClusterClient backed by restConfig.
func NewScaleClusterClient(restConfig *rest.Config, log logr.Logger) (ClusterClient, error) {
	clientset, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("building discovery client: %w", err)
	}

	resolver := scale.NewDiscoveryScaleKindResolver(clientset)
	scalesGetter, err := scale.NewForConfig(restConfig, nil, dynamic.LegacyAPIPathResolverFunc, resolver)
	if err != nil {
		return nil, fmt.Errorf("building scale client: %w", err)
	}

	return &scaleClusterClient{log: log, scalesGetter: scalesGetter}, nil
}

func groupResource(kind registry.WorkloadKind) (schema.GroupResource, error) {
	switch kind {
	case registry.KindDeployment:
		return schema.GroupResource{Group: "apps", Resource: "deployments"}, nil
	case registry.KindStatefulSet:
		return schema.GroupResource{Group: "apps", Resource: "statefulsets"}, nil
	default:
		return schema.GroupResource{}, fmt.Errorf("unsupported workload kind %q", kind)
	}
}

func (c *scaleClusterClient) GetReplicas(ctx context.Context, ref Ref) (int32, error) {
	gr, err := groupResource(ref.Kind)
	if err != nil {
		return 0, err
	}
	s, err := c.scalesGetter.Scales(ref.Namespace).Get(ctx, gr, ref.Name, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("getting scale for %s: %w", ref, err)
	}
	return s.Spec.Replicas, nil
}

func (c *scaleClusterClient) SetReplicas(ctx context.Context, ref Ref, replicas int32) error {
	gr, err := groupResource(ref.Kind)
	if err != nil {
		return err
	}
	s, err := c.scalesGetter.Scales(ref.Namespace).Get(ctx, gr, ref.Name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("getting scale for %s: %w", ref, err)
	}
	if s.Spec.Replicas == replicas {
		return nil
	}
	s.Spec.Replicas = replicas
	if _, err := c.scalesGetter.Scales(ref.Namespace).Update(ctx, gr, s, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("updating scale for %s to %d replicas: %w", ref, replicas, err)
	}
	c.log.V(1).Info("patched replicas", "ref", ref.String(), "replicas", replicas)
	return nil
}
