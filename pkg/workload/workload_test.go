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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scale-to-zero/scaler/pkg/registry"
)

func TestParseReferenceSameNamespace(t *testing.T) {
	ref, err := ParseReference("deployment/api", "team-a")
	require.NoError(t, err)
	assert.Equal(t, Ref{Kind: registry.KindDeployment, Name: "api", Namespace: "team-a"}, ref)
}

func TestParseReferenceCrossNamespace(t *testing.T) {
	ref, err := ParseReference("stateful_set/team-b/db", "team-a")
	require.NoError(t, err)
	assert.Equal(t, Ref{Kind: registry.KindStatefulSet, Name: "db", Namespace: "team-b"}, ref)
}

func TestParseReferenceInvalid(t *testing.T) {
	_, err := ParseReference("not-a-reference", "team-a")
	assert.Error(t, err)

	_, err = ParseReference("deployment", "team-a")
	assert.Error(t, err)

	_, err = ParseReference("widget/api", "team-a")
	assert.Error(t, err)
}

func TestFakeClusterClientGetSetReplicas(t *testing.T) {
	ctx := context.Background()
	c := NewFakeClusterClient()
	ref := Ref{Kind: registry.KindDeployment, Name: "api", Namespace: "team-a"}
	c.Seed(ref, 0)

	got, err := c.GetReplicas(ctx, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got)

	require.NoError(t, c.SetReplicas(ctx, ref, 3))

	got, err = c.GetReplicas(ctx, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got)
}

func TestFakeClusterClientUnknownRef(t *testing.T) {
	c := NewFakeClusterClient()
	_, err := c.GetReplicas(context.Background(), Ref{Kind: registry.KindDeployment, Name: "ghost", Namespace: "ns"})
	assert.Error(t, err)
}
