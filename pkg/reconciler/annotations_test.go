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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServiceAnnotationsSkipsUnannotated(t *testing.T) {
	_, err := ParseServiceAnnotations("svc", map[string]string{})
	require.Error(t, err)
	assert.True(t, IsSkip(err))
}

func TestParseServiceAnnotationsDefaults(t *testing.T) {
	parsed, err := ParseServiceAnnotations("api", map[string]string{
		annotationReference:    "deployment/api",
		annotationScaleDownTime: "60",
	})
	require.NoError(t, err)
	assert.Equal(t, "deployment/api", parsed.Reference)
	assert.EqualValues(t, 60, parsed.ScaleDownSeconds)
	assert.Equal(t, "api-hpa", parsed.HPAName)
	assert.EqualValues(t, 5, parsed.MaxReplicas)
	assert.False(t, parsed.HPAEnabled)
	assert.Nil(t, parsed.ScalingPriority)
}

func TestParseServiceAnnotationsFull(t *testing.T) {
	parsed, err := ParseServiceAnnotations("api", map[string]string{
		annotationReference:           "stateful_set/other-ns/db",
		annotationScaleDownTime:       "120",
		annotationDependencies:        "10.0.0.2, cache , ",
		annotationDependents:          "frontend",
		annotationScalingPriority:     "42",
		annotationHPAEnabled:          "true",
		annotationHPAName:             "custom-hpa",
		annotationMinReplicas:         "1",
		annotationMaxReplicas:         "10",
		annotationTargetCPUUtilization: "80",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2", "cache"}, parsed.Dependencies)
	assert.Equal(t, []string{"frontend"}, parsed.Dependents)
	require.NotNil(t, parsed.ScalingPriority)
	assert.EqualValues(t, 42, *parsed.ScalingPriority)
	assert.True(t, parsed.HPAEnabled)
	assert.Equal(t, "custom-hpa", parsed.HPAName)
	require.NotNil(t, parsed.MinReplicas)
	assert.EqualValues(t, 1, *parsed.MinReplicas)
	assert.EqualValues(t, 10, parsed.MaxReplicas)
	require.NotNil(t, parsed.TargetCPUPercent)
	assert.EqualValues(t, 80, *parsed.TargetCPUPercent)
}

func TestParseServiceAnnotationsMalformedScaleDownTime(t *testing.T) {
	_, err := ParseServiceAnnotations("api", map[string]string{
		annotationReference:    "deployment/api",
		annotationScaleDownTime: "not-a-number",
	})
	require.Error(t, err)
	assert.False(t, IsSkip(err))
}

func TestCalculateScalingPriorityExplicitOverrides(t *testing.T) {
	explicit := int32(7)
	assert.EqualValues(t, 7, CalculateScalingPriority(&explicit, []string{"a"}, []string{"b"}))
}

func TestCalculateScalingPriorityParentWithDependencies(t *testing.T) {
	assert.EqualValues(t, 20, CalculateScalingPriority(nil, []string{"a", "b"}, nil))
}

func TestCalculateScalingPriorityChildWithDependents(t *testing.T) {
	assert.EqualValues(t, 95, CalculateScalingPriority(nil, nil, []string{"a"}))
}

func TestCalculateScalingPriorityNeutral(t *testing.T) {
	assert.EqualValues(t, 50, CalculateScalingPriority(nil, nil, nil))
}

func TestCalculateScalingPriorityIsPure(t *testing.T) {
	a := CalculateScalingPriority(nil, []string{"x"}, nil)
	b := CalculateScalingPriority(nil, []string{"x"}, nil)
	assert.Equal(t, a, b)
}
