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

// Package reconciler watches Services, Deployments and StatefulSets and
// keeps pkg/registry in sync with the workloads those objects declare
// through scale-to-zero/* annotations.
package reconciler

import (
	"fmt"
	"strconv"
	"strings"
)

const annotationPrefix = "scale-to-zero/"

const (
	annotationReference            = annotationPrefix + "reference"
	annotationScaleDownTime         = annotationPrefix + "scale-down-time"
	annotationDependencies          = annotationPrefix + "dependencies"
	annotationDependents            = annotationPrefix + "dependents"
	annotationScalingPriority       = annotationPrefix + "scaling-priority"
	annotationHPAEnabled            = annotationPrefix + "hpa-enabled"
	annotationHPAName               = annotationPrefix + "hpa-name"
	annotationMinReplicas           = annotationPrefix + "min-replicas"
	annotationMaxReplicas           = annotationPrefix + "max-replicas"
	annotationTargetCPUUtilization  = annotationPrefix + "target-cpu-utilization"
	// AnnotationRecreatedAt is written back onto the recreated autoscaler
	// object; it lives here because it shares the same annotation
	// namespace as the ones this package reads.
	AnnotationRecreatedAt = annotationPrefix + "recreated-at"
)

const defaultMaxReplicas = 5

// ServiceAnnotations is the parsed, typed form of a Service's
// scale-to-zero/* annotations, per spec.md §6.
type ServiceAnnotations struct {
	Reference        string
	ScaleDownSeconds  int64
	Dependencies      []string
	Dependents        []string
	ScalingPriority   *int32
	HPAEnabled        bool
	HPAName           string
	MinReplicas       *int32
	MaxReplicas       int32
	TargetCPUPercent  *int32
}

// errSkip is returned for a service that should be ignored entirely
// (spec.md §4.4 step 1): no scale-to-zero/reference or
// scale-to-zero/scale-down-time annotation present. It is not a true
// error; callers treat it as "nothing to do".
type errSkip struct{ reason string }

func (e errSkip) Error() string { return e.reason }

// IsSkip reports whether err signals "this service has no scale-to-zero
// annotations and should be ignored", as opposed to a malformed
// annotation on an otherwise-participating service.
func IsSkip(err error) bool {
	_, ok := err.(errSkip)
	return ok
}

// ParseServiceAnnotations parses a Service's annotation map per spec.md
// §4.4/§6. It returns errSkip when the service isn't participating at
// all, and a plain error for a malformed value on a participating
// service (the caller logs and skips the event either way, but the
// distinction is useful for diagnostics).
func ParseServiceAnnotations(name string, annotations map[string]string) (ServiceAnnotations, error) {
	ref, hasRef := annotations[annotationReference]
	sdt, hasSDT := annotations[annotationScaleDownTime]
	if !hasRef || !hasSDT {
		return ServiceAnnotations{}, errSkip{reason: "missing reference or scale-down-time annotation"}
	}

	seconds, err := strconv.ParseInt(strings.TrimSpace(sdt), 10, 64)
	if err != nil {
		return ServiceAnnotations{}, fmt.Errorf("parsing %s=%q: %w", annotationScaleDownTime, sdt, err)
	}

	out := ServiceAnnotations{
		Reference:        ref,
		ScaleDownSeconds: seconds,
		Dependencies:     splitCSV(annotations[annotationDependencies]),
		Dependents:       splitCSV(annotations[annotationDependents]),
		HPAName:          fmt.Sprintf("%s-hpa", name),
		MaxReplicas:      defaultMaxReplicas,
	}

	if v, ok := annotations[annotationScalingPriority]; ok {
		p, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return ServiceAnnotations{}, fmt.Errorf("parsing %s=%q: %w", annotationScalingPriority, v, err)
		}
		p32 := int32(p)
		out.ScalingPriority = &p32
	}

	if v, ok := annotations[annotationHPAEnabled]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return ServiceAnnotations{}, fmt.Errorf("parsing %s=%q: %w", annotationHPAEnabled, v, err)
		}
		out.HPAEnabled = b
	}

	if v, ok := annotations[annotationHPAName]; ok && v != "" {
		out.HPAName = v
	}

	if v, ok := annotations[annotationMinReplicas]; ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return ServiceAnnotations{}, fmt.Errorf("parsing %s=%q: %w", annotationMinReplicas, v, err)
		}
		n32 := int32(n)
		out.MinReplicas = &n32
	}

	if v, ok := annotations[annotationMaxReplicas]; ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return ServiceAnnotations{}, fmt.Errorf("parsing %s=%q: %w", annotationMaxReplicas, v, err)
		}
		out.MaxReplicas = int32(n)
	}

	if v, ok := annotations[annotationTargetCPUUtilization]; ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return ServiceAnnotations{}, fmt.Errorf("parsing %s=%q: %w", annotationTargetCPUUtilization, v, err)
		}
		n32 := int32(n)
		out.TargetCPUPercent = &n32
	}

	return out, nil
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// CalculateScalingPriority is the pure function spec.md §3/§8 requires:
// computing it twice on the same inputs yields the same value. An
// explicit annotation always wins; otherwise a service with dependencies
// (it calls others) skews toward the parent end, a service with only
// dependents (others call it) skews toward the child end, and a service
// with neither sits at the neutral midpoint.
func CalculateScalingPriority(explicit *int32, dependencies, dependents []string) int32 {
	if explicit != nil {
		return *explicit
	}
	switch {
	case len(dependencies) > 0:
		return 10 + 5*int32(len(dependencies))
	case len(dependents) > 0:
		return 90 + 5*int32(len(dependents))
	default:
		return 50
	}
}
