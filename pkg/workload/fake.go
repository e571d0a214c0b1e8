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
	"sync"
)

// FakeClusterClient is an in-memory ClusterClient for tests, replacing
// the real /scale subresource round trip with a map.
type FakeClusterClient struct {
	mu       sync.Mutex
	replicas map[Ref]int32
	// SetErr, when non-nil, is returned from SetReplicas for the named ref.
	SetErr map[Ref]error
}

func NewFakeClusterClient() *FakeClusterClient {
	return &FakeClusterClient{replicas: make(map[Ref]int32)}
}

func (f *FakeClusterClient) Seed(ref Ref, replicas int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replicas[ref] = replicas
}

func (f *FakeClusterClient) GetReplicas(_ context.Context, ref Ref) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.replicas[ref]
	if !ok {
		return 0, fmt.Errorf("no such workload %s", ref)
	}
	return r, nil
}

func (f *FakeClusterClient) SetReplicas(_ context.Context, ref Ref, replicas int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SetErr[ref]; err != nil {
		return err
	}
	f.replicas[ref] = replicas
	return nil
}
