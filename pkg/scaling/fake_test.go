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
	"sync"
)

type fakeAutoscaler struct {
	mu            sync.Mutex
	deleteCalls   []string
	recreateCalls []string
}

func (f *fakeAutoscaler) DeleteForService(_ context.Context, serviceIP string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, serviceIP)
	return nil
}

func (f *fakeAutoscaler) RecreateForService(_ context.Context, serviceIP string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recreateCalls = append(f.recreateCalls, serviceIP)
	return nil
}

func (f *fakeAutoscaler) deletedFor(ip string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.deleteCalls {
		if c == ip {
			return true
		}
	}
	return false
}

type fakeServiceMap struct {
	mu      sync.Mutex
	entries map[uint32]uint32
}

func newFakeServiceMap() *fakeServiceMap {
	return &fakeServiceMap{entries: make(map[uint32]uint32)}
}

func (m *fakeServiceMap) Upsert(ip uint32, available uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[ip] = available
	return nil
}

func (m *fakeServiceMap) Delete(ip uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, ip)
	return nil
}

func (m *fakeServiceMap) Get(ip uint32) (uint32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[ip]
	return v, ok, nil
}

func (m *fakeServiceMap) Keys() ([]uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]uint32, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *fakeServiceMap) snapshot() map[uint32]uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint32]uint32, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}
