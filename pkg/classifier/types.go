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

// Package classifier loads the XDP packet classifier, reads its
// perf-event output, and keeps the kernel-resident service_list map in
// sync with the user-space registry. The classifier itself (the .c
// source under bpf/) runs in softirq context per RX queue and has no Go
// runtime to speak of; this package is the user-space side of that
// boundary.
package classifier

import (
	"encoding/binary"
	"net"

	"github.com/cilium/ebpf"
)

// Action mirrors the PacketLog.action field emitted by the BPF program:
// 1 means the packet was dropped because the backend was unavailable and
// should trigger a wake-up, 0 means it was passed through.
type Action uint32

const (
	ActionPass Action = 0
	ActionWake Action = 1
)

// PacketEvent is the decoded form of the fixed-layout PacketLog record
// produced by the classifier: {ipv4_address uint32, action uint32}.
type PacketEvent struct {
	IPv4   uint32
	Action Action
}

// MaxServiceListEntries is the BPF_MAP_TYPE_HASH capacity declared in
// bpf/classifier.c; spec.md fixes this at 1024.
const MaxServiceListEntries = 1024

// BatchSize and BufferSize together size the perf reader's per-CPU ring
// (BatchSize*BufferSize bytes, room for BatchSize records of up to
// BufferSize bytes each). The reader goroutines take records from that
// ring one Read at a time; they do not read in batches.
const BatchSize = 10

// BufferSize is the per-record size in bytes used to size the per-CPU
// ring; see BatchSize.
const BufferSize = 1024

// ServiceMap exposes upsert/delete/iterate over the kernel-resident
// service_list map, keyed by IPv4 address in host byte order. It is
// declared independently of the Loader so the scaling package's kernel
// map sync (and its tests) can depend on the interface without pulling
// in whichever Loader variant the build was compiled with.
type ServiceMap interface {
	Upsert(ip uint32, available uint32) error
	Delete(ip uint32) error
	Keys() ([]uint32, error)
	Get(ip uint32) (uint32, bool, error)
}

// serviceListMap adapts a live *ebpf.Map to ServiceMap.
type serviceListMap struct {
	m *ebpf.Map
}

func newServiceListMap(m *ebpf.Map) ServiceMap {
	return &serviceListMap{m: m}
}

func (s *serviceListMap) Upsert(ip uint32, available uint32) error {
	return s.m.Put(ip, available)
}

func (s *serviceListMap) Delete(ip uint32) error {
	return s.m.Delete(ip)
}

func (s *serviceListMap) Get(ip uint32) (uint32, bool, error) {
	var v uint32
	err := s.m.Lookup(ip, &v)
	if err == ebpf.ErrKeyNotExist {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *serviceListMap) Keys() ([]uint32, error) {
	var keys []uint32
	var key uint32
	var val uint32
	it := s.m.Iterate()
	for it.Next(&key, &val) {
		keys = append(keys, key)
	}
	return keys, it.Err()
}

// IPToUint32 converts a dotted-quad IPv4 string to the big-endian /
// network-order uint32 key the kernel map is keyed by, matching
// Ipv4Addr::from/u32::from_be_bytes in the ported source.
func IPToUint32(ip string) (uint32, bool) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return 0, false
	}
	v4 := addr.To4()
	if v4 == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(v4), true
}

// Uint32ToIP is the inverse of IPToUint32.
func Uint32ToIP(v uint32) string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return net.IP(b).String()
}
