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

//go:build classifier_bpf

package classifier

import (
	"fmt"
	"net"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
	"github.com/go-logr/logr"
)

// Loader owns the loaded BPF collection, the attached XDP links (one per
// interface), and exposes the service_list map to the kernel-map sync
// pump. This file only builds with -tags classifier_bpf, after
// `go generate ./pkg/classifier` has produced classifier_bpfel.go /
// classifier_bpfeb.go; see gen.go. The default build (no tag) links
// loader_stub.go instead, so the rest of the tree compiles without a
// clang/libbpf toolchain on hand.
type Loader struct {
	log  logr.Logger
	objs classifierObjects
	pins []link.Link
}

// Load removes the memlock rlimit (required on kernels without cgroup
// based BPF accounting, same as the original's setrlimit(RLIMIT_MEMLOCK)
// call), loads the compiled classifier program and its maps, and returns
// a Loader ready to Attach to interfaces.
func Load(log logr.Logger) (*Loader, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		log.V(1).Info("failed to remove memlock rlimit, continuing", "error", err)
	}

	var objs classifierObjects
	if err := loadClassifierObjects(&objs, nil); err != nil {
		return nil, fmt.Errorf("loading classifier BPF objects: %w", err)
	}

	return &Loader{log: log, objs: objs}, nil
}

// AttachAll attaches the XDP program in generic (SKB) mode to every
// interface net.Interfaces() reports, logging and continuing past any
// interface that refuses to attach (virtual interfaces, down links,
// etc.) instead of aborting startup. Network-interface enumeration
// itself is treated as an external concern per spec.md; net.Interfaces
// stands in for it here.
func (l *Loader) AttachAll() error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("listing network interfaces: %w", err)
	}

	for _, iface := range ifaces {
		lk, err := link.AttachXDP(link.XDPOptions{
			Program:   l.objs.Classify,
			Interface: iface.Index,
			Flags:     link.XDPGenericMode,
		})
		if err != nil {
			l.log.Info("failed to attach XDP program to interface, skipping", "interface", iface.Name, "error", err)
			continue
		}
		l.log.Info("attached XDP classifier", "interface", iface.Name)
		l.pins = append(l.pins, lk)
	}
	return nil
}

// ServiceList exposes the kernel-resident service_list map.
func (l *Loader) ServiceList() ServiceMap {
	return newServiceListMap(l.objs.ServiceList)
}

// PerfReader returns the raw perf-event-array map backing the packet
// event channel (C2); events.go wraps it with the per-CPU reader
// goroutines.
func (l *Loader) PerfReader() *ebpf.Map {
	return l.objs.ScaleRequests
}

// Close detaches every XDP link and releases the BPF objects.
func (l *Loader) Close() error {
	var firstErr error
	for _, lk := range l.pins {
		if err := lk.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := l.objs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
