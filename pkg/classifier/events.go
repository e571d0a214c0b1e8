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

package classifier

import (
	"context"
	"encoding/binary"
	"errors"
	"runtime"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/perf"
	"github.com/go-logr/logr"
)

// Handler processes one decoded packet event. It is invoked from one of
// the per-CPU reader goroutines; implementations must not assume
// exclusive access to anything beyond what they synchronize themselves.
type Handler func(ctx context.Context, evt PacketEvent)

// RunEventReaders starts one goroutine per online CPU, each draining
// the shared perf-event-array reader, matching spec.md §4.2's per-CPU
// ring model: cilium/ebpf's perf.Reader multiplexes the kernel's
// per-CPU ring buffers internally and its Read is safe to call
// concurrently, with every record still tagged to - and delivered in
// arrival order for - the CPU ring it was read from; running
// runtime.NumCPU() readers concurrently is the documented way to drain
// that many per-CPU rings in parallel without picking per-CPU file
// descriptors apart by hand. Ordering is preserved per CPU, not
// globally. A read error is logged and the loop continues; it never
// returns early, since spec.md requires the reader to survive
// transient failures.
func RunEventReaders(ctx context.Context, log logr.Logger, m *ebpf.Map, handle Handler) error {
	reader, err := perf.NewReader(m, BufferSize*BatchSize)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = reader.Close()
	}()

	numReaders := runtime.NumCPU()
	for i := 0; i < numReaders; i++ {
		go runReaderLoop(ctx, log, reader, handle)
	}
	return nil
}

func runReaderLoop(ctx context.Context, log logr.Logger, reader *perf.Reader, handle Handler) {
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, perf.ErrClosed) {
				return
			}
			log.Error(err, "failed to read packet event, continuing")
			continue
		}
		if record.LostSamples != 0 {
			log.V(1).Info("perf event reader dropped samples", "lost", record.LostSamples)
			continue
		}

		evt, ok := decodePacketLog(record.RawSample)
		if !ok {
			log.V(1).Info("short packet event record, discarding", "bytes", len(record.RawSample))
			continue
		}
		handle(ctx, evt)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// decodePacketLog decodes the fixed {u32 ipv4_address; u32 action}
// layout emitted by the BPF program, native endian as cilium/ebpf's perf
// reader already returns host-ordered data.
func decodePacketLog(raw []byte) (PacketEvent, bool) {
	if len(raw) < 8 {
		return PacketEvent{}, false
	}
	return PacketEvent{
		IPv4:   binary.NativeEndian.Uint32(raw[0:4]),
		Action: Action(binary.NativeEndian.Uint32(raw[4:8])),
	}, true
}
