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

// classifier.c is compiled into classifier_bpfel.go / classifier_bpfeb.go
// (and their paired .o files) by bpf2go. Those generated files are not
// checked in: they require a clang/libbpf toolchain to produce, and are
// produced by `go generate ./pkg/classifier` as a pre-build step, the
// same way upstream cilium/ebpf consumers wire bpf2go into their build.
//
// loader_bpf.go (the real Loader, built against the generated
// classifierObjects) only compiles with -tags classifier_bpf, so that a
// plain `go build ./...` without that toolchain still builds the whole
// module - including this package's own exported types (Action,
// PacketEvent, ServiceMap) and everything downstream that imports them -
// against loader_stub.go's no-op Loader instead. The full build is:
//
//	go generate ./pkg/classifier
//	go build -tags classifier_bpf ./...
//
//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall -Werror" -type packet_log classifier bpf/classifier.c -- -I./bpf/headers
