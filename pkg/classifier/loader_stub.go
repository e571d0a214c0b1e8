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

//go:build !classifier_bpf

package classifier

import (
	"errors"

	"github.com/cilium/ebpf"
	"github.com/go-logr/logr"
)

// ErrClassifierNotBuilt is returned by Load when the binary was built
// without -tags classifier_bpf. Attaching the real XDP classifier
// requires `go generate ./pkg/classifier` (see gen.go) to have produced
// classifier_bpfel.go / classifier_bpfeb.go from bpf/classifier.c, which
// in turn requires a clang/libbpf toolchain at build time. Linking this
// file instead of loader_bpf.go lets the rest of the module - and every
// package that merely imports classifier for its types - build without
// that toolchain present.
var ErrClassifierNotBuilt = errors.New("classifier: binary built without -tags classifier_bpf; run `go generate ./pkg/classifier` and rebuild with that tag to attach the real XDP program")

// Loader is the no-op stand-in linked into binaries built without
// -tags classifier_bpf. Load and AttachAll report ErrClassifierNotBuilt;
// ServiceList and PerfReader return nil and Close returns nil. Load
// always fails first, so callers never reach the methods in practice.
type Loader struct {
	log logr.Logger
}

// Load always fails in this build; see ErrClassifierNotBuilt.
func Load(log logr.Logger) (*Loader, error) {
	return nil, ErrClassifierNotBuilt
}

func (l *Loader) AttachAll() error {
	return ErrClassifierNotBuilt
}

func (l *Loader) ServiceList() ServiceMap {
	return nil
}

func (l *Loader) PerfReader() *ebpf.Map {
	return nil
}

func (l *Loader) Close() error {
	return nil
}
