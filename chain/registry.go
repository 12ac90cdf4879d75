/*
 * Copyright 2023 ICON Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package chain

import (
	"sort"
	"sync"

	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/module"
)

const (
	UnknownBlockchainError errors.Code = errors.CodeChain + 100 + iota
)

var ErrUnknownBlockchain = errors.NewBase(UnknownBlockchainError, "UnknownBlockchain")

// Registry maps a blockchain to its edition adapter. Adding a chain
// means registering a new adapter; nothing above the registry changes.
type Registry struct {
	lock     sync.RWMutex
	editions map[module.Blockchain]module.Edition
}

var _ module.EditionRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		editions: make(map[module.Blockchain]module.Edition),
	}
}

func (r *Registry) Register(ed module.Edition) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.editions[ed.Blockchain()] = ed
}

func (r *Registry) Resolve(bc module.Blockchain) (module.Edition, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if ed, ok := r.editions[bc]; ok {
		return ed, nil
	}
	return nil, UnknownBlockchainError.Errorf("UnknownBlockchain(chain=%s)", bc)
}

// Supported lists the registered blockchains in stable order.
func (r *Registry) Supported() []module.Blockchain {
	r.lock.RLock()
	defer r.lock.RUnlock()

	l := make([]module.Blockchain, 0, len(r.editions))
	for bc := range r.editions {
		l = append(l, bc)
	}
	sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
	return l
}
