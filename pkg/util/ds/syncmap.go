// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package ds

import (
	"cmp"
	"slices"
	"sync"
)

type SyncMap[K cmp.Ordered, V any] struct {
	lock sync.Mutex
	m    map[K]V
}

func MakeSyncMap[K cmp.Ordered, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{
		m: make(map[K]V),
	}
}

func (sm *SyncMap[K, V]) Set(key K, value V) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	sm.m[key] = value
}

func (sm *SyncMap[K, V]) Get(key K) (V, bool) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	v, ok := sm.m[key]
	return v, ok
}

func (sm *SyncMap[K, V]) Delete(key K) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	delete(sm.m, key)
}

// SetUnless stores value only if key is not present.
func (sm *SyncMap[K, V]) SetUnless(key K, value V) bool {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	if _, exists := sm.m[key]; exists {
		return false
	}
	sm.m[key] = value
	return true
}

func (sm *SyncMap[K, V]) Len() int {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return len(sm.m)
}

// Keys returns a sorted snapshot of the keys.
func (sm *SyncMap[K, V]) Keys() []K {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	rtn := make([]K, 0, len(sm.m))
	for key := range sm.m {
		rtn = append(rtn, key)
	}
	slices.Sort(rtn)
	return rtn
}
