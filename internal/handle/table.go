// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package handle maps the small integer handles that devices hand out to
// the objects they own.
package handle

import "sort"

// Table stores values under monotonically increasing non-zero ids.
// Ids are never reused, so a stale handle can never alias a newer object.
//
// Table is not safe for concurrent use.
type Table[T any] struct {
	next  uint32
	items map[uint32]T
}

// Insert stores v and returns its id.
func (t *Table[T]) Insert(v T) uint32 {
	if t.items == nil {
		t.items = make(map[uint32]T)
	}
	t.next++
	t.items[t.next] = v
	return t.next
}

// Get returns the value stored under id.
func (t *Table[T]) Get(id uint32) (T, bool) {
	v, ok := t.items[id]
	return v, ok
}

// Set replaces the value stored under an existing id. It reports false
// when id is not live.
func (t *Table[T]) Set(id uint32, v T) bool {
	if _, ok := t.items[id]; !ok {
		return false
	}
	t.items[id] = v
	return true
}

// Remove deletes id and returns the value it held.
func (t *Table[T]) Remove(id uint32) (T, bool) {
	v, ok := t.items[id]
	if ok {
		delete(t.items, id)
	}
	return v, ok
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	return len(t.items)
}

// IDs returns the live ids in ascending order.
func (t *Table[T]) IDs() []uint32 {
	ids := make([]uint32, 0, len(t.items))
	for id := range t.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Drain removes every entry, calling fn for each in ascending id order.
func (t *Table[T]) Drain(fn func(id uint32, v T)) {
	for _, id := range t.IDs() {
		v := t.items[id]
		delete(t.items, id)
		if fn != nil {
			fn(id, v)
		}
	}
}
