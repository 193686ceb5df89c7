// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package handle

import "testing"

func TestTable_InsertGetRemove(t *testing.T) {
	var tbl Table[string]

	a := tbl.Insert("a")
	b := tbl.Insert("b")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("ids = %d, %d; want distinct non-zero", a, b)
	}
	if v, ok := tbl.Get(b); !ok || v != "b" {
		t.Errorf("Get(%d) = %q, %v", b, v, ok)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}

	if v, ok := tbl.Remove(a); !ok || v != "a" {
		t.Errorf("Remove(%d) = %q, %v", a, v, ok)
	}
	if _, ok := tbl.Remove(a); ok {
		t.Error("second Remove should report missing")
	}
	if _, ok := tbl.Get(0); ok {
		t.Error("id 0 must never be valid")
	}
}

func TestTable_IDsNotReused(t *testing.T) {
	var tbl Table[int]
	first := tbl.Insert(1)
	tbl.Remove(first)
	if second := tbl.Insert(2); second == first {
		t.Errorf("id %d reused after Remove", first)
	}
}

func TestTable_Drain(t *testing.T) {
	var tbl Table[int]
	for i := range 5 {
		tbl.Insert(i * 10)
	}

	var got []int
	tbl.Drain(func(_ uint32, v int) { got = append(got, v) })

	want := []int{0, 10, 20, 30, 40}
	if len(got) != len(want) {
		t.Fatalf("Drain visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain order[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if tbl.Len() != 0 {
		t.Errorf("Len() after Drain = %d", tbl.Len())
	}
}

func TestTable_Set(t *testing.T) {
	var tbl Table[string]
	id := tbl.Insert("old")
	if !tbl.Set(id, "new") {
		t.Fatalf("Set(%d) reported missing", id)
	}
	if v, _ := tbl.Get(id); v != "new" {
		t.Errorf("Get(%d) = %q, want new", id, v)
	}
	if tbl.Set(id+1, "x") {
		t.Error("Set on an unknown id should fail")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}
