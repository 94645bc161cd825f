package idhash

import "testing"

func TestComputeOrderID_Deterministic(t *testing.T) {
	id1 := ComputeOrderID("5Sig111", 0)
	id2 := ComputeOrderID("5Sig111", 0)

	if id1 != id2 {
		t.Errorf("same input should produce same order_id: %s != %s", id1, id2)
	}

	if len(id1) != 64 {
		t.Errorf("expected 64-char hex hash, got %d chars", len(id1))
	}
}

func TestComputeOrderID_GenerationChangesID(t *testing.T) {
	id0 := ComputeOrderID("5Sig111", 0)
	id1 := ComputeOrderID("5Sig111", 1)

	if id0 == id1 {
		t.Error("different generations must produce different order IDs")
	}
}

func TestComputeOrderID_SignatureChangesID(t *testing.T) {
	a := ComputeOrderID("5SigA", 0)
	b := ComputeOrderID("5SigB", 0)

	if a == b {
		t.Error("different signatures must produce different order IDs")
	}
}
