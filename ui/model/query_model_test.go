package model

import (
	"testing"
	"time"
)

func TestQueryModel(t *testing.T) {
	m := NewQueryModel()
	if m.Mean() != 0 {
		t.Fatalf("empty model should have zero mean")
	}
	m.Observe(100*time.Millisecond, true)
	m.Observe(300*time.Millisecond, false)
	if m.Last() != 300*time.Millisecond {
		t.Fatalf("last got %v", m.Last())
	}
	if m.Mean() != 200*time.Millisecond {
		t.Fatalf("mean got %v", m.Mean())
	}
	if total, failed := m.Counts(); total != 2 || failed != 1 {
		t.Fatalf("counts got total=%d failed=%d", total, failed)
	}
	var nilModel *QueryModel
	nilModel.Observe(time.Second, true)
	if nilModel.Mean() != 0 {
		t.Fatalf("nil model should be inert")
	}
}
