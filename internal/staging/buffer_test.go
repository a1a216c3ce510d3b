package staging

import (
	"testing"
	"time"
)

func TestNewRejectsBadSizes(t *testing.T) {
	if _, err := New(0, 16); err == nil {
		t.Error("expected error for zero slots")
	}
	if _, err := New(4, 0); err == nil {
		t.Error("expected error for zero slot width")
	}
}

func TestProducerConsumerHandoff(t *testing.T) {
	b, err := New(4, 2)
	if err != nil {
		t.Fatal(err)
	}

	w := b.ReserveBack(2)
	if len(w) != 4 {
		t.Fatalf("reserved %d words, want 4", len(w))
	}
	w[0], w[1], w[2], w[3] = 10, 11, 20, 21
	b.PushBack(2)

	r := b.WaitFront(2)
	want := []uint32{10, 11, 20, 21}
	for i := range want {
		if r[i] != want[i] {
			t.Errorf("word %d: got %d, want %d", i, r[i], want[i])
		}
	}
	b.PopFront(2)
}

func TestFIFOOrderAcrossWrap(t *testing.T) {
	b, err := New(4, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Fill and drain in chunks of 2 so ranges stay contiguous while the
	// head and tail walk the ring several times.
	next := uint32(0)
	wantNext := uint32(0)
	for round := 0; round < 6; round++ {
		w := b.ReserveBack(2)
		for i := range w {
			w[i] = next
			next++
		}
		b.PushBack(2)

		r := b.WaitFront(2)
		for i := range r {
			if r[i] != wantNext {
				t.Fatalf("round %d word %d: got %d, want %d", round, i, r[i], wantNext)
			}
			wantNext++
		}
		b.PopFront(2)
	}
}

func TestReserveBlocksUntilPop(t *testing.T) {
	b, err := New(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	b.ReserveBack(2)
	b.PushBack(2)

	got := make(chan struct{})
	go func() {
		b.ReserveBack(2)
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("ReserveBack returned with no free slots")
	case <-time.After(20 * time.Millisecond):
	}

	b.WaitFront(2)
	b.PopFront(2)

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("ReserveBack did not wake after PopFront")
	}
}

func TestWaitFrontBlocksUntilPush(t *testing.T) {
	b, err := New(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	b.ReserveBack(1)

	got := make(chan struct{})
	go func() {
		b.WaitFront(1)
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("WaitFront returned with no filled slots")
	case <-time.After(20 * time.Millisecond):
	}

	b.PushBack(1)

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("WaitFront did not wake after PushBack")
	}
}

func TestPopWithoutPushPanics(t *testing.T) {
	b, err := New(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("PopFront with nothing filled did not panic")
		}
	}()
	b.PopFront(1)
}
