package source

import (
	"gocv.io/x/gocv"
	"sync"
	"testing"
	"time"
)

func TestSlotOverwrite(t *testing.T) {

	slot := NewSlot()
	defer slot.Close()

	for i := 0; i < 3; i++ {
		slot.Publish(gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3))
	}

	if slot.Drops() != 2 {
		t.Errorf("Expected 2 dropped frames, got %d", slot.Drops())
	}

	f := slot.Next()

	if f == nil {
		t.Fatal("Expected frame, got nil")
	}

	defer f.Close()

	if f.Seq != 3 {
		t.Errorf("Expected latest frame seq 3, got %d", f.Seq)
	}

	if slot.Published() != 3 {
		t.Errorf("Expected 3 published frames, got %d", slot.Published())
	}
}

func TestSlotNextBlocksUntilPublish(t *testing.T) {

	slot := NewSlot()
	defer slot.Close()

	got := make(chan uint64, 1)

	go func() {
		f := slot.Next()

		if f == nil {
			got <- 0
			return
		}

		got <- f.Seq
		f.Close()
	}()

	select {
	case <-got:
		t.Fatal("Next returned before a frame was published")
	case <-time.After(50 * time.Millisecond):
	}

	slot.Publish(gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3))

	select {
	case seq := <-got:
		if seq != 1 {
			t.Errorf("Expected seq 1, got %d", seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after publish")
	}
}

func TestSlotCloseWakesConsumers(t *testing.T) {

	slot := NewSlot()

	var wg sync.WaitGroup
	nils := make(chan bool, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			nils <- slot.Next() == nil
		}()
	}

	time.Sleep(20 * time.Millisecond)
	slot.Close()

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake blocked consumers")
	}

	close(nils)

	for isNil := range nils {
		if !isNil {
			t.Error("Expected nil frame after Close")
		}
	}

	// closing twice and publishing after close are both safe
	slot.Close()

	if slot.Publish(gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)) {
		t.Error("Expected Publish to closed slot to return false")
	}
}
