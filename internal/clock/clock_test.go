package clock

import (
	"testing"
	"time"
)

func TestFakeNow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)
	if !f.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", f.Now(), start)
	}
	f.Advance(time.Hour)
	want := start.Add(time.Hour)
	if !f.Now().Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", f.Now(), want)
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	f := NewFake(time.Now())
	ch := f.After(time.Minute)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	f.Advance(30 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before deadline")
	default:
	}

	f.Advance(30 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After did not fire once deadline passed")
	}
}

func TestFakeAfterMultipleWaiters(t *testing.T) {
	f := NewFake(time.Now())
	short := f.After(time.Second)
	long := f.After(time.Hour)

	f.Advance(2 * time.Second)

	select {
	case <-short:
	default:
		t.Fatal("short waiter should have fired")
	}
	select {
	case <-long:
		t.Fatal("long waiter should not have fired yet")
	default:
	}
}
