// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(testEpoch)

	ch := c.After(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	c.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case fired := <-ch:
		want := testEpoch.Add(5 * time.Second)
		if !fired.Equal(want) {
			t.Errorf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	c := Fake(testEpoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeSleepBlocksUntilAdvance(t *testing.T) {
	c := Fake(testEpoch)

	woke := make(chan struct{})
	go func() {
		c.Sleep(3 * time.Second)
		close(woke)
	}()

	c.WaitForTimers(1)
	select {
	case <-woke:
		t.Fatal("Sleep returned before Advance")
	default:
	}

	c.Advance(3 * time.Second)
	select {
	case <-woke:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeTickerFiresRepeatedly(t *testing.T) {
	c := Fake(testEpoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	for i := 1; i <= 3; i++ {
		c.Advance(time.Second)
		select {
		case tick := <-ticker.C:
			want := testEpoch.Add(time.Duration(i) * time.Second)
			if !tick.Equal(want) {
				t.Errorf("tick %d at %v, want %v", i, tick, want)
			}
		default:
			t.Fatalf("ticker did not fire on advance %d", i)
		}
	}
}

func TestFakeTickerDropsUnconsumedTicks(t *testing.T) {
	c := Fake(testEpoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	// Three intervals pass without the consumer draining; only one
	// tick is buffered.
	c.Advance(3 * time.Second)

	ticks := 0
	for {
		select {
		case <-ticker.C:
			ticks++
			continue
		default:
		}
		break
	}
	if ticks != 1 {
		t.Errorf("buffered ticks = %d, want 1", ticks)
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := Fake(testEpoch)
	ticker := c.NewTicker(time.Second)
	ticker.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	c := Fake(testEpoch)

	late := c.After(10 * time.Second)
	early := c.After(2 * time.Second)

	c.Advance(10 * time.Second)

	earlyAt := <-early
	lateAt := <-late
	if !earlyAt.Before(lateAt) {
		t.Errorf("early waiter fired at %v, late at %v", earlyAt, lateAt)
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(testEpoch)

	registered := make(chan struct{})
	go func() {
		c.WaitForTimers(2)
		close(registered)
	}()

	c.After(time.Second)
	select {
	case <-registered:
		t.Fatal("WaitForTimers(2) returned with one waiter")
	case <-time.After(10 * time.Millisecond):
	}

	c.After(time.Second)
	select {
	case <-registered:
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForTimers(2) did not return with two waiters")
	}
}
