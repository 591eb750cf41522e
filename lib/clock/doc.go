// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that timing
// logic can be tested deterministically.
//
// Production code takes a Clock instead of calling time.Now,
// time.After, time.NewTicker, or time.Sleep directly. Real() is the
// standard library behavior; Fake() stands still until the test calls
// Advance.
//
// When a goroutine under test calls Sleep, After, or NewTicker on a
// FakeClock, it registers a pending waiter. Tests call WaitForTimers
// to block until the expected number of waiters exist, then Advance
// to fire them. This removes the race between "the code reached its
// sleep" and "the test advanced time" that real-clock tests paper
// over with generous sleeps.
package clock
