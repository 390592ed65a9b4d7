// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultFixTimeout bounds a one-shot fix if the caller does not configure a timeout.
const DefaultFixTimeout = 10 * time.Second

// ErrLocationUnavailable is returned when a one-shot fix fails or does not arrive in time.
var ErrLocationUnavailable = errors.New("location unavailable")

// Locator acquires a single position fix.
type Locator interface {
	Locate(ctx context.Context) (Sample, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (Sample, error)

func (f LocatorFunc) Locate(ctx context.Context) (Sample, error) {
	return f(ctx)
}

// BusLocator answers one-shot fix requests from the GeoBus. A recent enough sample is returned
// right away, otherwise it waits for the next published one.
type BusLocator struct {
	bus    *GeoBus
	maxAge time.Duration
}

// NewBusLocator returns a BusLocator accepting cached samples not older than maxAge.
func NewBusLocator(bus *GeoBus, maxAge time.Duration) *BusLocator {
	return &BusLocator{bus: bus, maxAge: maxAge}
}

func (l *BusLocator) Locate(ctx context.Context) (Sample, error) {
	sub, unsub := l.bus.Subscribe(SubscribeOptions{Buffer: 1, Replay: true, MaxAge: l.maxAge})
	defer unsub()

	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case s, ok := <-sub:
		if !ok {
			return Sample{}, errors.New("subscription closed")
		}
		return s, nil
	}
}

// FirstOf tries each locator in order and returns the first successful fix. With a deadline on
// ctx, every locator gets an equal share of the time that is left, so a locator waiting for a fix
// cannot starve the ones after it. The last locator gets the remainder.
func FirstOf(locators ...Locator) Locator {
	return LocatorFunc(func(ctx context.Context) (Sample, error) {
		var errs []error
		for i, l := range locators {
			s, err := locateWithShare(ctx, l, len(locators)-i)
			if err == nil {
				return s, nil
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
		return Sample{}, errors.Join(errs...)
	})
}

// locateWithShare runs l with 1/remaining of the time left until the ctx deadline.
func locateWithShare(ctx context.Context, l Locator, remaining int) (Sample, error) {
	deadline, ok := ctx.Deadline()
	if !ok || remaining <= 1 {
		return l.Locate(ctx)
	}
	share := time.Until(deadline) / time.Duration(remaining)
	shareCtx, cancel := context.WithTimeout(ctx, share)
	defer cancel()
	return l.Locate(shareCtx)
}

// LocateWithTimeout acquires a fix with a bounded wait. Any failure, including the timeout, is
// reported as ErrLocationUnavailable.
func LocateWithTimeout(ctx context.Context, l Locator, timeout time.Duration) (Sample, error) {
	if l == nil {
		return Sample{}, fmt.Errorf("%w: no locator configured", ErrLocationUnavailable)
	}
	if timeout <= 0 {
		timeout = DefaultFixTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := l.Locate(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}
	return s, nil
}
