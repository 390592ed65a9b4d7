// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"log/slog"
	"sync"
)

// Orchestrator runs the configured location providers and publishes their samples to the GeoBus.
type Orchestrator struct {
	Bus       *GeoBus
	Providers []Provider
}

// Track runs all providers concurrently until the context is cancelled.
func (o *Orchestrator) Track(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range o.Providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			o.trackProvider(ctx, p)
		}(p)
	}
	<-ctx.Done()
	wg.Wait()
}

// trackProvider keeps a provider stream alive, publishing its samples to the GeoBus and
// restarting it with exponential backoff whenever the stream ends.
func (o *Orchestrator) trackProvider(ctx context.Context, p Provider) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		stream := o.safeStream(ctx, p)
		if stream == nil {
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

	readLoop:
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-stream:
				if !ok {
					o.Bus.logger.Debug("location provider stream ended", slog.String("provider", p.Name()),
						slog.Duration("backoff", backoff))
					if !sleepOrDone(ctx, backoff) {
						return
					}
					backoff = nextBackoff(backoff)
					break readLoop
				}
				o.Bus.Publish(s)
				backoff = initialBackoff
			}
		}
	}
}

// safeStream invokes SampleStream on a Provider and recovers from potential panics.
// Returns nil if the provider panicked.
func (o *Orchestrator) safeStream(ctx context.Context, provider Provider) (ch <-chan Sample) {
	defer func() {
		if r := recover(); r != nil {
			o.Bus.logger.Error("location provider panicked", slog.String("provider", provider.Name()),
				slog.Any("panic", r))
			ch = nil
		}
	}()
	return provider.SampleStream(ctx)
}
