// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/recorder"
	"github.com/wneessen/ridegrid/internal/store"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleToggleSignals toggles free ride recording on SIGUSR1 and the radar on SIGUSR2. Waybar
// sends these from the module's on-click and on-click-right actions.
func (s *Service) HandleToggleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.toggleTrip(ctx)
			case syscall.SIGUSR2:
				s.toggleRadar(ctx)
			}
			s.printStatus(ctx)
		}
	}
}

func (s *Service) toggleTrip(ctx context.Context) {
	if !s.recorder.Recording() {
		if err := s.StartTrip(ctx, recorder.ModeFree); err != nil {
			s.logger.Error("failed to start trip recording", logger.Err(err))
		}
		return
	}
	if _, err := s.StopTrip(ctx, store.Meta{}); err != nil && !errors.Is(err, recorder.ErrTripTooShort) {
		s.logger.Error("failed to save trip", logger.Err(err))
	}
}

func (s *Service) toggleRadar(ctx context.Context) {
	if s.radar.Active() {
		if err := s.StopRadar(); err != nil {
			s.logger.Error("failed to deactivate radar", logger.Err(err))
		}
		return
	}
	if err := s.StartRadar(ctx); err != nil {
		s.logger.Error("failed to activate radar", logger.Err(err))
	}
}
