package service

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/logging"
	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/server/config"
)

// Simulator moves every vehicle one edge per tick. A vehicle picks one of
// the outgoing edges of its cell at random and stays put when there is none.
type Simulator struct {
	svc      WorldService
	interval time.Duration
	rng      *rand.Rand
	log      logrus.FieldLogger
}

// NewSimulator creates a Simulator stepping svc every interval.
func NewSimulator(svc WorldService, interval time.Duration, rng *rand.Rand, log logrus.FieldLogger) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Simulator{svc: svc, interval: interval, rng: rng, log: log}
}

// Run steps until ctx is done.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval).Info("simulator started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("simulator stopped")
			return
		case <-ticker.C:
			s.Step(ctx)
		}
	}
}

// Step advances every world once and returns how many vehicles moved.
func (s *Simulator) Step(ctx context.Context) int {
	worlds, err := s.svc.ListWorlds(ctx)
	if err != nil {
		s.log.WithError(err).Warn("failed to list worlds")
		return 0
	}

	moved := 0
	for _, w := range worlds {
		n, err := s.svc.StepVehicles(ctx, w.ID, s.pick)
		if err != nil {
			s.log.WithField("world_id", w.ID).WithError(err).Debug("world vanished mid-step")
			continue
		}
		moved += n
	}
	return moved
}

// pick follows one of the outgoing edges of v's cell at random
func (s *Simulator) pick(net *config.Network, v model.Vehicle) (model.Position, bool) {
	outs := net.Next(v.Position())
	if len(outs) == 0 {
		return model.Position{}, false
	}
	return outs[s.rng.IntN(len(outs))], true
}
