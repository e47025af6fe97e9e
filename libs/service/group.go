package service

import (
	"context"

	"github.com/tendermint/nodecore/libs/log"
)

// Group starts a fixed list of Services in construction order and stops
// them in reverse order, so the member registered first is stopped last.
type Group struct {
	BaseService
	logger   log.Logger
	services []Service
}

// NewGroup constructs a Group. Start/Stop the Group itself rather than the
// individual members once it has been built.
func NewGroup(logger log.Logger, name string, services ...Service) *Group {
	g := &Group{
		logger:   logger,
		services: services,
	}
	g.BaseService = *NewBaseService(logger, name, g)
	return g
}

func (g *Group) OnStart(ctx context.Context) error {
	for i, srv := range g.services {
		if err := srv.Start(ctx); err != nil {
			g.stopFrom(i - 1)
			return err
		}
	}
	return nil
}

func (g *Group) OnStop() {
	g.stopFrom(len(g.services) - 1)
}

// stopFrom stops services[0..from] in reverse order, tolerating services
// that never started.
func (g *Group) stopFrom(from int) {
	for i := from; i >= 0; i-- {
		srv := g.services[i]
		if !srv.IsRunning() {
			continue
		}
		if err := srv.Stop(); err != nil {
			g.logger.Error("failed to stop service in group", "service", srv.String(), "err", err)
		}
	}
}
