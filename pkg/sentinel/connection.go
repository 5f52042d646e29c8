package sentinel

import (
	"context"
)

// TestConnection probes the collection endpoint's health path. It is valid in
// any lifecycle state and never touches the capture pipeline. Concurrent
// callers share one probe; each caller may abandon its wait through ctx
// without cancelling the probe for the others. The probe itself is bounded by
// the configured Timeout.
func (c *Catcher) TestConnection(ctx context.Context) (bool, error) {
	ch := c.probe.DoChan("ping", func() (any, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		return nil, c.deliverer.Ping(pctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.log.Debug("sentinel: connection test failed", "error", res.Err)
			return false, res.Err
		}
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
