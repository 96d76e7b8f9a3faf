package client

import (
	"context"
)

// LegacyPing is the result of probing the legacy protocol.
type LegacyPing struct {
	Version string `json:"version"`
	Edition string `json:"edition"`
	Working bool   `json:"working"`
}

// ResourcePing is the result of probing the resource protocol.
type ResourcePing struct {
	Working bool `json:"working"`
}

// PingLegacy probes the platform's core-info endpoint. A probe that answers
// with neither version nor edition is reported as not working, not as an
// error.
func (c *Client) PingLegacy(ctx context.Context) (LegacyPing, error) {
	op := c.begin(OpPingLegacy, nil)
	if c.router == nil {
		return LegacyPing{}, op.finish(ErrNoRouter, 0)
	}
	id, err := c.router.Probe(ctx)
	if err != nil {
		return LegacyPing{}, op.finish(err, 0)
	}
	ping := LegacyPing{Version: id.Version, Edition: id.Edition, Working: id.Working()}
	op.logger.Debug().Interface("result", ping).Msg("Legacy ping")
	return ping, op.finish(nil, 1)
}

// PingResource requests one product of the resource listing.
func (c *Client) PingResource(ctx context.Context) (ResourcePing, error) {
	op := c.begin(OpPingResource, nil)
	rc, err := c.resourceClient()
	if err != nil {
		return ResourcePing{}, op.finish(err, 0)
	}
	if _, err := rc.Products(ctx, 1, 1); err != nil {
		return ResourcePing{}, op.finish(err, 0)
	}
	return ResourcePing{Working: true}, op.finish(nil, 1)
}
