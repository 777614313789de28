// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Publisher is the minimal event-fanout seam the directory publishes
// deltas through. Grounded on bayleafwalker-bindery-core's
// publish.Publisher interface.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// NATSPublisher is the production Publisher, wiring nats-io/nats.go per
// SPEC_FULL.md's C10 row ("central directory republishes player/team/
// liveboard/leaderboard deltas to subscribing observers"). Grounded on
// bayleafwalker-bindery-core/modules/physics-engine-template/publish/nats.go.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to url (nats.DefaultURL if empty).
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("directory: connect nats %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	return p.nc.Publish(subject, payload)
}

func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

var _ Publisher = (*NATSPublisher)(nil)
