// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"

	"github.com/SoftbearStudios/mk48arena/internal/session"
)

// Route53DNS is the production DNS, grounded directly on
// server/cloud/dns/route53.go's UpdateRoute, widened with ListResourceRecordSets
// (ReadRecords) and a home-record upsert path spec.md §4.9 needs
// that the teacher's self-registration-only client never exercised.
type Route53DNS struct {
	svc    *route53.Route53
	zoneID string
}

// NewRoute53DNS wraps an existing AWS session the same way the teacher's
// NewRoute53DNS does, against the given hosted zone.
func NewRoute53DNS(sess *awssession.Session, zoneID string) *Route53DNS {
	return &Route53DNS{svc: route53.New(sess), zoneID: zoneID}
}

func (d *Route53DNS) ReadRecords(ctx context.Context, domain string) ([]Record, error) {
	out, err := d.svc.ListResourceRecordSetsWithContext(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId: aws.String(d.zoneID),
	})
	if err != nil {
		return nil, fmt.Errorf("fleet: read records: %w", err)
	}
	var records []Record
	for _, set := range out.ResourceRecordSets {
		if set.Type == nil || *set.Type != "A" || set.Name == nil {
			continue
		}
		name := strings.TrimSuffix(*set.Name, ".")
		if !strings.HasSuffix(name, domain) {
			continue
		}
		for _, rr := range set.ResourceRecords {
			if rr.Value == nil {
				continue
			}
			if ip := net.ParseIP(*rr.Value); ip != nil {
				records = append(records, Record{Name: name, IP: ip})
			}
		}
	}
	return records, nil
}

func (d *Route53DNS) UpsertServerRecord(ctx context.Context, domain string, id session.ServerID, ip net.IP) error {
	return d.upsert(ctx, strconv.Itoa(int(id))+"."+domain, []string{ip.String()})
}

func (d *Route53DNS) UpsertHomeRecord(ctx context.Context, domain string, ips []net.IP) error {
	values := make([]string, 0, len(ips))
	for _, ip := range ips {
		values = append(values, ip.String())
	}
	return d.upsert(ctx, domain, values)
}

func (d *Route53DNS) upsert(ctx context.Context, name string, values []string) error {
	records := make([]*route53.ResourceRecord, 0, len(values))
	for _, v := range values {
		records = append(records, &route53.ResourceRecord{Value: aws.String(v)})
	}
	_, err := d.svc.ChangeResourceRecordSetsWithContext(ctx, &route53.ChangeResourceRecordSetsInput{
		ChangeBatch: &route53.ChangeBatch{
			Changes: []*route53.Change{
				{
					Action: aws.String("UPSERT"),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name:            aws.String(name),
						Type:            aws.String("A"),
						ResourceRecords: records,
						TTL:             aws.Int64(60),
					},
				},
			},
		},
		HostedZoneId: aws.String(d.zoneID),
	})
	if err != nil {
		return fmt.Errorf("fleet: upsert %s: %w", name, err)
	}
	return nil
}

var _ DNS = (*Route53DNS)(nil)
