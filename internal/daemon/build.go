package daemon

import (
	"dcsingest/internal/framer"
	"dcsingest/internal/group"
	"dcsingest/internal/metrics"
	"dcsingest/internal/ratelimit"
	"dcsingest/internal/resolver"
	"dcsingest/internal/source"
	"dcsingest/internal/source/lrgs"
	"dcsingest/pkg/header"
	"fmt"
	"strings"
)

// Builds the byte source for a single transport entry
func newSource(spec SourceSpec, limiter *ratelimit.Limiter) (src source.ByteSource) {
	switch spec.Transport {
	case "tcp":
		src = source.NewTCP(spec.Address, spec.Framing.ReadTimeout, spec.Reconnect)
	case "file":
		src = source.NewFile(spec.Path, false)
	case "follow":
		src = source.NewFile(spec.Path, true)
	case "lrgs":
		client := lrgs.NewClient(spec.Address, spec.Username, limiter)
		if spec.DCPAddress != "" {
			for _, address := range strings.Split(spec.DCPAddress, ",") {
				client.DCPAddresses = append(client.DCPAddresses, strings.TrimSpace(address))
			}
		}
		if spec.Framing.ReadTimeout > 0 {
			client.ReadTimeout = spec.Framing.ReadTimeout
		}
		src = client
	}
	return
}

// Recursively turns a source entry into a group member and collects every metric producer under it
func buildMember(spec SourceSpec, parsers *header.Registry, lookup resolver.Lookup) (member group.Member, collectors []metrics.Collector, err error) {
	if spec.Group != "" {
		var members []group.Member
		for _, memberSpec := range spec.Members {
			var child group.Member
			var childCollectors []metrics.Collector
			child, childCollectors, err = buildMember(memberSpec, parsers, lookup)
			if err != nil {
				return
			}
			members = append(members, child)
			collectors = append(collectors, childCollectors...)
		}

		switch spec.Group {
		case "hotbackup":
			hotBackup := group.NewHotBackup(spec.Name, members, spec.Recheck, spec.Reprobe)
			member = hotBackup
			collectors = append(collectors, hotBackup)
		case "roundrobin":
			roundRobin := group.NewRoundRobin(spec.Name, members)
			member = roundRobin
			collectors = append(collectors, roundRobin)
		default:
			err = fmt.Errorf("unknown group type '%s'", spec.Group)
		}
		return
	}

	parser, err := parsers.New(spec.Format)
	if err != nil {
		err = fmt.Errorf("source '%s': %w", spec.Name, err)
		return
	}

	var limiter *ratelimit.Limiter
	if spec.RequestsPerMinute > 0 {
		limiter = ratelimit.PerMinute(spec.RequestsPerMinute, nil)
	}

	// Archive clients throttle their own requests, everything else is throttled per message
	src := newSource(spec, limiter)
	if src == nil {
		err = fmt.Errorf("source '%s': unknown transport '%s'", spec.Name, spec.Transport)
		return
	}
	if spec.Transport == "lrgs" {
		limiter = nil
	}

	opts := []framer.Option{framer.WithName(spec.Name)}
	if lookup != nil {
		opts = append(opts, framer.WithResolver(resolver.New(lookup, spec.LegacyChannelRanges)))
	}

	streamFramer, err := framer.New(src, parser, spec.Framing, opts...)
	if err != nil {
		err = fmt.Errorf("source '%s': %w", spec.Name, err)
		return
	}

	session := framer.NewSession(spec.Name, streamFramer, limiter)
	if !spec.Until.IsZero() {
		session.SetUntil(spec.Until)
	}

	member = session
	collectors = append(collectors, streamFramer)
	return
}
