package header

import (
	"context"
	"dcsingest/pkg/message"
	"fmt"
)

const (
	netdcpHeaderLength int    = 40
	layoutNetDCP       string = "2006/01/02 15:04:05"
)

// Polled TCP logger header
//
//	[0:16]  station name, space padded
//	[17:36] YYYY/MM/DD HH:MM:SS
//	[37:40] message length, space padded
type NetDCP struct {
	descriptor
}

func NewNetDCP() Parser {
	return &NetDCP{descriptor{name: "netdcp", mediumType: message.MediumPolledTCP, headerLength: netdcpHeaderLength, explicitLength: true}}
}

func (p *NetDCP) Parse(ctx context.Context, msg *message.Message) (err error) {
	r := &fixedReader{format: p.name, data: msg.Data()}
	station := r.text("station", 0, 16)
	timestamp := r.timestamp("time", 17, 36, layoutNetDCP)
	length := r.decimal("length", 37, 40)
	if r.err != nil {
		err = r.err
		return
	}
	if station == "" {
		err = fieldError(p.name, "station", 0, fmt.Errorf("blank station name"))
		return
	}

	h := newDCPHeader()
	h.address = station
	h.timestamp = timestamp
	h.length = length
	err = h.apply(msg, p.headerLength)
	return
}
