// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package fileserve

import (
	"bytes"
	"log/slog"
	"net"

	"github.com/forgelogic/core/errkind"
	"github.com/forgelogic/core/fileserve/wire"
)

// Beacon answers UDP discovery pings on a secondary endpoint with this
// server's TCP port and local addresses, per the 'NSIP'/'MYIP' handshake.
type Beacon struct {
	log  *slog.Logger
	conn *net.UDPConn
	port uint16
}

// NewBeacon starts listening for 'NSIP' queries on udpAddr and answers
// with servicePort and the host's non-loopback IPv4 addresses.
func NewBeacon(udpAddr string, servicePort uint16, log *slog.Logger) (*Beacon, error) {
	if log == nil {
		log = slog.Default()
	}
	addr, err := net.ResolveUDPAddr("udp", udpAddr)
	if err != nil {
		return nil, errkind.Wrap(errkind.Invalid, "fileserve", "resolve beacon address", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "fileserve", "listen beacon udp", err)
	}
	b := &Beacon{log: log, conn: conn, port: servicePort}
	go b.run()
	return b, nil
}

func (b *Beacon) run() {
	buf := make([]byte, 512)
	for {
		n, from, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		f, err := wire.ReadFrame(bytes.NewReader(buf[:n]))
		if err != nil || f.ID != wire.NSIP {
			continue
		}
		reply := wire.EncodeConnInfo(wire.ConnInfo{Port: b.port, IPs: localIPv4s()})
		var out bytes.Buffer
		if err := wire.WriteFrame(&out, wire.MYIP, reply); err != nil {
			b.log.Warn("fileserve: encode beacon reply", "error", err)
			continue
		}
		if _, err := b.conn.WriteToUDP(out.Bytes(), from); err != nil {
			b.log.Warn("fileserve: send beacon reply", "error", err)
		}
	}
}

// Close stops the beacon.
func (b *Beacon) Close() error { return b.conn.Close() }

func localIPv4s() []string {
	var out []string
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return out
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			out = append(out, v4.String())
		}
	}
	return out
}
