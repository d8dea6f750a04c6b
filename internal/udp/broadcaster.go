// Package udp forwards raw NMEA sentences to UDP listeners.
package udp

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

type Broadcaster struct {
	dest string
	conn udpConn
}

func NewBroadcaster(dest string) (*Broadcaster, error) {
	return newBroadcaster(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		// DialUDP selects a suitable local address automatically.
		return net.DialUDP(network, laddr, raddr)
	})
}

func newBroadcaster(dest string, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &Broadcaster{dest: dest, conn: conn}, nil
}

func (b *Broadcaster) Dest() string { return b.dest }

func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := b.conn.Write(payload)
	return err
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

// Fanout sends each sentence to every configured target.
type Fanout struct {
	targets []*Broadcaster
}

// NewFanout dials every target. Already-dialed targets are closed when a
// later one fails.
func NewFanout(dests []string) (*Fanout, error) {
	return newFanout(dests, NewBroadcaster)
}

func newFanout(dests []string, open func(string) (*Broadcaster, error)) (*Fanout, error) {
	f := &Fanout{}
	for _, d := range dests {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		b, err := open(d)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("rebroadcast target %s: %w", d, err)
		}
		f.targets = append(f.targets, b)
	}
	return f, nil
}

func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.targets)
}

// SendSentence writes sentence followed by CRLF to every target. A failing
// target does not stop delivery to the others.
func (f *Fanout) SendSentence(sentence string) error {
	if f == nil || len(f.targets) == 0 {
		return nil
	}
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return nil
	}
	payload := []byte(sentence + "\r\n")
	var errs []error
	for _, b := range f.targets {
		if err := b.Send(payload); err != nil {
			errs = append(errs, fmt.Errorf("send %s: %w", b.dest, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, b := range f.targets {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.targets = nil
	return errors.Join(errs...)
}
