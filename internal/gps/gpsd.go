package gps

import (
	"context"
	"net"
	"strings"
	"time"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// dialGPSD connects to gpsd over TCP.
func dialGPSD(ctx context.Context, addr string) (net.Conn, error) {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	d := &net.Dialer{Timeout: 2 * time.Second}
	if ctx == nil {
		return d.Dial("tcp", addr)
	}
	return d.DialContext(ctx, "tcp", addr)
}

// gpsdWatch asks gpsd to pass the receiver's sentences through verbatim.
// gpsd still interleaves its own JSON VERSION/DEVICES/WATCH reports, which
// HandleLine drops because they do not start with '$'.
func gpsdWatch(conn net.Conn) error {
	_, err := conn.Write([]byte("?WATCH={\"enable\":true,\"nmea\":true}\n"))
	return err
}
