// Package gps ingests NMEA 0183 from a GNSS receiver and feeds the live fix
// state.
//
// Lines come from one of four sources:
//   - nmea: a USB serial receiver (/dev/ttyACM*, /dev/ttyUSB*)
//   - gpsd: gpsd's raw NMEA stream over TCP
//   - replay: a recorded TSV log played back with its recorded timing
//   - sim: the built-in receiver simulator, one epoch per interval
//
// Every line goes through the same path: optional recording, decoding,
// rebroadcast, metrics, and a single writer update of the state bus.
package gps
