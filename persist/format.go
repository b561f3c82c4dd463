// Package persist implements the binary snapshot format of spec.md §6:
// a compacted Stops/Timetable pair written to and read back from a
// single byte slice, so a deployment can ship a pre-built snapshot
// instead of re-parsing a GTFS feed on every start.
//
// The format is written with protobuf's low-level wire primitives
// (varint, length-delimited) rather than generated message types, so
// the on-disk layout is exactly the sequence of fields below -- no
// field tags, no schema evolution machinery. A version string leads
// both the Stops and the Timetable streams; readers reject a mismatch
// rather than guess at a layout change.
package persist

import (
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/barmettlerl/minotor-sub000/timetable"
)

// StopsVersion and TimetableVersion are written at the head of their
// respective streams. A Load call refuses to decode a stream stamped
// with a different version.
const (
	StopsVersion     = "0.0.2"
	TimetableVersion = "0.0.6"
)

func appendVersion(b []byte, version string) []byte {
	return protowire.AppendString(b, version)
}

func consumeVersion(b []byte, want string) ([]byte, error) {
	got, n := protowire.ConsumeString(b)
	if n < 0 {
		return nil, fmt.Errorf("%w: reading version: %v", timetable.ErrMalformedTimetable, protowire.ParseError(n))
	}
	if got != want {
		return nil, fmt.Errorf("%w: version %q, want %q", timetable.ErrMalformedTimetable, got, want)
	}
	return b[n:], nil
}

func appendUint(b []byte, v int) []byte {
	return protowire.AppendVarint(b, uint64(v))
}

func consumeUint(b []byte) (int, []byte, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, fmt.Errorf("%w: reading integer: %v", timetable.ErrMalformedTimetable, protowire.ParseError(n))
	}
	return int(v), b[n:], nil
}

func appendString(b []byte, s string) []byte {
	return protowire.AppendString(b, s)
}

func consumeString(b []byte) (string, []byte, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", nil, fmt.Errorf("%w: reading string: %v", timetable.ErrMalformedTimetable, protowire.ParseError(n))
	}
	return v, b[n:], nil
}

// appendOptionalFloat64 writes a presence byte followed, when present,
// by 8 bytes of IEEE 754 bits. Protobuf's own varint/length-delimited
// primitives have no native "optional" marker, hence the explicit flag.
func appendOptionalFloat64(b []byte, v *float64) []byte {
	if v == nil {
		return append(b, 0)
	}
	b = append(b, 1)
	return protowire.AppendFixed64(b, math.Float64bits(*v))
}

func consumeOptionalFloat64(b []byte) (*float64, []byte, error) {
	if len(b) < 1 {
		return nil, nil, fmt.Errorf("%w: truncated optional float", timetable.ErrMalformedTimetable)
	}
	present, rest := b[0], b[1:]
	if present == 0 {
		return nil, rest, nil
	}
	bits, n := protowire.ConsumeFixed64(rest)
	if n < 0 {
		return nil, nil, fmt.Errorf("%w: reading float: %v", timetable.ErrMalformedTimetable, protowire.ParseError(n))
	}
	f := math.Float64frombits(bits)
	return &f, rest[n:], nil
}

// appendOptionalUint mirrors appendOptionalFloat64 for optional
// integers (e.g. a transfer's min_transfer_time_seconds).
func appendOptionalUint(b []byte, v *int) []byte {
	if v == nil {
		return append(b, 0)
	}
	b = append(b, 1)
	return appendUint(b, *v)
}

func consumeOptionalUint(b []byte) (*int, []byte, error) {
	if len(b) < 1 {
		return nil, nil, fmt.Errorf("%w: truncated optional integer", timetable.ErrMalformedTimetable)
	}
	present, rest := b[0], b[1:]
	if present == 0 {
		return nil, rest, nil
	}
	v, rest, err := consumeUint(rest)
	if err != nil {
		return nil, nil, err
	}
	return &v, rest, nil
}

// appendPackedUint16LE packs values as little-endian u16s inside a
// length-delimited blob, per spec.md §6's "stop_times: packed u16
// little-endian minutes" layout. A value >= 2^16 violates the
// invariant spec.md §4.6 requires to be rejected at build time, so it
// is caught here as a malformed-timetable error rather than silently
// truncated.
func appendPackedUint16LE(b []byte, values []int32) ([]byte, error) {
	raw := make([]byte, 2*len(values))
	for i, v := range values {
		if v < 0 || v > math.MaxUint16 {
			return nil, fmt.Errorf("%w: time value %d does not fit in 16 bits", timetable.ErrMalformedTimetable, v)
		}
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}
	return protowire.AppendBytes(b, raw), nil
}

func consumePackedUint16LE(b []byte, count int) ([]int32, []byte, error) {
	raw, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, fmt.Errorf("%w: reading packed u16 blob: %v", timetable.ErrMalformedTimetable, protowire.ParseError(n))
	}
	if len(raw) != 2*count {
		return nil, nil, fmt.Errorf("%w: packed u16 blob has %d bytes, want %d", timetable.ErrMalformedTimetable, len(raw), 2*count)
	}
	values := make([]int32, count)
	for i := range values {
		values[i] = int32(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return values, b[n:], nil
}

// appendPackedUint32LE packs dense ids (StopId, RouteId, ...) as
// little-endian u32s, per spec.md §6's "stops: packed u32
// little-endian" layout.
func appendPackedUint32LE(b []byte, values []int32) []byte {
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(v))
	}
	return protowire.AppendBytes(b, raw)
}

func consumePackedUint32LE(b []byte, count int) ([]int32, []byte, error) {
	raw, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, fmt.Errorf("%w: reading packed u32 blob: %v", timetable.ErrMalformedTimetable, protowire.ParseError(n))
	}
	if len(raw) != 4*count {
		return nil, nil, fmt.Errorf("%w: packed u32 blob has %d bytes, want %d", timetable.ErrMalformedTimetable, len(raw), 4*count)
	}
	values := make([]int32, count)
	for i := range values {
		values[i] = int32(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return values, b[n:], nil
}

// appendBytes writes an already-packed blob (the 2-bit-per-value
// pickup/dropoff table) verbatim inside a length-delimited field.
func appendBytes(b []byte, raw []byte) []byte {
	return protowire.AppendBytes(b, raw)
}

func consumeBytes(b []byte, wantLen int) ([]byte, []byte, error) {
	raw, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, fmt.Errorf("%w: reading byte blob: %v", timetable.ErrMalformedTimetable, protowire.ParseError(n))
	}
	if len(raw) != wantLen {
		return nil, nil, fmt.Errorf("%w: byte blob has %d bytes, want %d", timetable.ErrMalformedTimetable, len(raw), wantLen)
	}
	return raw, b[n:], nil
}
