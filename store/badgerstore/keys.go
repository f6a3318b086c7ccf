package badgerstore

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/pointcount/geom"
)

// Key layout:
//
//	p | id(8)             -> x(8) y(8)
//	x | ord(x)(8) | id(8) -> y(8)
//	y | ord(y)(8) | id(8) -> x(8)
//
// ord maps a float64 onto 8 bytes whose lexicographic order matches the
// numeric order, so the axis prefixes iterate in ascending coordinate order.
const (
	prefixPoint byte = 'p'
	prefixX     byte = 'x'
	prefixY     byte = 'y'

	axisKeyLen = 17
)

var seqKey = []byte("!seq")

func axisPrefix(a geom.Axis) byte {
	if a == geom.AxisY {
		return prefixY
	}
	return prefixX
}

func pointKey(id geom.ID) []byte {
	k := make([]byte, 9)
	k[0] = prefixPoint
	binary.BigEndian.PutUint64(k[1:], uint64(id))
	return k
}

func axisKey(a geom.Axis, v float64, id geom.ID) []byte {
	k := make([]byte, axisKeyLen)
	k[0] = axisPrefix(a)
	binary.BigEndian.PutUint64(k[1:], ordered(v))
	binary.BigEndian.PutUint64(k[9:], uint64(id))
	return k
}

// axisSeekLast returns a key greater than or equal to every key of value v.
func axisSeekLast(a geom.Axis, v float64) []byte {
	return axisKey(a, v, geom.ID(math.MaxUint64))
}

// axisSeekFirst returns a key less than or equal to every key of value v.
func axisSeekFirst(a geom.Axis, v float64) []byte {
	return axisKey(a, v, 0)
}

func decodeAxisKey(k []byte) (float64, geom.ID) {
	return unordered(binary.BigEndian.Uint64(k[1:9])), geom.ID(binary.BigEndian.Uint64(k[9:17]))
}

func decodePointKey(k []byte) geom.ID {
	return geom.ID(binary.BigEndian.Uint64(k[1:9]))
}

func encodeCoord(v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func decodeCoord(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func encodePoint(x, y float64) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:], math.Float64bits(x))
	binary.BigEndian.PutUint64(b[8:], math.Float64bits(y))
	return b
}

func decodePoint(id geom.ID, b []byte) geom.Point {
	return geom.Point{
		ID: id,
		X:  math.Float64frombits(binary.BigEndian.Uint64(b[0:])),
		Y:  math.Float64frombits(binary.BigEndian.Uint64(b[8:])),
	}
}

func ordered(v float64) uint64 {
	if v == 0 {
		v = 0 // folds -0 onto +0
	}
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | 1<<63
}

func unordered(u uint64) float64 {
	if u&(1<<63) != 0 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}
