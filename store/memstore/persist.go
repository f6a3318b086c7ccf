package memstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/store"
)

const (
	persistMagic   = 0x50434d53 // "PCMS"
	persistVersion = 1
)

// ErrBadSnapshot is returned by ReadFrom for malformed input.
var ErrBadSnapshot = errors.New("memstore: malformed snapshot")

// WriteTo serializes the point set to w.
//
// Format: [Magic: 4][Version: 4][NextID: 8][Count: 8][Entry...]
// Entry: [ID: 8][X: 8][Y: 8], little endian, ordered by id.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	cw := &countingWriter{w: bufio.NewWriter(w)}
	header := make([]byte, 24)
	binary.LittleEndian.PutUint32(header[0:], persistMagic)
	binary.LittleEndian.PutUint32(header[4:], persistVersion)
	binary.LittleEndian.PutUint64(header[8:], uint64(s.nextID))
	binary.LittleEndian.PutUint64(header[16:], uint64(len(s.points)))
	if _, err := cw.Write(header); err != nil {
		return cw.n, err
	}

	buf := make([]byte, 24)
	it := s.live.Iterator()
	for it.HasNext() {
		p := s.points[geom.ID(it.Next())]
		binary.LittleEndian.PutUint64(buf[0:], uint64(p.ID))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(p.X))
		binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(p.Y))
		if _, err := cw.Write(buf); err != nil {
			return cw.n, err
		}
	}

	return cw.n, cw.w.(*bufio.Writer).Flush()
}

// ReadFrom replaces the point set with the one serialized in r.
func (s *Store) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: bufio.NewReader(r)}

	header := make([]byte, 24)
	if _, err := io.ReadFull(cr, header); err != nil {
		return cr.n, fmt.Errorf("%w: header: %w", ErrBadSnapshot, err)
	}
	if binary.LittleEndian.Uint32(header[0:]) != persistMagic {
		return cr.n, fmt.Errorf("%w: bad magic", ErrBadSnapshot)
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != persistVersion {
		return cr.n, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, v)
	}
	nextID := geom.ID(binary.LittleEndian.Uint64(header[8:]))
	count := binary.LittleEndian.Uint64(header[16:])

	points := make([]geom.Point, 0, min(count, 1<<20))
	buf := make([]byte, 24)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(cr, buf); err != nil {
			return cr.n, fmt.Errorf("%w: entry %d: %w", ErrBadSnapshot, i, err)
		}
		p := geom.Point{
			ID: geom.ID(binary.LittleEndian.Uint64(buf[0:])),
			X:  math.Float64frombits(binary.LittleEndian.Uint64(buf[8:])),
			Y:  math.Float64frombits(binary.LittleEndian.Uint64(buf[16:])),
		}
		if err := store.ValidateCoordinates(p.X, p.Y); err != nil || p.ID >= nextID {
			return cr.n, fmt.Errorf("%w: entry %d", ErrBadSnapshot, i)
		}
		points = append(points, p)
	}

	byID := make(map[geom.ID]geom.Point, len(points))
	for _, p := range points {
		if _, dup := byID[p.ID]; dup {
			return cr.n, fmt.Errorf("%w: duplicate id %d", ErrBadSnapshot, p.ID)
		}
		byID[p.ID] = p
	}

	xs := make(column, 0, len(points))
	ys := make(column, 0, len(points))
	ids := make([]uint64, 0, len(points))
	for _, p := range points {
		xs = append(xs, entry{v: p.X, id: p.ID})
		ys = append(ys, entry{v: p.Y, id: p.ID})
		ids = append(ids, uint64(p.ID))
	}
	slices.SortFunc(xs, compareEntry)
	slices.SortFunc(ys, compareEntry)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cr.n, store.ErrClosed
	}

	s.points = byID
	s.live.Clear()
	s.live.AddMany(ids)
	s.xs, s.ys = xs, ys
	s.nextID = nextID

	s.logger.Debug("snapshot restored", "count", len(points), "next_id", nextID)
	return cr.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
