package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	headerMagic   = 0x4e534350 // "PCSN"
	headerVersion = 1
	headerSize    = 8
)

// header: [Magic: 4][Version: 2][Compression: 1][Reserved: 1], little endian.
type header struct {
	Version     uint16
	Compression Compression
}

func (h header) writeTo(w io.Writer) error {
	var buf [headerSize]byte
	binary.LittleEndian.PutUint32(buf[0:], headerMagic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	buf[6] = byte(h.Compression)
	_, err := w.Write(buf[:])
	return err
}

func readHeader(r io.Reader) (header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return header{}, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	if binary.LittleEndian.Uint32(buf[0:]) != headerMagic {
		return header{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	h := header{
		Version:     binary.LittleEndian.Uint16(buf[4:]),
		Compression: Compression(buf[6]),
	}
	if h.Version != headerVersion {
		return header{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	if h.Compression > CompressionZstd {
		return header{}, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, h.Compression)
	}
	return h, nil
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
