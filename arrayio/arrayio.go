// SPDX-License-Identifier: MIT

// Package arrayio stores named dense complex arrays in a compact binary file.
//
// Layout:
//
//	[magic "BEORARR1"][codec uint8][3 reserved][crc32 uint32 of payload]
//	[payload, compressed with codec]
//
// The uncompressed payload is
//
//	[count uint32] then per array [nameLen uint16][name][rows uint32][cols uint32]
//	[rows·cols complex128 as little-endian (re, im) float64 pairs]
//
// Matrices are stored row-major. Vectors use Cols = 1.
package arrayio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	magic      = "BEORARR1"
	headerSize = len(magic) + 4 + 4
	maxName    = math.MaxUint16
)

var (
	// ErrBadMagic indicates the input is not an array file.
	ErrBadMagic = errors.New("arrayio: bad magic")

	// ErrChecksum indicates the payload does not match its stored checksum.
	ErrChecksum = errors.New("arrayio: checksum mismatch")

	// ErrUnknownCodec indicates an unsupported codec byte.
	ErrUnknownCodec = errors.New("arrayio: unknown codec")

	// ErrNotFound is returned by Archive.Get for a missing name.
	ErrNotFound = errors.New("arrayio: array not found")

	// ErrInvalidArray indicates a shape/data mismatch, a bad name or a duplicate.
	ErrInvalidArray = errors.New("arrayio: invalid array")
)

// Codec selects payload compression.
type Codec uint8

const (
	// CodecNone stores the payload as is.
	CodecNone Codec = iota
	// CodecZstd compresses with Zstandard (default).
	CodecZstd
	// CodecLZ4 compresses with LZ4 frames; faster to read, larger files.
	CodecLZ4
)

// String implements fmt.Stringer.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	}

	return fmt.Sprintf("Codec(%d)", uint8(c))
}

// Array is one named row-major complex array.
type Array struct {
	Name       string
	Rows, Cols int
	Data       []complex128
}

// NewArray validates and wraps data without copying.
func NewArray(name string, rows, cols int, data []complex128) (Array, error) {
	a := Array{Name: name, Rows: rows, Cols: cols, Data: data}
	if err := a.validate(); err != nil {
		return Array{}, err
	}

	return a, nil
}

// Vector wraps a complex vector as an n×1 array.
func Vector(name string, v []complex128) Array {
	return Array{Name: name, Rows: len(v), Cols: 1, Data: v}
}

// RealVector stores a real vector as an n×1 complex array.
func RealVector(name string, v []float64) Array {
	d := make([]complex128, len(v))
	for i, x := range v {
		d[i] = complex(x, 0)
	}

	return Array{Name: name, Rows: len(v), Cols: 1, Data: d}
}

// Real returns the real parts of the data.
func (a Array) Real() []float64 {
	out := make([]float64, len(a.Data))
	for i, v := range a.Data {
		out[i] = real(v)
	}

	return out
}

func (a Array) validate() error {
	if a.Name == "" || len(a.Name) > maxName {
		return fmt.Errorf("array %q: name: %w", a.Name, ErrInvalidArray)
	}
	if a.Rows < 0 || a.Cols < 0 || a.Rows*a.Cols != len(a.Data) {
		return fmt.Errorf("array %q: %dx%d with %d values: %w", a.Name, a.Rows, a.Cols, len(a.Data), ErrInvalidArray)
	}

	return nil
}

// ---------- options ----------

// Option configures Write.
type Option func(*options)

type options struct {
	codec Codec
	level zstd.EncoderLevel
}

// WithCodec selects the payload codec.
func WithCodec(c Codec) Option { return func(o *options) { o.codec = c } }

// WithZstdLevel sets the Zstandard encoder level.
func WithZstdLevel(l zstd.EncoderLevel) Option { return func(o *options) { o.level = l } }

// ---------- writing ----------

// Write encodes arrays to w.
func Write(w io.Writer, arrays []Array, opts ...Option) error {
	o := options{codec: CodecZstd, level: zstd.SpeedDefault}
	for _, fn := range opts {
		fn(&o)
	}
	seen := make(map[string]struct{}, len(arrays))
	for _, a := range arrays {
		if err := a.validate(); err != nil {
			return fmt.Errorf("Write: %w", err)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("Write: duplicate %q: %w", a.Name, ErrInvalidArray)
		}
		seen[a.Name] = struct{}{}
	}

	payload := encodePayload(arrays)
	hdr := make([]byte, headerSize)
	copy(hdr, magic)
	hdr[len(magic)] = byte(o.codec)
	binary.LittleEndian.PutUint32(hdr[len(magic)+4:], crc32.ChecksumIEEE(payload))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("Write: header: %w", err)
	}

	switch o.codec {
	case CodecNone:
		_, err := w.Write(payload)
		return err
	case CodecZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(o.level))
		if err != nil {
			return fmt.Errorf("Write: zstd: %w", err)
		}
		if _, err = enc.Write(payload); err != nil {
			enc.Close()
			return fmt.Errorf("Write: zstd: %w", err)
		}
		return enc.Close()
	case CodecLZ4:
		zw := lz4.NewWriter(w)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("Write: lz4: %w", err)
		}
		return zw.Close()
	}

	return fmt.Errorf("Write: %v: %w", o.codec, ErrUnknownCodec)
}

func encodePayload(arrays []Array) []byte {
	size := 4
	for _, a := range arrays {
		size += 2 + len(a.Name) + 8 + 16*len(a.Data)
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(arrays)))
	for _, a := range arrays {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(a.Name)))
		buf = append(buf, a.Name...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(a.Rows))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(a.Cols))
		for _, v := range a.Data {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(real(v)))
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(imag(v)))
		}
	}

	return buf
}

// WriteFile writes arrays to path, replacing it atomically.
func WriteFile(path string, arrays []Array, opts ...Option) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("WriteFile: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err = Write(bw, arrays, opts...); err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("WriteFile(%s): %w", path, err)
	}

	return os.Rename(tmp, path)
}

// ---------- reading ----------

// Archive is a decoded set of arrays, indexed by name.
type Archive struct {
	arrays []Array
	index  map[string]int
}

// Len returns the number of arrays.
func (a *Archive) Len() int { return len(a.arrays) }

// Names returns the array names in sorted order.
func (a *Archive) Names() []string {
	out := make([]string, 0, len(a.arrays))
	for _, arr := range a.arrays {
		out = append(out, arr.Name)
	}
	sort.Strings(out)

	return out
}

// Get returns the array called name.
func (a *Archive) Get(name string) (Array, error) {
	i, ok := a.index[name]
	if !ok {
		return Array{}, fmt.Errorf("Get(%q): %w", name, ErrNotFound)
	}

	return a.arrays[i], nil
}

// Read decodes an archive from r.
func Read(r io.Reader) (*Archive, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("Read: header: %w", err)
	}
	if string(hdr[:len(magic)]) != magic {
		return nil, fmt.Errorf("Read: %w", ErrBadMagic)
	}
	codec := Codec(hdr[len(magic)])
	sum := binary.LittleEndian.Uint32(hdr[len(magic)+4:])

	var (
		payload []byte
		err     error
	)
	switch codec {
	case CodecNone:
		payload, err = io.ReadAll(r)
	case CodecZstd:
		var dec *zstd.Decoder
		if dec, err = zstd.NewReader(r); err == nil {
			payload, err = io.ReadAll(dec)
			dec.Close()
		}
	case CodecLZ4:
		payload, err = io.ReadAll(lz4.NewReader(r))
	default:
		return nil, fmt.Errorf("Read: %v: %w", codec, ErrUnknownCodec)
	}
	if err != nil {
		return nil, fmt.Errorf("Read: %v payload: %w", codec, err)
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, fmt.Errorf("Read: %w", ErrChecksum)
	}

	return decodePayload(payload)
}

// cursor reads little-endian fields from a payload, failing once on underrun.
type cursor struct {
	p   []byte
	off int
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.p) {
		c.err = io.ErrUnexpectedEOF
		return nil
	}
	b := c.p[c.off : c.off+n]
	c.off += n

	return b
}

func (c *cursor) u16() uint16 {
	if b := c.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}

	return 0
}

func (c *cursor) u32() uint32 {
	if b := c.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}

	return 0
}

func decodePayload(p []byte) (*Archive, error) {
	c := &cursor{p: p}
	count := c.u32()
	if c.err != nil {
		return nil, fmt.Errorf("Read: count: %w", c.err)
	}
	arc := &Archive{index: make(map[string]int)}
	for i := uint32(0); i < count; i++ {
		name := string(c.take(int(c.u16())))
		rows, cols := int(c.u32()), int(c.u32())
		raw := c.take(16 * rows * cols)
		if c.err != nil {
			return nil, fmt.Errorf("Read: array %d: %w", i, c.err)
		}
		data := make([]complex128, rows*cols)
		for k := range data {
			data[k] = complex(
				math.Float64frombits(binary.LittleEndian.Uint64(raw[16*k:])),
				math.Float64frombits(binary.LittleEndian.Uint64(raw[16*k+8:])))
		}
		arr := Array{Name: name, Rows: rows, Cols: cols, Data: data}
		if _, dup := arc.index[arr.Name]; dup {
			return nil, fmt.Errorf("Read: duplicate %q: %w", arr.Name, ErrInvalidArray)
		}
		arc.index[arr.Name] = len(arc.arrays)
		arc.arrays = append(arc.arrays, arr)
	}

	return arc, nil
}

// ReadFile decodes the archive at path.
func ReadFile(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadFile: %w", err)
	}
	defer f.Close()

	arc, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("ReadFile(%s): %w", path, err)
	}

	return arc, nil
}
