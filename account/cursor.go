package account

import "github.com/arcsign/walletcore/corechain"

// cursor reads a byte buffer left-to-right, tracking remaining length
// explicitly so that every sub-parser errors instead of ever reading past
// the buffer end. No parser in this package receives a raw []byte +
// offset pair, only a *cursor.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

// remaining returns the number of unread bytes.
func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

// take reads exactly n bytes and advances the cursor, or returns an error
// if fewer than n bytes remain.
func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeBufferTruncated,
			"account deserialize: buffer truncated", nil)
	}
	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *cursor) takeUint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (c *cursor) takeUint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (c *cursor) takeUint64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// takeSized reads a uint32 length prefix followed by that many bytes,
// erroring if the declared length would overrun the remaining buffer.
func (c *cursor) takeSized() ([]byte, error) {
	n, err := c.takeUint32()
	if err != nil {
		return nil, err
	}
	return c.take(int(n))
}

func putUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func putUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

func putUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func putSized(buf []byte, data []byte) []byte {
	buf = putUint32(buf, uint32(len(data)))
	return append(buf, data...)
}
