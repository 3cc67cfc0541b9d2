package audio

import (
	"encoding/binary"
	"sync"
)

// voice is the single pulse currently sounding. Device callbacks pull from it
// and get silence once it runs out.
type voice struct {
	mu  sync.Mutex
	buf []int16
	pos int
}

func (v *voice) load(samples []int16) {
	v.mu.Lock()
	v.buf = samples
	v.pos = 0
	v.mu.Unlock()
}

// readInt16 fills out completely and reports how many samples came from the
// pulse; the rest is zero.
func (v *voice) readInt16(out []int16) int {
	v.mu.Lock()
	n := copy(out, v.buf[v.pos:])
	v.pos += n
	if v.pos >= len(v.buf) {
		v.buf, v.pos = nil, 0
	}
	v.mu.Unlock()
	clear(out[n:])
	return n
}

// readBytes is readInt16 for little-endian byte buffers.
func (v *voice) readBytes(out []byte) int {
	frames := len(out) / 2
	v.mu.Lock()
	n := min(frames, len(v.buf)-v.pos)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v.buf[v.pos+i]))
	}
	v.pos += n
	if v.pos >= len(v.buf) {
		v.buf, v.pos = nil, 0
	}
	v.mu.Unlock()
	clear(out[n*2:])
	return n
}
