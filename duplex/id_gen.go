package duplex

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"strconv"
	"sync"
)

// ID identifies a request, a subscription or a queued intent.
//
// The upper bits carry the epoch and the lower 32 bits a sequence number. Epochs are limited to
// 21 bits so that every ID is exactly representable as a JSON number by the endpoint.
type ID uint64

const (
	epochBits = 21
	epochMask = 1<<epochBits - 1
	seqBits   = 32
)

// Epoch returns the epoch part of the id.
func (id ID) Epoch() uint32 { return uint32(uint64(id) >> seqBits) }

// Seq returns the sequence part of the id.
func (id ID) Seq() uint32 { return uint32(id) }

// String returns the decimal representation of the id, as it appears on the wire.
func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// idGenerator mints session scoped identifiers.
//
// The starting epoch is randomized with crypto/rand so that two process lifetimes are unlikely to reuse
// the same range. The epoch advances on every new connection and when the sequence wraps.
type idGenerator struct {
	mu    sync.Mutex
	epoch uint32
	seq   uint32
}

func newIDGenerator() *idGenerator {
	gen := &idGenerator{}

	var buf [4]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err == nil {
		gen.epoch = binary.LittleEndian.Uint32(buf[:]) & epochMask
	}

	return gen
}

// Next returns the next identifier of the current epoch.
func (g *idGenerator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	if g.seq == 0 { // sequence wrapped, move to a fresh epoch
		g.epoch = (g.epoch + 1) & epochMask
		g.seq = 1
	}

	return ID(uint64(g.epoch)<<seqBits | uint64(g.seq))
}

// NewEpoch starts a new epoch and returns it.
func (g *idGenerator) NewEpoch() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.epoch = (g.epoch + 1) & epochMask
	g.seq = 0

	return g.epoch
}

// Epoch returns the current epoch.
func (g *idGenerator) Epoch() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.epoch
}
