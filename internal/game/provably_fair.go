package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const serverSeedBytes = 32

// GenerateServerSeed produces a high-entropy secret from crypto/rand.
// On entropy failure the error propagates and callers must refuse new
// commitments; there is no weaker fallback source.
func GenerateServerSeed() (string, error) {
	b := make([]byte, serverSeedBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateClientSeed produces a default client seed for players who do
// not supply their own.
func GenerateClientSeed() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return hex.EncodeToString(b), nil
}

// HashSeed returns the SHA-256 hex digest of a server seed. This is the
// commitment published to the player before any bet is accepted.
func HashSeed(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// byteStream produces a deterministic byte sequence from a seed triple.
// Each 32-byte round is HMAC-SHA256 keyed by the server seed over the
// canonical message "clientSeed:nonce:round". The message layout is part
// of the verification contract and must never change.
type byteStream struct {
	serverSeed  string
	clientSeed  string
	nonce       uint64
	round       int
	roundCursor int
	buffer      [sha256.Size]byte
}

func newByteStream(serverSeed, clientSeed string, nonce uint64, cursor int) *byteStream {
	bs := &byteStream{
		serverSeed:  serverSeed,
		clientSeed:  clientSeed,
		nonce:       nonce,
		round:       cursor / sha256.Size,
		roundCursor: cursor % sha256.Size,
	}
	// A mid-round cursor starts inside an already-derived block.
	if bs.roundCursor != 0 {
		bs.fill()
	}
	return bs
}

func (bs *byteStream) next() byte {
	if bs.roundCursor >= sha256.Size {
		bs.round++
		bs.roundCursor = 0
	}
	if bs.roundCursor == 0 {
		bs.fill()
	}
	b := bs.buffer[bs.roundCursor]
	bs.roundCursor++
	return b
}

func (bs *byteStream) fill() {
	h := hmac.New(sha256.New, []byte(bs.serverSeed))
	fmt.Fprintf(h, "%s:%d:%d", bs.clientSeed, bs.nonce, bs.round)
	copy(bs.buffer[:], h.Sum(nil))
}

// uint32n draws 4 bytes big-endian.
func (bs *byteStream) uint32n() uint32 {
	var b [4]byte
	for i := range b {
		b[i] = bs.next()
	}
	return binary.BigEndian.Uint32(b[:])
}

// uint52 draws 8 bytes and keeps the top 52 bits, the largest integer a
// float64 represents exactly.
func (bs *byteStream) uint52() uint64 {
	var b [8]byte
	for i := range b {
		b[i] = bs.next()
	}
	return binary.BigEndian.Uint64(b[:]) >> 12
}

// Floats maps the byte stream into floats in [0, 1), 4 bytes per float.
func Floats(serverSeed, clientSeed string, nonce uint64, cursor, count int) []float64 {
	bs := newByteStream(serverSeed, clientSeed, nonce, cursor)
	floats := make([]float64, count)
	for i := range floats {
		floats[i] = float64(bs.uint32n()) / (1 << 32)
	}
	return floats
}
