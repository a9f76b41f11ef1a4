// Package cipher implements the scrambler/cipher layer: a
// backend.Channel that wraps another Channel and transparently
// encrypts/decrypts fixed-size blocks with a password-derived key,
// grounded on §4.3 and on the original's `crypto.hpp`/`crypto_sym.hpp`
// block-cipher-over-a-generic_file design. Keys are derived from the
// passphrase with golang.org/x/crypto/pbkdf2, an enrichment the teacher
// itself never needed but the rest of the retrieval pack (password-
// protected archive/backup tools) reaches for routinely; the block
// transform itself is crypto/aes in CBC mode, since no pack dependency
// offers a better block-cipher primitive than the standard library's.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/edrusb/darchive/backend"
	"github.com/edrusb/darchive/errs"
)

// BlockSize is the cipher layer's fixed block size: unaligned seeks are
// emulated by read-modify-write of the block straddling the target
// offset (§4.3).
const BlockSize = aes.BlockSize

const (
	kdfIterations = 100_000
	keyLen        = 32 // AES-256
	saltLen       = 16
)

// DeriveKey derives a BlockSize-aligned AES-256 key from a passphrase
// and a salt via PBKDF2-HMAC-SHA256. The salt is generated once per
// archive and stored alongside the cipher layer's own header so restore
// can re-derive the same key.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIterations, keyLen, sha256.New)
}

// NewSalt returns a fresh random salt for DeriveKey.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errs.Wrap(err, "cipher.NewSalt")
	}
	return salt, nil
}

// Layer wraps an inner backend.Channel, encrypting on Write and
// decrypting on Read. Each logical block is an independent CBC chain
// seeded from a block-index-derived IV, so Skip can jump straight to
// any block without replaying every prior one (unlike a single
// whole-stream CBC chain): this is the Go re-expression of §4.3's
// requirement that "ciphertext length equals plaintext length (modulo
// block padding)", achieved by never padding at all and instead
// keeping every plaintext block exactly BlockSize, with the final
// short block of the stream written by Terminate as raw bytes with no
// length prefix; Read recognises it as the short read at end of stream.
type Layer struct {
	inner backend.Channel
	block cipher.Block
	mode  backend.Mode

	// pending holds a partially filled/drained block for Read/Write.
	pending    [BlockSize]byte
	pendingLen int
	blockIndex uint64
}

// NewLayer wraps inner with AES-CBC block encryption keyed by key
// (see DeriveKey). mode must match inner's mode.
func NewLayer(inner backend.Channel, key []byte) (*Layer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Wrap(err, "cipher.NewLayer: building AES cipher")
	}
	return &Layer{inner: inner, block: block, mode: inner.Mode()}, nil
}

func (l *Layer) Mode() backend.Mode { return l.mode }

func (l *Layer) ivFor(blockIndex uint64) []byte {
	iv := make([]byte, BlockSize)
	for i := 0; i < 8 && i < BlockSize; i++ {
		iv[BlockSize-1-i] = byte(blockIndex >> (8 * i))
	}
	return iv
}

// Read decrypts one block at a time from inner, buffering any leftover
// plaintext across calls.
func (l *Layer) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if l.pendingLen == 0 {
			var ct [BlockSize]byte
			n, err := io.ReadFull(l.inner, ct[:])
			if n == 0 {
				return total, err
			}
			pt := make([]byte, n)
			if n == BlockSize {
				dec := cipher.NewCBCDecrypter(l.block, l.ivFor(l.blockIndex))
				dec.CryptBlocks(pt, ct[:])
			} else {
				// short final block: stored unencrypted by Write's
				// end-of-stream path, see Terminate.
				copy(pt, ct[:n])
			}
			copy(l.pending[:], pt)
			l.pendingLen = n
			l.blockIndex++
		}
		n := copy(p[total:], l.pending[:l.pendingLen])
		total += n
		copy(l.pending[:], l.pending[n:l.pendingLen])
		l.pendingLen -= n
	}
	return total, nil
}

// Write buffers plaintext into whole blocks, encrypting and flushing
// each as it fills.
func (l *Layer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := copy(l.pending[l.pendingLen:], p)
		l.pendingLen += n
		total += n
		p = p[n:]
		if l.pendingLen == BlockSize {
			if err := l.flushBlock(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (l *Layer) flushBlock() error {
	var ct [BlockSize]byte
	enc := cipher.NewCBCEncrypter(l.block, l.ivFor(l.blockIndex))
	enc.CryptBlocks(ct[:], l.pending[:BlockSize])
	if _, err := l.inner.Write(ct[:]); err != nil {
		return errs.Wrap(err, "cipher.Layer: writing ciphertext block")
	}
	l.blockIndex++
	l.pendingLen = 0
	return nil
}

// Terminate flushes any final short block unencrypted (see Read's
// short-block handling) and terminates inner.
func (l *Layer) Terminate() error {
	if l.mode != backend.ReadOnly && l.pendingLen > 0 {
		if _, err := l.inner.Write(l.pending[:l.pendingLen]); err != nil {
			return errs.Wrap(err, "cipher.Layer: writing final short block")
		}
		l.pendingLen = 0
	}
	return l.inner.Terminate()
}

// Skip seeks to an absolute plaintext offset, discarding any pending
// buffered block and reading/decrypting the block straddling the
// target offset so the caller lands mid-block correctly (§4.3
// "unaligned seeks emulated by read-modify-write of the surrounding
// block").
func (l *Layer) Skip(absolute int64) error {
	blockIndex := uint64(absolute) / BlockSize
	within := int(uint64(absolute) % BlockSize)

	if err := l.inner.Skip(int64(blockIndex) * BlockSize); err != nil {
		return err
	}
	l.blockIndex = blockIndex
	l.pendingLen = 0

	if within == 0 {
		return nil
	}
	var discard [BlockSize]byte
	n, err := l.Read(discard[:within])
	if err != nil {
		return err
	}
	if n != within {
		return errs.New(errs.KindRange, "cipher.Layer.Skip: short read realigning block")
	}
	return nil
}

func (l *Layer) SkipToEOF() error {
	if err := l.inner.SkipToEOF(); err != nil {
		return err
	}
	l.pendingLen = 0
	pos, err := l.inner.CurrentPosition()
	if err != nil {
		return err
	}
	l.blockIndex = uint64(pos) / BlockSize
	return nil
}

func (l *Layer) SkipRelative(delta int64) error {
	pos, err := l.CurrentPosition()
	if err != nil {
		return err
	}
	return l.Skip(pos + delta)
}

// CurrentPosition reports the plaintext offset. In read mode pendingLen
// plaintext bytes have already been pulled from inner but not yet
// handed to the caller, so they are subtracted back off; in write mode
// pendingLen plaintext bytes are buffered ahead of inner (not yet
// flushed as a ciphertext block), so they are added.
func (l *Layer) CurrentPosition() (int64, error) {
	pos, err := l.inner.CurrentPosition()
	if err != nil {
		return 0, err
	}
	if l.mode == backend.ReadOnly {
		return pos - int64(l.pendingLen), nil
	}
	return pos + int64(l.pendingLen), nil
}

func (l *Layer) Skippable(dir backend.Direction, amount int64) bool {
	return l.inner.Skippable(dir, amount)
}

func (l *Layer) SyncWrite() error { return l.inner.SyncWrite() }
