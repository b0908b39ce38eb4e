package strata

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// DefaultIVSize is the IV length in bytes used by the AES algorithms.
const DefaultIVSize = 16

// Encryption errors.
var (
	ErrCiphertextShort = errors.New("ciphertext too short")
	ErrMalformedTuple  = errors.New("malformed ciphertext tuple")
	ErrBadPadding      = errors.New("invalid padding")
)

// sealer is the symmetric primitive behind Encrypt. Seal returns the
// ciphertext and, for authenticated modes, the detached auth tag.
type sealer interface {
	Seal(iv, plaintext []byte) (ciphertext, tag []byte, err error)
	Open(iv, ciphertext, tag []byte) ([]byte, error)
}

// aeadSealer detaches the tag from an AEAD's combined output.
type aeadSealer struct {
	aead cipher.AEAD
}

func (s aeadSealer) Seal(iv, plaintext []byte) ([]byte, []byte, error) {
	out := s.aead.Seal(nil, iv, plaintext, nil)
	split := len(out) - s.aead.Overhead()
	return out[:split], out[split:], nil
}

func (s aeadSealer) Open(iv, ciphertext, tag []byte) ([]byte, error) {
	if len(tag) != s.aead.Overhead() {
		return nil, ErrMalformedTuple
	}
	combined := make([]byte, 0, len(ciphertext)+len(tag))
	combined = append(append(combined, ciphertext...), tag...)
	return s.aead.Open(nil, iv, combined, nil)
}

// cbcSealer implements AES-CBC with PKCS#7 padding. It has no tag.
type cbcSealer struct {
	block cipher.Block
}

func (s cbcSealer) Seal(iv, plaintext []byte) ([]byte, []byte, error) {
	padded := pkcs7Pad(plaintext, s.block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, iv).CryptBlocks(out, padded)
	return out, nil, nil
}

func (s cbcSealer) Open(iv, ciphertext, _ []byte) ([]byte, error) {
	bs := s.block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, ErrCiphertextShort
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, bs)
}

func pkcs7Pad(data []byte, bs int) []byte {
	n := bs - len(data)%bs
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, bs int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > bs || n > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-n], nil
}

// Encrypt is the two-way symmetric encryption transformation.
//
// Every lock draws a fresh random IV. The stored form is the tuple
//
//	[ciphertext_b64, iv_b64, tag_b64?, type_metadata_json?]
//
// The tag slot is "" when the algorithm has no tag but type metadata
// follows. Encrypt locks and unlocks without bound arguments.
type Encrypt struct {
	id     string
	algo   EncryptAlgo
	ivSize int
	sealer sealer
}

// EncryptOption configures an Encrypt.
type EncryptOption func(*Encrypt)

// WithEncryptAlgorithm selects the algorithm. Defaults to aes-256-gcm.
func WithEncryptAlgorithm(algo EncryptAlgo) EncryptOption {
	return func(e *Encrypt) {
		e.algo = algo
	}
}

// WithEncryptID overrides the transformation ID. Defaults to "encrypt".
func WithEncryptID(id string) EncryptOption {
	return func(e *Encrypt) {
		e.id = id
	}
}

// WithIVSize sets the IV length for AES-GCM. CBC requires 16 and the
// ChaCha variants use their fixed nonce sizes.
func WithIVSize(n int) EncryptOption {
	return func(e *Encrypt) {
		e.ivSize = n
	}
}

// NewEncrypt creates an Encrypt transformation with the given secret key.
func NewEncrypt(key []byte, opts ...EncryptOption) (*Encrypt, error) {
	e := &Encrypt{id: "encrypt", algo: EncryptAES256GCM}
	for _, opt := range opts {
		opt(e)
	}

	want, ok := encryptKeySizes[e.algo]
	if !ok {
		return nil, newConfigError(ErrInvalidAlgorithm, "", "", string(e.algo))
	}
	if len(key) != want {
		return nil, &ConfigError{
			Err:       ErrInvalidKey,
			Algorithm: fmt.Sprintf("%s: must be %d bytes, got %d", e.algo, want, len(key)),
		}
	}

	switch e.algo {
	case EncryptChaCha20Poly1305, EncryptXChaCha20Poly1305:
		newAEAD, size := chacha20poly1305.New, chacha20poly1305.NonceSize
		if e.algo == EncryptXChaCha20Poly1305 {
			newAEAD, size = chacha20poly1305.NewX, chacha20poly1305.NonceSizeX
		}
		if e.ivSize != 0 && e.ivSize != size {
			return nil, newConfigError(ErrInvalidIVSize, "", "", fmt.Sprintf("%s: %d", e.algo, e.ivSize))
		}
		aead, err := newAEAD(key)
		if err != nil {
			return nil, newConfigError(ErrInvalidKey, "", "", string(e.algo))
		}
		e.ivSize = size
		e.sealer = aeadSealer{aead: aead}
		return e, nil
	}

	if e.ivSize == 0 {
		e.ivSize = DefaultIVSize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, newConfigError(ErrInvalidKey, "", "", string(e.algo))
	}
	if e.algo == EncryptAES256CBC {
		if e.ivSize != aes.BlockSize {
			return nil, newConfigError(ErrInvalidIVSize, "", "", fmt.Sprintf("%s: %d", e.algo, e.ivSize))
		}
		e.sealer = cbcSealer{block: block}
		return e, nil
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, e.ivSize)
	if err != nil {
		return nil, newConfigError(ErrInvalidIVSize, "", "", fmt.Sprintf("%s: %d", e.algo, e.ivSize))
	}
	e.sealer = aeadSealer{aead: gcm}
	return e, nil
}

// ID implements Transformation.
func (e *Encrypt) ID() string { return e.id }

// Algorithm returns the encryption algorithm.
func (e *Encrypt) Algorithm() EncryptAlgo { return e.algo }

// AutoLock implements AutoLocker.
func (e *Encrypt) AutoLock() bool { return true }

// AutoUnlock implements AutoUnlocker.
func (e *Encrypt) AutoUnlock() bool { return true }

// Lock implements Locker. A nil value passes through.
func (e *Encrypt) Lock(_ *Cell, _, value any, _ ...any) (any, error) {
	if value == nil {
		return nil, nil
	}
	plaintext, meta, err := encodeTyped(value)
	if err != nil {
		return nil, transformFailure(ErrEncrypt, err)
	}

	iv := make([]byte, e.ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, transformFailure(ErrEncrypt, err)
	}
	ciphertext, tag, err := e.sealer.Seal(iv, plaintext)
	if err != nil {
		return nil, transformFailure(ErrEncrypt, err)
	}

	enc := base64.StdEncoding
	tuple := []any{enc.EncodeToString(ciphertext), enc.EncodeToString(iv)}
	if tag != nil || meta != "" {
		t := ""
		if tag != nil {
			t = enc.EncodeToString(tag)
		}
		tuple = append(tuple, t)
	}
	if meta != "" {
		tuple = append(tuple, meta)
	}
	return tuple, nil
}

// Unlock implements Unlocker. Malformed tuples, wrong keys and tag
// mismatches fail with ErrDecrypt.
func (e *Encrypt) Unlock(_ *Cell, stored any, _ ...any) (any, error) {
	if stored == nil {
		return nil, nil
	}
	parts, err := parseTuple(stored)
	if err != nil {
		return nil, transformFailure(ErrDecrypt, err)
	}

	enc := base64.StdEncoding
	ciphertext, err := enc.DecodeString(parts[0])
	if err != nil {
		return nil, transformFailure(ErrDecrypt, err)
	}
	iv, err := enc.DecodeString(parts[1])
	if err != nil {
		return nil, transformFailure(ErrDecrypt, err)
	}
	if len(iv) != e.ivSize {
		return nil, transformFailure(ErrDecrypt, fmt.Errorf("iv is %d bytes, want %d", len(iv), e.ivSize))
	}
	var tag []byte
	if len(parts) > 2 && parts[2] != "" {
		if tag, err = enc.DecodeString(parts[2]); err != nil {
			return nil, transformFailure(ErrDecrypt, err)
		}
	}
	meta := ""
	if len(parts) > 3 {
		meta = parts[3]
	}

	plaintext, err := e.sealer.Open(iv, ciphertext, tag)
	if err != nil {
		return nil, transformFailure(ErrDecrypt, err)
	}
	v, err := decodeTyped(plaintext, meta)
	if err != nil {
		return nil, transformFailure(ErrDecrypt, err)
	}
	return v, nil
}

// parseTuple accepts the tuple as any slice of strings, as decoded by any codec.
func parseTuple(stored any) ([]string, error) {
	items, ok := asSlice(stored)
	if !ok || len(items) < 2 || len(items) > 4 {
		return nil, ErrMalformedTuple
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, ErrMalformedTuple
		}
		out[i] = s
	}
	return out, nil
}

// GenerateKey returns a random key of the size algo requires.
func GenerateKey(algo EncryptAlgo) ([]byte, error) {
	n := KeySize(algo)
	if n == 0 {
		return nil, newConfigError(ErrInvalidAlgorithm, "", "", string(algo))
	}
	key := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
