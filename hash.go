package strata

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// DefaultSaltSize is the salt length in bytes generated by Hash.
const DefaultSaltSize = 16

// Argon2Params configures Argon2id derivation.
type Argon2Params struct {
	Time    uint32 // Number of iterations
	Memory  uint32 // Memory usage in KiB
	Threads uint8  // Parallelism factor
	KeyLen  uint32 // Output key length
}

// DefaultArgon2Params returns recommended Argon2id parameters.
// Based on OWASP recommendations for password hashing.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  64 * 1024, // 64 MiB
		Threads: 4,
		KeyLen:  32,
	}
}

// BcryptCost represents the bcrypt cost factor.
type BcryptCost int

// Bcrypt cost constants.
const (
	BcryptMinCost     BcryptCost = BcryptCost(bcrypt.MinCost)
	BcryptDefaultCost BcryptCost = BcryptCost(bcrypt.DefaultCost)
	BcryptMaxCost     BcryptCost = BcryptCost(bcrypt.MaxCost)
)

// digester computes and verifies salted digests.
type digester interface {
	Digest(salt, payload []byte) ([]byte, error)
	Verify(salt, payload, digest []byte) (bool, error)
}

// streamDigester hashes salt || payload with a stdlib-shaped hash.
type streamDigester struct {
	newHash func() hash.Hash
}

func (d streamDigester) Digest(salt, payload []byte) ([]byte, error) {
	h := d.newHash()
	h.Write(salt)
	h.Write(payload)
	return h.Sum(nil), nil
}

func (d streamDigester) Verify(salt, payload, digest []byte) (bool, error) {
	sum, err := d.Digest(salt, payload)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(sum, digest) == 1, nil
}

type argon2Digester struct {
	params Argon2Params
}

func (d argon2Digester) Digest(salt, payload []byte) ([]byte, error) {
	p := d.params
	return argon2.IDKey(payload, salt, p.Time, p.Memory, p.Threads, p.KeyLen), nil
}

func (d argon2Digester) Verify(salt, payload, digest []byte) (bool, error) {
	sum, _ := d.Digest(salt, payload)
	return subtle.ConstantTimeCompare(sum, digest) == 1, nil
}

// bcryptDigester pre-hashes salt || payload with SHA-256 so inputs of any
// length fit bcrypt's 72 byte limit.
type bcryptDigester struct {
	cost int
}

func (d bcryptDigester) prehash(salt, payload []byte) []byte {
	sum := sha256.Sum256(append(append([]byte{}, salt...), payload...))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func (d bcryptDigester) Digest(salt, payload []byte) ([]byte, error) {
	return bcrypt.GenerateFromPassword(d.prehash(salt, payload), d.cost)
}

func (d bcryptDigester) Verify(salt, payload, digest []byte) (bool, error) {
	err := bcrypt.CompareHashAndPassword(digest, d.prehash(salt, payload))
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	return err == nil, err
}

func blake2bDigester(size int) digester {
	return streamDigester{newHash: func() hash.Hash {
		h, _ := blake2b.New(size, nil)
		return h
	}}
}

// Hash is the one-way transformation. On first lock for a field it stores a
// random salt in its metadata cell; the stored value is the base64 digest of
// salt || JSON(value). Hash locks without bound arguments.
type Hash struct {
	id       string
	algo     HashAlgo
	saltSize int
	argon2   Argon2Params
	cost     BcryptCost
	digester digester
}

// HashOption configures a Hash.
type HashOption func(*Hash)

// WithHashAlgorithm selects the digest algorithm. Defaults to sha256.
func WithHashAlgorithm(algo HashAlgo) HashOption {
	return func(h *Hash) {
		h.algo = algo
	}
}

// WithHashID overrides the transformation ID. Defaults to "hash".
func WithHashID(id string) HashOption {
	return func(h *Hash) {
		h.id = id
	}
}

// WithSaltSize sets the salt length in bytes.
func WithSaltSize(n int) HashOption {
	return func(h *Hash) {
		h.saltSize = n
	}
}

// WithArgon2Params sets the Argon2id parameters used by HashArgon2.
func WithArgon2Params(p Argon2Params) HashOption {
	return func(h *Hash) {
		h.argon2 = p
	}
}

// WithBcryptCost sets the cost used by HashBcrypt.
func WithBcryptCost(cost BcryptCost) HashOption {
	return func(h *Hash) {
		h.cost = cost
	}
}

// NewHash creates a Hash transformation.
func NewHash(opts ...HashOption) (*Hash, error) {
	h := &Hash{
		id:       "hash",
		algo:     HashSHA256,
		saltSize: DefaultSaltSize,
		argon2:   DefaultArgon2Params(),
		cost:     BcryptDefaultCost,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.saltSize <= 0 {
		return nil, newConfigError(ErrInvalidAlgorithm, "", "", fmt.Sprintf("salt size %d", h.saltSize))
	}

	switch h.algo {
	case HashSHA256:
		h.digester = streamDigester{newHash: sha256.New}
	case HashSHA512:
		h.digester = streamDigester{newHash: sha512.New}
	case HashSHA3_256:
		h.digester = streamDigester{newHash: sha3.New256}
	case HashSHA3_512:
		h.digester = streamDigester{newHash: sha3.New512}
	case HashBLAKE2b256:
		h.digester = blake2bDigester(blake2b.Size256)
	case HashBLAKE2b512:
		h.digester = blake2bDigester(blake2b.Size)
	case HashArgon2:
		h.digester = argon2Digester{params: h.argon2}
	case HashBcrypt:
		if h.cost < BcryptMinCost || h.cost > BcryptMaxCost {
			return nil, newConfigError(ErrInvalidAlgorithm, "", "", fmt.Sprintf("bcrypt cost %d", h.cost))
		}
		h.digester = bcryptDigester{cost: int(h.cost)}
	default:
		return nil, newConfigError(ErrInvalidAlgorithm, "", "", string(h.algo))
	}
	return h, nil
}

// ID implements Transformation.
func (h *Hash) ID() string { return h.id }

// Algorithm returns the digest algorithm.
func (h *Hash) Algorithm() HashAlgo { return h.algo }

// AutoLock implements AutoLocker.
func (h *Hash) AutoLock() bool { return true }

// Lock implements Locker. A nil value passes through unhashed.
func (h *Hash) Lock(c *Cell, _, value any, _ ...any) (any, error) {
	if value == nil {
		return nil, nil
	}
	salt, err := h.salt(c, true)
	if err != nil {
		return nil, transformFailure(ErrHash, err)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, transformFailure(ErrHash, err)
	}
	sum, err := h.digester.Digest(salt, payload)
	if err != nil {
		return nil, transformFailure(ErrHash, err)
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

// Test implements Tester by recomputing the digest with the stored salt.
// A field never locked, or a cell without salt, never matches.
func (h *Hash) Test(c *Cell, stored, candidate any, _ ...any) (bool, error) {
	if stored == nil {
		return candidate == nil, nil
	}
	encoded, ok := stored.(string)
	if !ok {
		return false, nil
	}
	digest, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false, nil
	}
	salt, err := h.salt(c, false)
	if err != nil || salt == nil {
		return false, err
	}
	payload, err := json.Marshal(candidate)
	if err != nil {
		return false, transformFailure(ErrHash, err)
	}
	return h.digester.Verify(salt, payload, digest)
}

// salt reads the cell's salt, creating one when create is set and none exists.
func (h *Hash) salt(c *Cell, create bool) ([]byte, error) {
	if s, ok := c.Value().(string); ok && s != "" {
		return base64.StdEncoding.DecodeString(s)
	}
	if !create {
		return nil, nil
	}
	salt := make([]byte, h.saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	c.Set(base64.StdEncoding.EncodeToString(salt))
	return salt, nil
}
