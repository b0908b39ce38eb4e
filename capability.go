package strata

// HashAlgo represents a supported hashing algorithm.
// Use these constants in struct tags: `strata.hash:"sha256"`
type HashAlgo string

const (
	// HashSHA256 digests with SHA-256. This is the default.
	HashSHA256 HashAlgo = "sha256"

	// HashSHA512 digests with SHA-512.
	HashSHA512 HashAlgo = "sha512"

	// HashSHA3_256 digests with SHA3-256.
	HashSHA3_256 HashAlgo = "sha3-256"

	// HashSHA3_512 digests with SHA3-512.
	HashSHA3_512 HashAlgo = "sha3-512"

	// HashBLAKE2b256 digests with BLAKE2b-256.
	HashBLAKE2b256 HashAlgo = "blake2b-256"

	// HashBLAKE2b512 digests with BLAKE2b-512.
	HashBLAKE2b512 HashAlgo = "blake2b-512"

	// HashArgon2 derives the digest with Argon2id (slow, for passwords).
	HashArgon2 HashAlgo = "argon2id"

	// HashBcrypt stores a bcrypt hash (slow, for passwords).
	HashBcrypt HashAlgo = "bcrypt"
)

// EncryptAlgo represents a supported symmetric encryption algorithm.
// Use these constants in struct tags: `strata.encrypt:"aes-256-gcm"`
type EncryptAlgo string

const (
	// EncryptAES128GCM uses AES-128 in GCM mode.
	EncryptAES128GCM EncryptAlgo = "aes-128-gcm"

	// EncryptAES192GCM uses AES-192 in GCM mode.
	EncryptAES192GCM EncryptAlgo = "aes-192-gcm"

	// EncryptAES256GCM uses AES-256 in GCM mode. This is the default.
	EncryptAES256GCM EncryptAlgo = "aes-256-gcm"

	// EncryptAES256CBC uses AES-256 in CBC mode with PKCS#7 padding.
	// It is not authenticated and produces no auth tag.
	EncryptAES256CBC EncryptAlgo = "aes-256-cbc"

	// EncryptChaCha20Poly1305 uses ChaCha20-Poly1305 with a 12 byte nonce.
	EncryptChaCha20Poly1305 EncryptAlgo = "chacha20-poly1305"

	// EncryptXChaCha20Poly1305 uses XChaCha20-Poly1305 with a 24 byte nonce.
	EncryptXChaCha20Poly1305 EncryptAlgo = "xchacha20-poly1305"
)

// validHashAlgos contains all valid hash algorithms for tag validation.
var validHashAlgos = map[HashAlgo]bool{
	HashSHA256:     true,
	HashSHA512:     true,
	HashSHA3_256:   true,
	HashSHA3_512:   true,
	HashBLAKE2b256: true,
	HashBLAKE2b512: true,
	HashArgon2:     true,
	HashBcrypt:     true,
}

// encryptKeySizes maps each encryption algorithm to its key length in bytes.
var encryptKeySizes = map[EncryptAlgo]int{
	EncryptAES128GCM:         16,
	EncryptAES192GCM:         24,
	EncryptAES256GCM:         32,
	EncryptAES256CBC:         32,
	EncryptChaCha20Poly1305:  32,
	EncryptXChaCha20Poly1305: 32,
}

// validMaskTypes contains all valid mask types for tag validation.
var validMaskTypes = map[MaskType]bool{
	MaskSSN:   true,
	MaskEmail: true,
	MaskPhone: true,
	MaskCard:  true,
	MaskIP:    true,
	MaskName:  true,
}

// IsValidHashAlgo returns true if the algorithm is a known hash algorithm.
func IsValidHashAlgo(algo HashAlgo) bool {
	return validHashAlgos[algo]
}

// IsValidEncryptAlgo returns true if the algorithm is a known encryption algorithm.
func IsValidEncryptAlgo(algo EncryptAlgo) bool {
	_, ok := encryptKeySizes[algo]
	return ok
}

// IsValidMaskType returns true if the type is a known mask type.
func IsValidMaskType(mt MaskType) bool {
	return validMaskTypes[mt]
}

// KeySize returns the key length in bytes required by algo, or 0 if unknown.
func KeySize(algo EncryptAlgo) int {
	return encryptKeySizes[algo]
}
