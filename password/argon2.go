package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// Config holds the argon2id cost parameters. Higher costs make offline
// cracking proportionally more expensive; hashing latency is the price
// the sign-in path pays.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies passwords. Safe for concurrent use.
type Hasher struct {
	config Config
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

// NewHasher validates cfg against the package minimums and returns a
// ready hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Memory < minMemoryKB {
		return nil, fmt.Errorf("argon2 memory must be at least %d KB", minMemoryKB)
	}
	if cfg.Time < minTimeCost {
		return nil, errors.New("argon2 time cost must be at least 1")
	}
	if cfg.Parallelism < minParallelism {
		return nil, errors.New("argon2 parallelism must be at least 1")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, fmt.Errorf("argon2 salt length must be at least %d bytes", minSaltLength)
	}
	if cfg.KeyLength < minKeyLength {
		return nil, fmt.Errorf("argon2 key length must be at least %d bytes", minKeyLength)
	}

	return &Hasher{config: cfg}, nil
}

// Hash derives an argon2id hash of password with a fresh random salt and
// returns it in PHC string format. Password bytes are used exactly as
// provided, with no Unicode normalization.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

// Verify recomputes the hash with the parameters embedded in encodedHash
// and compares in constant time.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with weaker
// parameters than the hasher's current configuration. Callers rehash on
// the next successful login.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	if h.config.Memory > parsed.memory {
		return true, nil
	}
	if h.config.Time > parsed.time {
		return true, nil
	}
	if h.config.Parallelism > parsed.parallelism {
		return true, nil
	}
	if h.config.KeyLength != parsed.keyLength {
		return true, nil
	}

	return false, nil
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}

	hash, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(hash) == 0 {
		return nil, errors.New("invalid hash length")
	}

	return &parsedPHC{
		memory:      params.memory,
		time:        params.time,
		parallelism: params.parallelism,
		salt:        salt,
		hash:        hash,
		keyLength:   uint32(len(hash)),
	}, nil
}

type parsedParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func parseParams(part string) (*parsedParams, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.New("invalid parameter format")
	}

	var params parsedParams
	var memorySet, timeSet, parallelismSet bool

	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid parameter entry")
		}

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, errors.New("invalid memory parameter")
			}
			params.memory = uint32(v)
			memorySet = true
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, errors.New("invalid time parameter")
			}
			params.time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, errors.New("invalid parallelism parameter")
			}
			params.parallelism = uint8(v)
			parallelismSet = true
		default:
			return nil, errors.New("unknown parameter")
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return nil, errors.New("missing argon2 parameter")
	}

	return &params, nil
}
