// Package sdconfig holds the tunables threaded through every layer of the
// diff engine instead of living as package-level globals: chunk size
// bounds, the rolling-hash polynomial, and the archive layer's hash
// algorithm choice.
package sdconfig

import (
	"fmt"
	"os"
	"strconv"
)

// Chunking controls the content-defined chunker and the narrower, which
// shares its MaxLen as a scan bound.
type Chunking struct {
	// SampleSize is the fixed width, in bytes, of one sample/record.
	SampleSize int

	// MinLen is the minimum chunk length in samples; never undercut except
	// when EOF forces a shorter final chunk.
	MinLen int

	// MaxLen is the maximum chunk length in samples; forces a split even
	// absent a hash-driven boundary. Also bounds every narrowing scan.
	MaxLen int

	// Mask is ANDed against the windowed hash to decide chunk boundaries;
	// 0xFF yields an average chunk length of roughly 256 samples.
	Mask uint32

	// Window is the rolling-hash window size in bytes.
	Window int

	// BufSamples is how many samples the chunker and narrower read from the
	// stream per Fetch call.
	BufSamples int

	// Polynomial is the degree-32 irreducible-over-GF(2) polynomial used by
	// both the chunker's rolling hash and its plain per-chunk hash. The low
	// 32 bits encode x^31..x^0; x^32 is implicit. 0x8D encodes
	// x^32 + x^7 + x^3 + x^2 + 1, the same polynomial the reference
	// implementation uses (documented there as the value 141). It lives on
	// Chunking, not Config, so chunk.Split and narrow.Narrow can take the
	// narrower Chunking value without needing the whole Config.
	Polynomial uint32
}

// Config is the full set of tunables for one diff run.
type Config struct {
	Chunking

	// HashAlgo selects the content-addressing hash used by the archive
	// layer: "sha256" or "blake3".
	HashAlgo string
}

const (
	defaultMaxLen     = 10_000
	defaultMinLen     = 10
	defaultBufBytes   = 8192
	defaultMask       = 0xFF
	defaultWindow     = 64
	defaultPolynomial = 0x8D
)

// DefaultConfig returns the frozen constants the engine was designed around,
// for a stream whose sample width is sampleSize bytes.
func DefaultConfig(sampleSize int) *Config {
	if sampleSize <= 0 {
		sampleSize = 1
	}
	return &Config{
		Chunking: Chunking{
			SampleSize: sampleSize,
			MinLen:     defaultMinLen,
			MaxLen:     defaultMaxLen,
			Mask:       defaultMask,
			Window:     defaultWindow,
			BufSamples: defaultBufBytes / sampleSize,
			Polynomial: defaultPolynomial,
		},
		HashAlgo: "sha256",
	}
}

// LoadFromEnv overlays SAMPLDIFF_* environment variables onto cfg and
// returns it, mirroring the reference config package's env-overlay style.
func LoadFromEnv(cfg *Config) *Config {
	if v := os.Getenv("SAMPLDIFF_MIN_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinLen = n
		}
	}
	if v := os.Getenv("SAMPLDIFF_MAX_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxLen = n
		}
	}
	if v := os.Getenv("SAMPLDIFF_MASK"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 32); err == nil {
			cfg.Mask = uint32(n)
		}
	}
	if v := os.Getenv("SAMPLDIFF_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Window = n
		}
	}
	if v := os.Getenv("SAMPLDIFF_HASH_ALGO"); v != "" {
		cfg.HashAlgo = v
	}
	if v := os.Getenv("SAMPLDIFF_POLYNOMIAL"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 32); err == nil {
			cfg.Polynomial = uint32(n)
		}
	}
	return cfg
}

// Validate checks the invariants the rest of the engine assumes hold.
func (c *Config) Validate() error {
	if c.SampleSize <= 0 {
		return fmt.Errorf("sample size must be positive, got %d", c.SampleSize)
	}
	if c.MinLen <= 0 {
		return fmt.Errorf("min chunk length must be positive, got %d", c.MinLen)
	}
	if c.MaxLen < c.MinLen {
		return fmt.Errorf("max chunk length (%d) cannot be less than min (%d)", c.MaxLen, c.MinLen)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rolling hash window must be positive, got %d", c.Window)
	}
	if c.BufSamples <= 0 {
		return fmt.Errorf("buffer sample count must be positive, got %d", c.BufSamples)
	}
	if c.HashAlgo != "sha256" && c.HashAlgo != "blake3" {
		return fmt.Errorf("invalid hash algorithm: %s (must be 'sha256' or 'blake3')", c.HashAlgo)
	}
	if c.Polynomial == 0 {
		return fmt.Errorf("rolling hash polynomial must be non-zero")
	}
	return nil
}
