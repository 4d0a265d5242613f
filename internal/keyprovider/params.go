package keyprovider

import "fmt"

// Argon2Params mirrors the teacher's kdf.Parameters: Argon2id cost knobs
// plus the derived key and salt lengths. Grounded on internal/kdf's
// Deriver lineage (deriver.go/parameters.go), not the package-level
// function variant (kdf.go), which this module folds into one provider.
type Argon2Params struct {
	MemoryMB    uint32
	Iterations  uint32
	Parallelism uint8
	KeyBytes    uint32
	SaltBytes   uint32
}

// DefaultArgon2Params matches OWASP's Argon2id guidance, the same values
// the teacher's DefaultParameters used.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryMB:    64,
		Iterations:  4,
		Parallelism: 4,
		KeyBytes:    32,
		SaltBytes:   32,
	}
}

func minimumArgon2Params() Argon2Params {
	return Argon2Params{MemoryMB: 8, Iterations: 1, Parallelism: 1, KeyBytes: 16, SaltBytes: 16}
}

// Validate enforces the same floor the teacher's Parameters.Validate
// does, so a caller cannot configure Argon2id down to an unsafe cost.
func (p Argon2Params) Validate() error {
	min := minimumArgon2Params()
	if p.MemoryMB < min.MemoryMB {
		return fmt.Errorf("keyprovider: memory must be at least %d MB", min.MemoryMB)
	}
	if p.Iterations < min.Iterations {
		return fmt.Errorf("keyprovider: iterations must be at least %d", min.Iterations)
	}
	if p.Parallelism < min.Parallelism {
		return fmt.Errorf("keyprovider: parallelism must be at least %d", min.Parallelism)
	}
	if p.KeyBytes < min.KeyBytes {
		return fmt.Errorf("keyprovider: key length must be at least %d bytes", min.KeyBytes)
	}
	if p.SaltBytes < min.SaltBytes {
		return fmt.Errorf("keyprovider: salt length must be at least %d bytes", min.SaltBytes)
	}
	return nil
}
