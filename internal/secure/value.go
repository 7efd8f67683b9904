// Package secure keeps secret values encrypted while they sit in process
// memory. It wraps memguard enclaves: plaintext exists only transiently
// while a caller reads the value.
package secure

import "github.com/awnumar/memguard"

// Value holds one secret string at rest in an encrypted enclave. The
// enclave encrypts with XSalsa20Poly1305 and mlocks its pages where the
// platform allows, so a swapped-out heap never contains plaintext.
type Value struct {
	enclave *memguard.Enclave
}

// NewValue seals a secret string into a protected enclave. The input string
// itself is beyond our control (Go strings are immutable), but everything
// stored long-term is encrypted. Memguard rejects zero-length buffers, so an
// empty secret is represented by a nil enclave.
func NewValue(secret string) *Value {
	if secret == "" {
		return &Value{}
	}
	return &Value{enclave: memguard.NewEnclave([]byte(secret))}
}

// Reveal decrypts and returns the secret. The locked buffer used for
// decryption is wiped before returning.
func (v *Value) Reveal() (string, error) {
	if v.enclave == nil {
		return "", nil
	}
	buf, err := v.enclave.Open()
	if err != nil {
		return "", err
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// Purge wipes all memguard-managed memory. Call in a defer in main.
func Purge() {
	memguard.Purge()
}
