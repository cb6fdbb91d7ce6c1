package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Vault encrypts gateway credentials at rest with AES-256-CBC. Each key in the
// ring is addressed by an identifier; new ciphertexts are written under the
// active key, old ciphertexts carry the id they were written under and keep
// decrypting as long as that id stays in the ring. There is no automatic
// re-encryption on rotation.
type Vault struct {
	keys   map[string][]byte // key id -> derived 256-bit key
	active string
}

var (
	ErrCorruptCiphertext = errors.New("vault: corrupt ciphertext")
	ErrUnknownKeyID      = errors.New("vault: unknown key id")
)

const (
	kdfIterations = 4096
	kdfSalt       = "noir-payments.credential-vault.v1"
)

// New builds a vault from id->secret pairs. 256-bit cipher keys are derived
// from the secrets with PBKDF2-SHA256 so operators can configure arbitrary
// strings.
func New(secrets map[string]string, activeKeyID string) (*Vault, error) {
	if len(secrets) == 0 {
		return nil, errors.New("vault: no keys configured")
	}
	if _, ok := secrets[activeKeyID]; !ok {
		return nil, fmt.Errorf("vault: active key %q not in key ring", activeKeyID)
	}
	keys := make(map[string][]byte, len(secrets))
	for id, secret := range secrets {
		if id == "" || secret == "" {
			return nil, errors.New("vault: empty key id or secret")
		}
		keys[id] = pbkdf2.Key([]byte(secret), []byte(kdfSalt), kdfIterations, 32, sha256.New)
	}
	return &Vault{keys: keys, active: activeKeyID}, nil
}

// FromEnv reads VAULT_KEYS ("id1:secret1,id2:secret2") and VAULT_ACTIVE_KEY.
// A misconfigured vault is a startup error; payments must never run with
// plaintext credential storage as a fallback.
func FromEnv() (*Vault, error) {
	raw := os.Getenv("VAULT_KEYS")
	if raw == "" {
		return nil, errors.New("vault: VAULT_KEYS is required")
	}
	secrets := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		id, secret, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("vault: malformed VAULT_KEYS entry %q", pair)
		}
		secrets[id] = secret
	}
	active := os.Getenv("VAULT_ACTIVE_KEY")
	if active == "" {
		return nil, errors.New("vault: VAULT_ACTIVE_KEY is required")
	}
	return New(secrets, active)
}

func (v *Vault) ActiveKeyID() string { return v.active }

// Encrypt returns "keyid:base64(iv || ciphertext)". A fresh random IV is
// generated per call, so encrypting the same plaintext twice yields different
// ciphertexts.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	key := v.keys[v.active]

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return v.active + ":" + base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt splits the stored blob into key id, IV and ciphertext. Any
// structural problem surfaces as ErrCorruptCiphertext; credentials are never
// silently treated as absent.
func (v *Vault) Decrypt(stored string) (string, error) {
	keyID, blob, ok := strings.Cut(stored, ":")
	if !ok || keyID == "" || blob == "" {
		return "", ErrCorruptCiphertext
	}
	key, ok := v.keys[keyID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKeyID, keyID)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptCiphertext, err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", ErrCorruptCiphertext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	iv, ct := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	pad := make([]byte, n)
	for i := range pad {
		pad[i] = byte(n)
	}
	return append(b, pad...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrCorruptCiphertext
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrCorruptCiphertext
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrCorruptCiphertext
		}
	}
	return b[:len(b)-n], nil
}
