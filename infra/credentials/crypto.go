package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// KeyEnv overrides the key file with a base64-encoded 32-byte key.
	// Meant for hosted deployments where a file on disk is not wanted.
	KeyEnv = "FLEETD_CONFIG_KEY"

	algAESGCM = "aes-256-gcm"
	keySize   = 32

	keyFilePerm = 0o600
	keyDirPerm  = 0o750
)

// envelope is the on-disk shape of an encrypted value. The algorithm id is
// stored alongside the ciphertext so the format can evolve without guessing.
type envelope struct {
	Alg   string `json:"alg"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// loadKey resolves the encryption key: environment override first, then the
// key file, generating and persisting a fresh key on first use.
func loadKey(path string) ([]byte, error) {
	if raw := os.Getenv(KeyEnv); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", KeyEnv, err)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("%s must decode to %d bytes, got %d", KeyEnv, keySize, len(key))
		}
		return key, nil
	}

	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != keySize {
			return nil, fmt.Errorf("key file %s holds %d bytes, want %d", path, len(key), keySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), keyDirPerm); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, key, keyFilePerm); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	return key, nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	env := envelope{
		Alg:   algAESGCM,
		Nonce: nonce,
		Data:  gcm.Seal(nil, nonce, plaintext, nil),
	}
	return json.Marshal(env)
}

func open(key, blob []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
	}
	if env.Alg != algAESGCM {
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrConfigCorrupt, env.Alg)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing gcm: %w", err)
	}
	if len(env.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrConfigCorrupt, len(env.Nonce))
	}
	plaintext, err := gcm.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
	}
	return plaintext, nil
}
