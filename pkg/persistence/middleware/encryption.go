package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
)

// EnvelopeKey holds the ciphertext inside the stored ledger's step results.
const EnvelopeKey = "__encrypted__"

// ErrMissingEnvelope is returned when a stored ledger was not written encrypted.
var ErrMissingEnvelope = errors.New("ledger is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new data. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried when decryption with ActiveKey fails,
	// so keys can be rotated without rewriting stored ledgers.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.LedgerStore
	config EncryptionConfig
}

// NewEncryptionMiddleware encrypts the conversation context and step results
// of every ledger with AES-GCM. Step phases, names and timestamps stay in the
// clear so operators can inspect saga progress without the key.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.LedgerStore) ports.LedgerStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

type sealedPayload struct {
	Context     *domain.ExecutionContext `json:"context"`
	StepResults map[string]any           `json:"step_results"`
}

func (m *encryptionMiddleware) Save(ctx context.Context, ledger *domain.TransactionLedger) error {
	plainText, err := json.Marshal(sealedPayload{Context: ledger.Context, StepResults: ledger.StepResults})
	if err != nil {
		return fmt.Errorf("failed to marshal ledger payload: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt ledger: %w", err)
	}

	envelope := ledger.Clone()
	envelope.Context = nil
	envelope.StepResults = map[string]any{
		EnvelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.TransactionLedger, error) {
	envelope, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.StepResults[EnvelopeKey].(string)
	if !ok {
		return nil, ErrMissingEnvelope
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt ledger: %w", err)
	}

	var payload sealedPayload
	if err := json.Unmarshal(plainText, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted ledger: %w", err)
	}

	envelope.Context = payload.Context
	envelope.StepResults = payload.StepResults
	if envelope.StepResults == nil {
		envelope.StepResults = make(map[string]any)
	}
	return envelope, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{activeKey}, fallbackKeys...) {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
