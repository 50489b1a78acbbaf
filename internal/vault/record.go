package vault

import (
	"time"

	"github.com/zkvault/zkvault/internal/boundary"
)

// EncryptedItem is the persisted form of one secret record. Ciphertext and
// nonce are opaque to every component except a session holding the right
// vault key; metadata is plaintext constrained by the boundary validator.
type EncryptedItem struct {
	ID         string              `json:"id"`
	SecretType boundary.SecretType `json:"secretType"`
	Ciphertext string              `json:"ciphertext"` // base64
	Nonce      string              `json:"nonce"`      // base64
	Metadata   boundary.Metadata   `json:"metadata"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}
