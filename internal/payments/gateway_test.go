package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"courtly/internal/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signWebhookData mirrors the provider's webhook signing so tests can
// build verifiable envelopes.
func signWebhookData(checksumKey string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	gw := NewHTTPGateway(config.GatewayConfig{ChecksumKey: "test-checksum-key"})

	// Envelopes are assembled by hand: json.Marshal would compact the
	// data bytes and defeat the exact-bytes signature checks.
	buildEnvelope := func(data []byte, signature string) []byte {
		return []byte(`{"code":"00","desc":"success","data":` + string(data) + `,"signature":"` + signature + `"}`)
	}

	t.Run("valid signature parses the payload", func(t *testing.T) {
		data := []byte(`{"orderCode":1234,"status":"PAID","amount":150000,"reference":"txn-9","transactionDateTime":"2025-01-10T09:15:00Z"}`)
		raw := buildEnvelope(data, signWebhookData("test-checksum-key", data))

		payload, err := gw.VerifyWebhook(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(1234), payload.OrderCode)
		assert.Equal(t, OrderPaid, payload.Status)
		assert.Equal(t, "txn-9", payload.TransactionRef)
	})

	t.Run("signature is computed over the exact raw bytes", func(t *testing.T) {
		// Same JSON value, different byte layout: the signature of one
		// must not verify the other.
		compact := []byte(`{"orderCode":1234,"status":"PAID"}`)
		spaced := []byte(`{"orderCode": 1234, "status": "PAID"}`)
		raw := buildEnvelope(spaced, signWebhookData("test-checksum-key", compact))

		_, err := gw.VerifyWebhook(raw)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("forged signature is rejected", func(t *testing.T) {
		data := []byte(`{"orderCode":1234,"status":"PAID"}`)
		raw := buildEnvelope(data, signWebhookData("wrong-key", data))

		_, err := gw.VerifyWebhook(raw)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		_, err := gw.VerifyWebhook([]byte(`{"data":{"orderCode":1}}`))
		assert.Error(t, err)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		_, err := gw.VerifyWebhook([]byte(`not json at all`))
		assert.Error(t, err)
	})
}
