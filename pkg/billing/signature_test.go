package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureRoundTrip(t *testing.T) {
	payload := []byte(`{"meta":{"event_name":"subscription_created"},"data":{"id":"1"}}`)
	secret := "whsec_test_secret"

	sig := Sign(payload, secret)
	require.NotEmpty(t, sig)

	assert.True(t, VerifySignature(payload, sig, secret))
}

func TestSignatureRejectsMutations(t *testing.T) {
	payload := []byte(`{"meta":{"event_name":"subscription_created"},"data":{"id":"1"}}`)
	secret := "whsec_test_secret"
	sig := Sign(payload, secret)

	t.Run("payload bit flip", func(t *testing.T) {
		mutated := make([]byte, len(payload))
		copy(mutated, payload)
		mutated[10] ^= 0x01
		assert.False(t, VerifySignature(mutated, sig, secret))
	})

	t.Run("signature bit flip", func(t *testing.T) {
		mutated := []byte(sig)
		if mutated[0] == 'a' {
			mutated[0] = 'b'
		} else {
			mutated[0] = 'a'
		}
		assert.False(t, VerifySignature(payload, string(mutated), secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, sig, "some-other-secret"))
	})

	t.Run("empty signature", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, "", secret))
	})

	t.Run("non-hex signature", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, "not hex at all", secret))
	})
}

func TestSignatureAcceptsUppercaseHex(t *testing.T) {
	payload := []byte("payload")
	secret := "secret"
	sig := Sign(payload, secret)

	upper := make([]byte, len(sig))
	for i := 0; i < len(sig); i++ {
		c := sig[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		upper[i] = c
	}

	assert.True(t, VerifySignature(payload, string(upper), secret))
}
