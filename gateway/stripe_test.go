package gateway

import (
	"commerce_settlement/model"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stripeSecret = "whsec_test"

func signStripe(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(stripeSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2020-08-27","type":%q,"data":{"object":%s}}`, eventType, object))
}

func TestParseStripeCheckoutCompleted(t *testing.T) {
	payload := stripeEvent("checkout.session.completed",
		`{"id":"cs_1","object":"checkout.session","amount_total":120000,"client_reference_id":"BULK-1-2","payment_status":"paid"}`)

	n, err := ParseStripeEvent(payload, signStripe(payload), stripeSecret)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "cs_1", n.TransactionId)
	assert.Equal(t, "BULK-1-2", n.Reference)
	assert.Equal(t, int64(120000), n.Amount)
	assert.True(t, n.Succeeded())
}

func TestParseStripeUnpaidSessionIsIgnored(t *testing.T) {
	payload := stripeEvent("checkout.session.completed",
		`{"id":"cs_2","object":"checkout.session","amount_total":5,"metadata":{"order_reference":"ORD-1"},"payment_status":"unpaid"}`)

	n, err := ParseStripeEvent(payload, signStripe(payload), stripeSecret)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestParseStripePaymentFailed(t *testing.T) {
	payload := stripeEvent("payment_intent.payment_failed",
		`{"id":"pi_1","object":"payment_intent","amount":5000,"metadata":{"order_reference":"ORD-9"}}`)

	n, err := ParseStripeEvent(payload, signStripe(payload), stripeSecret)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "ORD-9", n.Reference)
	assert.Equal(t, model.PaymentFailed, n.Target())
}

func TestParseStripeBadSignature(t *testing.T) {
	payload := stripeEvent("checkout.session.completed", `{"id":"cs_3"}`)
	_, err := ParseStripeEvent(payload, "t=1,v1=deadbeef", stripeSecret)
	assert.ErrorIs(t, err, model.ErrInvalidSignature)
}
