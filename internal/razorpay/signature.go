package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhookSignature はWebhookリクエストの署名を検証する。
// RazorpayはリクエストボディのHMAC-SHA256を16進文字列として
// X-Razorpay-Signatureヘッダーに設定する。
// 比較はタイミング攻撃を避けるため定数時間で行う。
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
