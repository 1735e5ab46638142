package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tablebooking/internal/pkg/apperr"
)

// SignatureHeader carries the webhook signature: "t=<unix>,v1=<hex>".
const SignatureHeader = "Gateway-Signature"

// Sign builds a signature header value for payload at ts.
func Sign(secret string, payload []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", t, computeSignature(secret, t, payload))
}

func computeSignature(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the exact raw payload bytes.
// Any failure wraps apperr.ErrAuthenticity.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", apperr.ErrAuthenticity)
	}
	timestamp, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrAuthenticity, err)
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", apperr.ErrAuthenticity)
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", apperr.ErrAuthenticity)
		}
	}

	expected := []byte(computeSignature(secret, timestamp, payload))
	for _, sig := range sigs {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("%w: signature mismatch", apperr.ErrAuthenticity)
}

func parseSignatureHeader(header string) (string, []string, error) {
	if strings.TrimSpace(header) == "" {
		return "", nil, fmt.Errorf("missing signature header")
	}
	var (
		timestamp string
		sigs      []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if timestamp == "" || len(sigs) == 0 {
		return "", nil, fmt.Errorf("malformed signature header")
	}
	return timestamp, sigs, nil
}
