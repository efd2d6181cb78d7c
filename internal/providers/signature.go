package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/webhook"
)

// SignatureHeader is the header carrying the webhook signature.
const SignatureHeader = "Processor-Signature"

// DefaultTolerance bounds how old a signed timestamp may be.
const DefaultTolerance = 5 * time.Minute

// SignatureVerifier checks "t=<unix>,v1=<hex hmac>" signatures over "<t>.<payload>".
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify authenticates payload against header and decodes the event.
func (v *SignatureVerifier) Verify(payload []byte, header string) (*webhook.Event, error) {
	if header == "" {
		return nil, domainErrors.ErrMissingSignature
	}
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", domainErrors.ErrInvalidSignature)
	}

	ts, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return nil, err
	}

	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(ts, 0))
		if age > v.tolerance || age < -v.tolerance {
			return nil, fmt.Errorf("%w: timestamp outside tolerance", domainErrors.ErrInvalidSignature)
		}
	}

	expected := v.compute(ts, payload)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, domainErrors.ErrInvalidSignature
	}

	return webhook.ParseEvent(payload)
}

// Sign produces a header value for payload at ts.
func (v *SignatureVerifier) Sign(payload []byte, ts time.Time) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,v1=%s", unix, hex.EncodeToString(v.compute(unix, payload)))
}

func (v *SignatureVerifier) compute(ts int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var (
		ts         int64
		haveTS     bool
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", domainErrors.ErrInvalidSignature)
			}
			ts, haveTS = parsed, true
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if !haveTS || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed header", domainErrors.ErrInvalidSignature)
	}
	return ts, signatures, nil
}
