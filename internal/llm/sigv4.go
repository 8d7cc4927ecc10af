// Package llm - AWS Signature Version 4 request signing for the Bedrock gateway.
//
// Used only when no bearer API key is configured. The signature must match the
// SigV4 canonical-request protocol exactly or the gateway rejects the call.
package llm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

const signingAlgorithm = "AWS4-HMAC-SHA256"

// Credentials is the access-key pair used for signed requests.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// SigningInput carries every value that feeds the canonical request. The caller
// supplies the timestamp so signatures are deterministic and never reuse a stale
// signing window.
type SigningInput struct {
	Method  string
	Host    string
	Path    string // URI path, already escaped
	Query   string // raw query string, may be empty
	Payload []byte
	Region  string
	Service string // "bedrock" or "bedrock-runtime"
	Time    time.Time
}

// BuildAuthorization computes the Authorization header value and the matching
// X-Amz-Date value for a request.
func BuildAuthorization(creds Credentials, in SigningInput) (authorization, amzDate string) {
	t := in.Time.UTC()
	amzDate = t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	path := in.Path
	if path == "" {
		path = "/"
	}

	canonicalHeaders := "host:" + in.Host + "\n" + "x-amz-date:" + amzDate + "\n"
	const signedHeaders = "host;x-amz-date"
	payloadHash := hexSHA256(in.Payload)

	canonicalRequest := in.Method + "\n" +
		path + "\n" +
		in.Query + "\n" +
		canonicalHeaders + "\n" +
		signedHeaders + "\n" +
		payloadHash

	credentialScope := dateStamp + "/" + in.Region + "/" + in.Service + "/aws4_request"

	stringToSign := signingAlgorithm + "\n" +
		amzDate + "\n" +
		credentialScope + "\n" +
		hexSHA256([]byte(canonicalRequest))

	// Four chained HMAC derivations produce the per-day signing key.
	kDate := hmacSHA256([]byte("AWS4"+creds.SecretAccessKey), dateStamp)
	kRegion := hmacSHA256(kDate, in.Region)
	kService := hmacSHA256(kRegion, in.Service)
	kSigning := hmacSHA256(kService, "aws4_request")

	signature := hex.EncodeToString(hmacSHA256(kSigning, stringToSign))

	authorization = fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm, creds.AccessKeyID, credentialScope, signedHeaders, signature)
	return authorization, amzDate
}

// SignRequest signs an outbound request in place, setting the Host, X-Amz-Date
// and Authorization headers.
func SignRequest(req *http.Request, payload []byte, creds Credentials, region, service string, now time.Time) {
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	authorization, amzDate := BuildAuthorization(creds, SigningInput{
		Method:  req.Method,
		Host:    host,
		Path:    req.URL.EscapedPath(),
		Query:   req.URL.RawQuery,
		Payload: payload,
		Region:  region,
		Service: service,
		Time:    now,
	})

	req.Host = host
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("Authorization", authorization)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
