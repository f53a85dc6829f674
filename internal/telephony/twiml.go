package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// TwiML response document instructing the carrier to open a bidirectional
// media stream and forward the caller identity as custom parameters.
type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// BuildStreamTwiML returns the webhook response XML that upgrades the call to
// a media stream at wss://<host>/media-stream/<call-sid>. baseURL is the
// public http(s) origin of this service.
func BuildStreamTwiML(baseURL, callSID, caller string) (string, error) {
	wsURL := strings.Replace(baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.TrimRight(wsURL, "/")

	doc := twimlResponse{
		Connect: twimlConnect{
			Stream: twimlStream{
				URL: fmt.Sprintf("%s/media-stream/%s", wsURL, callSID),
				Parameters: []twimlParameter{
					{Name: "caller", Value: caller},
					{Name: "call_sid", Value: callSID},
				},
			},
		},
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("telephony: marshal twiml: %w", err)
	}
	return xml.Header + string(body), nil
}

// ValidateSignature checks the carrier's webhook signature: HMAC-SHA1 over
// the full request URL concatenated with the sorted form parameters, base64
// encoded, compared in constant time. An empty authToken disables validation
// (local development only).
func ValidateSignature(authToken, requestURL string, form url.Values, signature string) bool {
	if authToken == "" {
		return true
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(requestURL)
	for _, k := range keys {
		// The signature scheme uses the first value of each key.
		payload.WriteString(k)
		payload.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
