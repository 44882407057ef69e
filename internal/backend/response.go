package backend

import (
	"encoding/json"
	"encoding/xml"
	"strings"
)

// submitResponse is the body returned by the submission endpoint. The backend
// answers in its native XML or in JSON depending on deployment; both carry a
// request identifier.
type submitResponse struct {
	RequestID string `json:"requestId" xml:"requestId"`
}

// statusResponse is the body returned by the status endpoint. Older backend
// versions report a single documentId, newer ones a documentIds list.
type statusResponse struct {
	Status       string   `json:"status" xml:"status"`
	ErrorMessage string   `json:"errorMessage" xml:"errorMessage"`
	ErrorCode    string   `json:"errorCode" xml:"errorCode"`
	DocumentID   string   `json:"documentId" xml:"documentId"`
	DocumentIDs  []string `json:"documentIds" xml:"documentIds>documentId"`
}

// decodeBody unmarshals a backend response, keyed off the content type with a
// fallback sniff for servers that omit or mislabel it.
func decodeBody(contentType string, body []byte, v any) error {
	if strings.Contains(contentType, "xml") {
		return xml.Unmarshal(body, v)
	}
	if strings.Contains(contentType, "json") {
		return json.Unmarshal(body, v)
	}
	if json.Valid(body) {
		return json.Unmarshal(body, v)
	}
	return xml.Unmarshal(body, v)
}
