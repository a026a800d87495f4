package types

// SpanStatus is the terminal outcome of a span
type SpanStatus string

const (
	StatusSuccess SpanStatus = "success"
	StatusError   SpanStatus = "error"
)

// ErrorData describes a failed span
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// SpanData is the immutable snapshot of a completed span.
// Times are monotonic nanoseconds, not wall-clock.
type SpanData struct {
	Name       string     `json:"name"`
	StartTime  int64      `json:"startTime"`
	EndTime    int64      `json:"endTime"`
	Duration   int64      `json:"duration"`
	Status     SpanStatus `json:"status"`
	Error      *ErrorData `json:"error,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// Failed reports whether the span ended with an error status
func (s SpanData) Failed() bool {
	return s.Status == StatusError
}

// Trace groups the spans of one flush chunk
type Trace struct {
	TraceID  string     `json:"traceId"`
	Spans    []SpanData `json:"spans"`
	Metadata Attributes `json:"metadata"`
}

// EncryptedTrace is the envelope posted in encrypted mode.
// Byte fields are standard base64 with padding.
type EncryptedTrace struct {
	TraceID         string `json:"traceId"`
	FacilitatorID   string `json:"facilitatorId,omitempty"`
	EncryptedData   string `json:"encryptedData"`
	AESKeyEncrypted string `json:"aesKeyEncrypted"`
	IV              string `json:"iv"`
	Timestamp       int64  `json:"timestamp"`
}

// KeyPair holds a PEM encoded RSA identity
type KeyPair struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// KeyRegistration is the body of a public key registration request
type KeyRegistration struct {
	FacilitatorID string `json:"facilitatorId"`
	PublicKey     string `json:"publicKey"`
}

// PublicMetrics is an anonymized performance summary
type PublicMetrics struct {
	FacilitatorID     string  `json:"facilitatorId"`
	SuccessRate       float64 `json:"successRate"`
	AvgLatency        float64 `json:"avgLatency"`
	P95Latency        float64 `json:"p95Latency,omitempty"`
	TotalTransactions int     `json:"totalTransactions"`
	Period            string  `json:"period"`
	Timestamp         int64   `json:"timestamp,omitempty"`
}
