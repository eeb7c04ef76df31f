package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Caller-side failures, raised before any connection is opened.
	ReasonMissingInput   ReasonCode = "missing_input"
	ReasonInputRead      ReasonCode = "input_read"
	ReasonInvalidRequest ReasonCode = "invalid_request"
	ReasonConfig         ReasonCode = "config"

	ReasonConnectionFailed ReasonCode = "connection_failed"
	ReasonTransport        ReasonCode = "transport_error"
	ReasonEmptyResponse    ReasonCode = "empty_response"

	ReasonDecode ReasonCode = "decode_error"
)

// PreNetwork reports whether the reason describes a failure that aborts the
// invocation before the network is touched.
func (r ReasonCode) PreNetwork() bool {
	switch r {
	case ReasonMissingInput, ReasonInputRead, ReasonInvalidRequest, ReasonConfig:
		return true
	default:
		return false
	}
}
