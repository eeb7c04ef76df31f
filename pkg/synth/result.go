package synth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/harunnryd/kokoroctl/pkg/configutil"
	"github.com/harunnryd/kokoroctl/pkg/errorsx"
)

// Result is a decoded server reply. Pointer fields are nil when the key was
// absent (or null); Raw holds every key exactly as received.
type Result struct {
	Success    *bool   `mapstructure:"success"`
	Filename   *string `mapstructure:"filename"`
	FileSize   *int64  `mapstructure:"file_size"`
	S3Uploaded *bool   `mapstructure:"s3_uploaded"`
	S3URL      *string `mapstructure:"s3_url"`
	S3Error    *string `mapstructure:"s3_error"`
	Error      *string `mapstructure:"error"`
	Message    *string `mapstructure:"message"`
	Path       *string `mapstructure:"path"`
	LocalKept  *bool   `mapstructure:"local_file_kept"`

	Raw map[string]any `mapstructure:"-"`
}

// UploadStatus is the remote storage sub-status of a successful synthesis.
type UploadStatus int

const (
	UploadNotRequested UploadStatus = iota
	UploadSucceeded
	UploadFailed
)

func (s UploadStatus) String() string {
	switch s {
	case UploadSucceeded:
		return "uploaded"
	case UploadFailed:
		return "failed"
	default:
		return "not_requested"
	}
}

// DecodeError reports a reply that is not a UTF-8 JSON object. Text keeps the
// offending payload for diagnostics.
type DecodeError struct {
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	errInvalidUTF8 = errors.New("response is not valid UTF-8")
	errNotObject   = errors.New("response is not a JSON object")
	errTrailing    = errors.New("unexpected data after JSON value")
)

// Interpret decodes raw reply bytes. It inserts no defaults: absent keys stay
// absent on the returned Result.
func Interpret(raw []byte) (*Result, error) {
	if !utf8.Valid(raw) {
		return nil, decodeErr(raw, errInvalidUTF8)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, decodeErr(raw, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, decodeErr(raw, errTrailing)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, decodeErr(raw, errNotObject)
	}

	res := &Result{Raw: obj}
	for key, val := range obj {
		if key == "file_size" {
			val = wholeNumber(val)
		}
		// A value of an unexpected type leaves its typed field nil; Raw keeps it.
		_ = configutil.DecodeSettings(map[string]any{key: val}, res)
	}
	if res.FileSize != nil && *res.FileSize < 0 {
		res.FileSize = nil
	}
	return res, nil
}

// wholeNumber turns an integral float such as 1024.0 into an int64.
func wholeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return v
	}
	return int64(f)
}

// truthy applies loose truth rules to a raw reply value: false, zero,
// empty and null are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

func decodeErr(raw []byte, err error) error {
	return errorsx.Wrap(&DecodeError{Text: string(raw), Err: err}, errorsx.ReasonDecode)
}

// Has reports whether key was present in the reply.
func (r *Result) Has(key string) bool {
	_, ok := r.Raw[key]
	return ok
}

// Keys returns the received keys in sorted order.
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.Raw))
	for k := range r.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Succeeded is true only when the server reported a truthy success value.
func (r *Result) Succeeded() bool {
	if r.Success != nil {
		return *r.Success
	}
	return truthy(r.Raw["success"])
}

// Upload classifies the remote storage sub-status.
func (r *Result) Upload() UploadStatus {
	uploaded := false
	switch {
	case r.S3Uploaded != nil:
		uploaded = *r.S3Uploaded
	case r.Has("s3_uploaded"):
		uploaded = truthy(r.Raw["s3_uploaded"])
	default:
		return UploadNotRequested
	}
	if uploaded {
		return UploadSucceeded
	}
	return UploadFailed
}

// ErrorMessage returns the server's error text or a generic placeholder. A
// structured error value is rendered as compact JSON.
func (r *Result) ErrorMessage() string {
	if r.Error != nil {
		return *r.Error
	}
	if v := r.Raw["error"]; v != nil {
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return "Unknown error"
}
