// Package models holds the value types shared between the diagnostic log
// components and the HTTP bridge.
package models

// UploadStatus tags an UploadResult.
type UploadStatus string

const (
	UploadSuccess UploadStatus = "success"
	UploadError   UploadStatus = "error"
)

// UploadErrorKind names why an upload did not succeed.
type UploadErrorKind string

const (
	ErrFileMissing       UploadErrorKind = "file-missing"
	ErrTransportFailure  UploadErrorKind = "transport-failure"
	ErrServerRejected    UploadErrorKind = "server-rejected"
	ErrMalformedEndpoint UploadErrorKind = "malformed-endpoint"
)

// UploadResult is the single terminal outcome of one upload request.
// Exactly one of Code (success) or Error (failure) is meaningful.
type UploadResult struct {
	Type   UploadStatus    `json:"type"`
	Code   int             `json:"code,omitempty"`
	Error  UploadErrorKind `json:"error,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// UploadOK returns a success result carrying the response status code.
func UploadOK(code int) UploadResult {
	return UploadResult{Type: UploadSuccess, Code: code}
}

// UploadFailed returns an error result. detail is the transport fault or the
// server's status message and may be empty.
func UploadFailed(kind UploadErrorKind, detail string) UploadResult {
	return UploadResult{Type: UploadError, Error: kind, Detail: detail}
}

// OK reports whether the upload succeeded.
func (r UploadResult) OK() bool { return r.Type == UploadSuccess }
