// Package rpc implements the line-delimited JSON-RPC front-end: one
// request per input line, one response per output line.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC version stamped on every response.
const Version = "2.0"

// Protocol error codes.
const (
	CodeParse          = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// Ordering-precondition error codes, one per missing upstream stage.
const (
	CodeCrawlRequired      = 1001
	CodeAnalysisRequired   = 1002
	CodeScaffoldRequired   = 1003
	CodeGenerationRequired = 1004
)

// Request is one caller request line. A leading jsonrpc version field,
// if present, is ignored. ID is kept raw so it can be echoed verbatim.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Error is a JSON-RPC error object. It doubles as the application error
// type carried across handler boundaries.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError builds an Error with a formatted message.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an arbitrary failure as an internal error.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// InvalidParams reports a parameter deserialization failure. The message
// names the offending field.
func InvalidParams(field, reason string) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %s (%s)", field, reason)}
}

// Response is one response line. Exactly one of Result/Err is rendered.
type Response struct {
	Result map[string]any
	Err    *Error
	ID     json.RawMessage
}

// MarshalJSON renders the wire shape. A missing request id is echoed as
// null, and a success with no payload still carries an empty result
// object.
func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Err != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			Error   *Error          `json:"error"`
			ID      json.RawMessage `json:"id"`
		}{Version, r.Err, id})
	}
	result := r.Result
	if result == nil {
		result = map[string]any{}
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  map[string]any  `json:"result"`
		ID      json.RawMessage `json:"id"`
	}{Version, result, id})
}
