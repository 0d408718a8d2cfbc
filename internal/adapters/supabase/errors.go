package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PostgREST passes Postgres SQLSTATEs through in the error body's code field.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// APIError is a non-2xx response from the auth or REST endpoints.
//
// PostgREST bodies carry {code,message,details,hint} with a SQLSTATE code. The auth service
// uses {code,error_code,msg} (numeric code) or the OAuth form {error,error_description}.
type APIError struct {
	Status    int
	Code      string
	ErrorCode string
	Message   string
	Details   string
	Hint      string
}

func (e *APIError) Error() string {
	code := e.Code
	if e.ErrorCode != "" {
		code = e.ErrorCode
	}
	if code == "" {
		return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("supabase: status %d (%s): %s", e.Status, code, e.Message)
}

// BackendMessage is the server's own message, shown to users unchanged.
func (e *APIError) BackendMessage() string { return e.Message }

// AsAPIError unwraps err into an APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Details          json.RawMessage `json:"details"`
	Hint             *string         `json:"hint"`
	OAuthError       string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func decodeAPIError(status int, body []byte) *APIError {
	ae := &APIError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		ae.Message = string(body)
		return ae
	}

	ae.Code = rawString(eb.Code)
	ae.ErrorCode = eb.ErrorCode
	if ae.ErrorCode == "" {
		ae.ErrorCode = eb.OAuthError
	}
	switch {
	case eb.Message != "":
		ae.Message = eb.Message
	case eb.Msg != "":
		ae.Message = eb.Msg
	case eb.ErrorDescription != "":
		ae.Message = eb.ErrorDescription
	default:
		ae.Message = string(body)
	}
	ae.Details = rawString(eb.Details)
	if eb.Hint != nil {
		ae.Hint = *eb.Hint
	}
	return ae
}

// rawString renders a JSON string or number as text; null and absent yield "".
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
