package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
)

type Code string

const (
	CodeNetwork       Code = "NETWORK_ERROR"
	CodeTimeout       Code = "TIMEOUT"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeNotFound      Code = "NOT_FOUND"
	CodeStorageQuota  Code = "STORAGE_QUOTA"
	CodeParse         Code = "PARSE_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// alreadyInWishlistMarker is the phrase the commerce API uses for duplicate wishlist adds.
const alreadyInWishlistMarker = "already in wishlist"

type Metadata struct {
	Retryable     bool
	Soft          bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeNetwork: {
		Retryable:     true,
		Soft:          true,
		PublicMessage: "you appear to be offline; changes are saved on this device",
	},
	CodeTimeout: {
		Retryable:     true,
		Soft:          true,
		PublicMessage: "the store is responding slowly; changes are saved on this device",
	},
	CodeUnauthorized: {
		Retryable:     false,
		Soft:          true,
		PublicMessage: "your session has expired; continuing as guest",
	},
	CodeValidation: {
		Retryable:     false,
		Soft:          false,
		PublicMessage: "the item could not be updated; please check the selected options",
	},
	CodeAlreadyExists: {
		Retryable:     false,
		Soft:          true,
		PublicMessage: "already saved",
	},
	CodeNotFound: {
		Retryable:     false,
		Soft:          true,
		PublicMessage: "item no longer available",
	},
	CodeStorageQuota: {
		Retryable:     false,
		Soft:          true,
		PublicMessage: "device storage is full",
	},
	CodeParse: {
		Retryable:     false,
		Soft:          true,
		PublicMessage: "saved data was unreadable and has been reset",
	},
	CodeDependency: {
		Retryable:     true,
		Soft:          true,
		PublicMessage: "the store could not be reached; changes are saved on this device",
	},
	CodeInternal: {
		Retryable:     false,
		Soft:          false,
		PublicMessage: "something went wrong",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the taxonomy code for err, classifying untyped errors on the way.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeInternal
}

// Is reports whether err carries the provided code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// FromHTTPStatus classifies a non-success commerce API response.
func FromHTTPStatus(status int, message string) *Error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if strings.Contains(strings.ToLower(msg), alreadyInWishlistMarker) {
		return New(CodeAlreadyExists, msg).WithDetails(map[string]any{"status": status})
	}

	var code Code
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = CodeUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		code = CodeValidation
	case status == http.StatusNotFound:
		code = CodeNotFound
	case status == http.StatusConflict:
		code = CodeAlreadyExists
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = CodeTimeout
	default:
		code = CodeDependency
	}
	return New(code, msg).WithDetails(map[string]any{"status": status})
}

// FromTransport classifies an error returned by the HTTP round trip itself.
func FromTransport(err error, message string) *Error {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeTimeout, err, message)
	}
	return Wrap(CodeNetwork, err, message)
}
