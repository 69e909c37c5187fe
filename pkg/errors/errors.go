package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes AppErrors comparable by code through errors.Is, so sentinel
// values below match wrapped or detail-carrying copies of themselves.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// Common error codes
const (
	ErrCodeAlreadyInitialized     = "already_initialized"
	ErrCodeInvalidThreshold       = "invalid_threshold"
	ErrCodeDuplicateSigner        = "duplicate_signer"
	ErrCodeEmptyRoster            = "empty_roster"
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeIDAlreadyConsumed      = "id_already_consumed"
	ErrCodeSignatureVerification  = "signature_verification_failed"
	ErrCodeMalformedProof         = "malformed_proof"
	ErrCodeMalformedSignatureBlob = "malformed_signature_blob"
	ErrCodeNotOwnerOfWallet       = "not_owner_of_wallet"
	ErrCodeExecutionFailed        = "execution_failed"
	ErrCodeBadRequest             = "bad_request"
	ErrCodeNotFound               = "not_found"
	ErrCodeRateLimited            = "rate_limited"
	ErrCodeInternalError          = "internal_error"
)

// Predefined errors
var (
	ErrAlreadyInitialized = &AppError{
		Code:       ErrCodeAlreadyInitialized,
		Message:    "Signer set already initialized",
		StatusCode: http.StatusConflict,
	}

	ErrInvalidThreshold = &AppError{
		Code:       ErrCodeInvalidThreshold,
		Message:    "Threshold must be between 1 and the roster size",
		StatusCode: http.StatusBadRequest,
	}

	ErrDuplicateSigner = &AppError{
		Code:       ErrCodeDuplicateSigner,
		Message:    "Roster contains a duplicate signer",
		StatusCode: http.StatusBadRequest,
	}

	ErrEmptyRoster = &AppError{
		Code:       ErrCodeEmptyRoster,
		Message:    "Roster must contain at least one signer",
		StatusCode: http.StatusBadRequest,
	}

	ErrUnauthorized = &AppError{
		Code:       ErrCodeUnauthorized,
		Message:    "Caller is not authorized for this operation",
		StatusCode: http.StatusForbidden,
	}

	ErrIDAlreadyConsumed = &AppError{
		Code:       ErrCodeIDAlreadyConsumed,
		Message:    "Unique ID has already been consumed",
		StatusCode: http.StatusConflict,
	}

	ErrSignatureVerification = &AppError{
		Code:       ErrCodeSignatureVerification,
		Message:    "Signature verification failed",
		StatusCode: http.StatusUnauthorized,
	}

	ErrMalformedProof = &AppError{
		Code:       ErrCodeMalformedProof,
		Message:    "Merkle proof is malformed",
		StatusCode: http.StatusBadRequest,
	}

	ErrMalformedSignatureBlob = &AppError{
		Code:       ErrCodeMalformedSignatureBlob,
		Message:    "Signature blob is malformed",
		StatusCode: http.StatusBadRequest,
	}

	ErrNotOwnerOfWallet = &AppError{
		Code:       ErrCodeNotOwnerOfWallet,
		Message:    "Gateway is not a registered owner of the wallet it guards",
		StatusCode: http.StatusPreconditionFailed,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrRateLimited = &AppError{
		Code:       ErrCodeRateLimited,
		Message:    "Too many requests",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetail returns a copy of err carrying additional detail.
func WithDetail(err *AppError, detail string) *AppError {
	return &AppError{
		Code:       err.Code,
		Message:    err.Message,
		Detail:     detail,
		StatusCode: err.StatusCode,
	}
}

// SignatureVerificationFailed creates a signature verification error with detail
func SignatureVerificationFailed(detail string) *AppError {
	return WithDetail(ErrSignatureVerification, detail)
}

// MalformedSignatureBlob creates a malformed signature blob error with detail
func MalformedSignatureBlob(detail string) *AppError {
	return WithDetail(ErrMalformedSignatureBlob, detail)
}

// MalformedProof creates a malformed proof error with detail
func MalformedProof(detail string) *AppError {
	return WithDetail(ErrMalformedProof, detail)
}

// ExecutionFailed wraps a downstream wallet execution failure.
func ExecutionFailed(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeExecutionFailed,
		Message:    "Wallet execution failed",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
