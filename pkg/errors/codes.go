package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Document ingestion and extraction error codes
const (
	ErrCodeDocumentRead        ErrorCode = "DOC_001"
	ErrCodeDocumentEmpty       ErrorCode = "DOC_002"
	ErrCodeDocumentTooLarge    ErrorCode = "DOC_003"
	ErrCodeFiscalCodeInvalid   ErrorCode = "DOC_004"
	ErrCodeDateUnparseable     ErrorCode = "DOC_005"
	ErrCodeDocumentStoreFailed ErrorCode = "DOC_006"
)

// Report domain error codes
const (
	ErrCodeReportNotFound      ErrorCode = "REP_001"
	ErrCodeReportAlreadyExists ErrorCode = "REP_002"
	ErrCodeReportSaveFailed    ErrorCode = "REP_003"
	ErrCodeBatchSizeInvalid    ErrorCode = "REP_004"
	ErrCodeDuplicateCheck      ErrorCode = "REP_005"
)

// Comparison error codes
const (
	ErrCodeComparisonFailed    ErrorCode = "CMP_001"
	ErrCodeNoComparableMarker  ErrorCode = "CMP_002"
	ErrCodeVerdictUnrecognized ErrorCode = "CMP_003"
)

// AI inference error codes
const (
	ErrCodeAIUnavailable       ErrorCode = "AI_001"
	ErrCodeAIInferenceFailed   ErrorCode = "AI_002"
	ErrCodeAIResponseMalformed ErrorCode = "AI_003"
	ErrCodeAIInputInvalid      ErrorCode = "AI_004"
)

// Aliases kept short for call-site readability.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeUnauthorized = ErrCodeUnauthorized
	CodeForbidden    = ErrCodeForbidden
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeOK           = ErrorCode("OK")

	CodeDBConnectionError = ErrCodeDatabaseError
	CodeDBQueryError      = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeStorageError      = ErrCodeDocumentStoreFailed
	CodeMessageQueueError = ErrCodeInternal
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,

	ErrCodeDocumentRead:        http.StatusUnprocessableEntity,
	ErrCodeDocumentEmpty:       http.StatusBadRequest,
	ErrCodeDocumentTooLarge:    http.StatusRequestEntityTooLarge,
	ErrCodeFiscalCodeInvalid:   http.StatusBadRequest,
	ErrCodeDateUnparseable:     http.StatusBadRequest,
	ErrCodeDocumentStoreFailed: http.StatusInternalServerError,

	ErrCodeReportNotFound:      http.StatusNotFound,
	ErrCodeReportAlreadyExists: http.StatusConflict,
	ErrCodeReportSaveFailed:    http.StatusInternalServerError,
	ErrCodeBatchSizeInvalid:    http.StatusBadRequest,
	ErrCodeDuplicateCheck:      http.StatusInternalServerError,

	ErrCodeComparisonFailed:    http.StatusInternalServerError,
	ErrCodeNoComparableMarker:  http.StatusInternalServerError,
	ErrCodeVerdictUnrecognized: http.StatusInternalServerError,

	ErrCodeAIUnavailable:       http.StatusServiceUnavailable,
	ErrCodeAIInferenceFailed:   http.StatusInternalServerError,
	ErrCodeAIResponseMalformed: http.StatusInternalServerError,
	ErrCodeAIInputInvalid:      http.StatusBadRequest,
}

// HTTPStatus returns the HTTP status mapped to the code, defaulting to 500.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := ErrorCodeHTTPStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
