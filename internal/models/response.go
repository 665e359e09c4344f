package models

// Error codes carried next to the human-readable msg.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeInvalidID           = "INVALID_ID"
	CodeNotFound            = "NOT_FOUND"
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeInvalidForm         = "INVALID_FORM"
	CodeInternalError       = "INTERNAL_ERROR"
)

// MessageResponse is the body for confirmations and plain errors.
type MessageResponse struct {
	Msg  string `json:"msg"`
	Code string `json:"code,omitempty"`
}

// ValidationErrorResponse is returned with 400 when form fields fail.
type ValidationErrorResponse struct {
	Msg    string       `json:"msg"`
	Code   string       `json:"code"`
	Errors []FieldError `json:"errors"`
}

func NewMessageResponse(msg string) MessageResponse {
	return MessageResponse{Msg: msg}
}

func NewErrorResponse(code, msg string) MessageResponse {
	return MessageResponse{Msg: msg, Code: code}
}

func NewValidationErrorResponse(verr *ValidationError) ValidationErrorResponse {
	return ValidationErrorResponse{
		Msg:    "Validation failed",
		Code:   CodeValidationError,
		Errors: verr.Fields,
	}
}

// OrphanReport is returned by the orphan scan endpoint. Recent counts
// unreferenced files skipped for being younger than the scanner's minimum age.
type OrphanReport struct {
	Scanned int          `json:"scanned"`
	Recent  int          `json:"recent"`
	Orphans []OrphanFile `json:"orphans"`
}

type OrphanFile struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModTime string `json:"modTime"`
}
