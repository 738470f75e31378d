package upload

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
)

// UploadType는 업로드 분류 식별자 (예: "avatars")
type UploadType string

var (
	ErrUnknownUploadType = errors.New("unknown upload type")
	ErrPathEscape        = errors.New("path escapes upload type root")
	ErrConflict          = errors.New("destination file already exists")
)

// ConfigurationError is returned when an upload type has no configured root.
type ConfigurationError struct {
	UploadType UploadType
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownUploadType, string(e.UploadType))
}

func (e *ConfigurationError) Unwrap() error {
	return ErrUnknownUploadType
}

// Roots maps each upload type to its root directory. Built once at startup and never mutated.
type Roots struct {
	paths map[UploadType]string
}

// NewRoots validates the configured mapping. Identifiers are lower-cased and trimmed.
func NewRoots(types map[string]string) (Roots, error) {
	paths := make(map[UploadType]string, len(types))
	owners := make(map[string]UploadType, len(types))

	for rawID, rawRoot := range types {
		id := NormalizeUploadType(rawID)
		if id == "" {
			return Roots{}, errors.New("upload type identifier is required")
		}
		if _, dup := paths[id]; dup {
			return Roots{}, fmt.Errorf("upload type %q is declared twice", id)
		}

		root := strings.TrimSpace(rawRoot)
		if root == "" {
			return Roots{}, fmt.Errorf("upload type %q has no root directory", id)
		}
		root = filepath.Clean(root)

		if other, taken := owners[root]; taken {
			return Roots{}, fmt.Errorf("upload types %q and %q share root %s", other, id, root)
		}
		owners[root] = id
		paths[id] = root
	}

	return Roots{paths: paths}, nil
}

func (r Roots) lookup(uploadType UploadType) (string, bool) {
	root, ok := r.paths[NormalizeUploadType(string(uploadType))]
	return root, ok
}

// Types returns the configured identifiers in lexical order.
func (r Roots) Types() []UploadType {
	types := make([]UploadType, 0, len(r.paths))
	for id := range r.paths {
		types = append(types, id)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (r Roots) Len() int {
	return len(r.paths)
}

// NormalizeUploadType lower-cases and trims an identifier the way configuration keys are stored.
func NormalizeUploadType(raw string) UploadType {
	return UploadType(strings.ToLower(strings.TrimSpace(raw)))
}

// ErrorKind classifies a failed operation.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindIO            ErrorKind = "io"
	KindConfiguration ErrorKind = "configuration"
)

// OperationResult is returned by every lifecycle and move operation.
type OperationResult struct {
	Success    bool      `json:"success"`
	Partial    bool      `json:"partial,omitempty"`
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Err        error     `json:"-"`
}

func succeeded(message string) OperationResult {
	return OperationResult{Success: true, StatusCode: http.StatusOK, Message: message}
}

func partial(message string, err error) OperationResult {
	return OperationResult{
		Success:    true,
		Partial:    true,
		StatusCode: http.StatusMultiStatus,
		Message:    message,
		Kind:       KindIO,
		Err:        err,
	}
}

func failed(kind ErrorKind, message string, err error) OperationResult {
	return OperationResult{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
		Kind:       kind,
		Err:        err,
	}
}

// OperationKind names an operation for auditing.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationRename OperationKind = "rename"
	OperationRemove OperationKind = "remove"
	OperationMove   OperationKind = "move"
)

// Operation describes an attempted operation as supplied by the caller.
type Operation struct {
	Kind             OperationKind
	UploadType       UploadType
	Path             string
	NewName          string
	TargetUploadType UploadType
	TargetPath       string
}

// normalizeRelativePath returns a slash separated path without leading "/" or "./"; "" means the root.
func normalizeRelativePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	cleaned := filepath.ToSlash(filepath.Clean(trimmed))
	cleaned = strings.TrimPrefix(cleaned, "./")
	cleaned = strings.TrimLeft(cleaned, "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// leafName returns the last segment of a relative path, or "" when it points at the root.
func leafName(relativePath string) string {
	normalized := normalizeRelativePath(relativePath)
	if normalized == "" {
		return ""
	}
	return filepath.Base(filepath.FromSlash(normalized))
}
