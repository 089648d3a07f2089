package errors

import "fmt"

// ErrorKind classifies a failure the inode subsystem can surface. Kinds are
// named after §7 of the design: they describe what went wrong at the
// filesystem-semantics level, not the underlying mechanism.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindNotADirectory
	KindIsADirectory
	KindAlreadyExists
	KindDirectoryNotEmpty
	KindInvalidArgument
	KindPermissionDenied
	KindIo
	KindBackingStoreUnavailable
	KindDataCorruption
	KindCancelled
	KindCatalogLocked
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindNotADirectory:
		return "NotADirectory"
	case KindIsADirectory:
		return "IsADirectory"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindDirectoryNotEmpty:
		return "DirectoryNotEmpty"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindIo:
		return "Io"
	case KindBackingStoreUnavailable:
		return "BackingStoreUnavailable"
	case KindDataCorruption:
		return "DataCorruption"
	case KindCancelled:
		return "Cancelled"
	case KindCatalogLocked:
		return "CatalogLocked"
	default:
		return "Unknown"
	}
}

// KindedError pairs a classified ErrorKind with a message and an optional
// underlying cause, mirroring the teacher's TypedError/ErrorType pairing but
// re-keyed to the inode subsystem's own error vocabulary instead of
// network/auth/validation categories.
type KindedError struct {
	Kind    ErrorKind
	Message string
	Path    string
	Err     error
}

func (e *KindedError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *KindedError) Unwrap() error {
	return e.Err
}

func newKinded(kind ErrorKind, path, msg string, err error) *KindedError {
	return &KindedError{Kind: kind, Message: msg, Path: path, Err: err}
}

func NotFound(path string) error {
	return newKinded(KindNotFound, path, "no such entry", nil)
}

func NotADirectory(path string) error {
	return newKinded(KindNotADirectory, path, "not a directory", nil)
}

func IsADirectory(path string) error {
	return newKinded(KindIsADirectory, path, "is a directory", nil)
}

func AlreadyExists(path string) error {
	return newKinded(KindAlreadyExists, path, "already exists", nil)
}

func DirectoryNotEmpty(path string) error {
	return newKinded(KindDirectoryNotEmpty, path, "directory not empty", nil)
}

func InvalidArgument(path, reason string) error {
	return newKinded(KindInvalidArgument, path, reason, nil)
}

func PermissionDenied(path string) error {
	return newKinded(KindPermissionDenied, path, "operation not permitted inside reserved subtree", nil)
}

func Io(path string, cause error) error {
	return newKinded(KindIo, path, "I/O error", cause)
}

func BackingStoreUnavailable(path string, cause error) error {
	return newKinded(KindBackingStoreUnavailable, path, "backing store unavailable", cause)
}

func DataCorruption(path string, cause error) error {
	return newKinded(KindDataCorruption, path, "data corruption", cause)
}

func Cancelled(path string) error {
	return newKinded(KindCancelled, path, "operation cancelled", nil)
}

func CatalogLocked(path string) error {
	return newKinded(KindCatalogLocked, path, "catalog owned by another process", nil)
}

// KindOf returns the ErrorKind carried by err, or KindUnknown if err does not
// wrap a *KindedError.
func KindOf(err error) ErrorKind {
	var ke *KindedError
	if As(err, &ke) {
		return ke.Kind
	}
	return KindUnknown
}

// Is helpers mirroring the teacher's IsNetworkError/IsNotFoundError family.
func IsNotFound(err error) bool                { return KindOf(err) == KindNotFound }
func IsNotADirectory(err error) bool            { return KindOf(err) == KindNotADirectory }
func IsIsADirectory(err error) bool             { return KindOf(err) == KindIsADirectory }
func IsAlreadyExists(err error) bool            { return KindOf(err) == KindAlreadyExists }
func IsDirectoryNotEmpty(err error) bool        { return KindOf(err) == KindDirectoryNotEmpty }
func IsInvalidArgument(err error) bool          { return KindOf(err) == KindInvalidArgument }
func IsPermissionDenied(err error) bool         { return KindOf(err) == KindPermissionDenied }
func IsIo(err error) bool                       { return KindOf(err) == KindIo }
func IsBackingStoreUnavailable(err error) bool  { return KindOf(err) == KindBackingStoreUnavailable }
func IsDataCorruption(err error) bool           { return KindOf(err) == KindDataCorruption }
func IsCancelled(err error) bool                { return KindOf(err) == KindCancelled }
func IsCatalogLocked(err error) bool            { return KindOf(err) == KindCatalogLocked }
