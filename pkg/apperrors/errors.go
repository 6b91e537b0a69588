package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTaskTerminal    = errors.New("task already in terminal state")
	ErrBuiltinTemplate = errors.New("builtin templates cannot be deleted")

	// Target database unreachable or credentials rejected.
	ErrConnection = errors.New("datasource connection failed")
	// Introspection requested for an engine without a registered dialect adapter.
	ErrUnsupportedDialect = errors.New("unsupported dialect")

	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateRender   = errors.New("template render failed")
	ErrFilesystem       = errors.New("filesystem operation failed")
)
