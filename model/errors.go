package model

import (
	perrors "github.com/jmgilman/go/errors"
)

var (
	ErrFormatAlreadyRegistered = perrors.New(perrors.CodeAlreadyExists, "format already registered")
	ErrFormatNotRegistered     = perrors.New(perrors.CodeNotFound, "format not registered")
	ErrInvalidFormat           = perrors.New(perrors.CodeInvalidInput, "invalid format")

	// ErrSourceUnavailable means the entity gave neither an image nor data.
	ErrSourceUnavailable = perrors.New(perrors.CodeNotFound, "original image unavailable")
	ErrTransformFailed   = perrors.New(perrors.CodeExecutionFailed, "transform failed")

	// ErrDecode on a disk hit is never returned to callers: the artifact is regenerated instead.
	ErrDecode    = perrors.New(perrors.CodeInvalidInput, "artifact decode failed")
	ErrStorageIO = perrors.New(perrors.CodeUnavailable, "disk storage failure")

	ErrClosed = perrors.New(perrors.CodeUnavailable, "cache is closed")
)
