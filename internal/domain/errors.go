// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate indicates a name collision on create.
var ErrDuplicate = errors.New("already exists")

// ErrValidation indicates a malformed or inconsistent request
// (unknown team reference, cycle in the team hierarchy, bad role config).
var ErrValidation = errors.New("validation failed")

// ErrPermission indicates the acting subject's role denies the operation.
var ErrPermission = errors.New("permission denied")

// ErrPersistence indicates a journal write failed. The operation that
// triggered it is aborted before any in-memory state changes.
var ErrPersistence = errors.New("persistence failed")
