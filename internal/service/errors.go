package service

import "errors"

var (
	ErrProductNotFound         = errors.New("product not found")
	ErrProductUnavailable      = errors.New("product unavailable")
	ErrVariantNotFound         = errors.New("variant not found")
	ErrOptionNotFound          = errors.New("modifier option not found")
	ErrIncompleteConfiguration = errors.New("required modifiers not selected")
	ErrInvalidLocation         = errors.New("invalid location")
	ErrInvalidSession          = errors.New("invalid session")
)
