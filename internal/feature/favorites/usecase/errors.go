// Package usecase は関心銘柄フィーチャーのビジネスロジックを実装します。
package usecase

import "errors"

var (
	// ErrNotFound is returned when a group or stock does not exist for the user.
	ErrNotFound = errors.New("favorite not found")

	// ErrAlreadyExists is returned when the stock is already in the group.
	ErrAlreadyExists = errors.New("stock already exists in group")

	// ErrInvalidInput is returned for empty names, unknown markets and similar input errors.
	ErrInvalidInput = errors.New("invalid input")

	// ErrWatchSuperseded is returned by Watch when another Watch, Unwatch or
	// group deletion for the same user replaced the view while it was loading.
	ErrWatchSuperseded = errors.New("watch superseded by a newer request")
)
