// Package usecase はヘッダー検索ドロップダウンのライブビューを実装します。
package usecase

import "errors"

var (
	// ErrInvalidKeyword is returned for empty or overly long keywords.
	ErrInvalidKeyword = errors.New("invalid search keyword")

	// ErrSearchSuperseded is returned when a newer search or Clear for the same
	// user replaced the dropdown while it was loading.
	ErrSearchSuperseded = errors.New("search superseded by a newer request")
)
