package services

import "fmt"

// Page is one page of a listed collection.
type Page[T any] struct {
	Items  []*T `json:"items"`
	Total  int  `json:"total"`
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
}

func newPage[T any](items []*T, total, limit, offset int) *Page[T] {
	if items == nil {
		items = []*T{}
	}
	return &Page[T]{Items: items, Total: total, Limit: limit, Offset: offset}
}

// listVariant is the cache variant for a filtered, paged list.
func listVariant(parts ...any) string {
	return fmt.Sprintf("list%v", parts)
}
