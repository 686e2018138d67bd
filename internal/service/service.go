package service

import (
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func utcNow() time.Time {
	return time.Now().UTC()
}

// PageParams is the pagination part of list requests. Page is 1-based.
type PageParams struct {
	Page  int
	Limit int
}

func (p PageParams) normalize() (page, limit, offset int) {
	page, limit = p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

// Page is a slice of results together with paging metadata.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func newPage[T any](items []T, total int64, page, limit int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return &Page[T]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}
}

func permissionsOf(user *model.User) auth.Permissions {
	if user == nil || !user.IsActive {
		return auth.Permissions{}
	}
	return auth.PermissionsFor(user.Role)
}
