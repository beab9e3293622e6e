package audit

import (
	"context"
	"fmt"
	"time"
)

// RepositoryPort defines the read side of the audit trail.
type RepositoryPort interface {
	ListEntries(ctx context.Context, f Filters, offset, limit int) ([]Entry, error)
}

// Filters narrows the trail. Zero values mean "no filter".
type Filters struct {
	Actor   string
	Module  string
	Outcome Outcome
	From    time.Time
	To      time.Time

	Page     int
	PageSize int
}

// PagingInfo describes the returned window.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a trail window with paging information.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}

// Service coordinates reads of the audit trail.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns entries most-recent-first, a read-only snapshot per call.
func (s *Service) List(ctx context.Context, filters Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	entries, err := s.repo.ListEntries(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

// Export returns the full filtered trail without paging.
func (s *Service) Export(ctx context.Context, filters Filters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	const window = 500
	var all []Entry
	offset := 0
	for {
		entries, err := s.repo.ListEntries(ctx, filters, offset, window)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
		if len(entries) < window {
			return all, nil
		}
		offset += window
	}
}
