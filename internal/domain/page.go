package domain

const (
	// DefaultPageLimit applies when a listing does not ask for a page size.
	DefaultPageLimit = 20
	// MaxPageLimit bounds a single trip listing query.
	MaxPageLimit = 100
)

// PaginationParams selects one page of an owner's trips. Page starts at 1.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams turns optional query values into PaginationParams.
// Missing or non-positive values fall back to page 1 and DefaultPageLimit;
// larger limits are clamped to MaxPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultPageLimit}
	if page != nil && *page > 0 {
		p.Page = *page
	}
	if limit != nil && *limit > 0 {
		p.Limit = min(*limit, MaxPageLimit)
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
