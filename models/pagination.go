package models

import (
	"fmt"
	"net/url"
	"strconv"
)

// List defaults and limits shared by the server and the client.
const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100

	SortUpdatedAt = "updated_at"
	SortCreatedAt = "created_at"
	SortID        = "id"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Pagination is the metadata block of every list envelope.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// NewPagination computes has_next/has_prev for a page of a list of total items.
func NewPagination(page, perPage, total int) Pagination {
	return Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: page*perPage < total,
		HasPrev: page > 1,
	}
}

// Offset returns the SQL OFFSET for page/perPage.
func Offset(page, perPage int) int {
	return (page - 1) * perPage
}

// ListResponse is the {data, pagination} envelope.
type ListResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ItemResponse is the {data} envelope.
type ItemResponse[T any] struct {
	Data T `json:"data"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ListParams are the query parameters of a sortable, paginated list.
//
// They round-trip through url.Values so a list view can keep its state in a
// URL and restore it later.
type ListParams struct {
	Page    int
	PerPage int
	Sort    string
	Order   string
}

// DefaultListParams returns page 1, 20 per page, newest update first.
func DefaultListParams() ListParams {
	return ListParams{
		Page:    DefaultPage,
		PerPage: DefaultPerPage,
		Sort:    SortUpdatedAt,
		Order:   OrderDesc,
	}
}

// Normalize fills zero fields with defaults and clamps per_page.
func (p ListParams) Normalize() ListParams {
	d := DefaultListParams()
	if p.Page < 1 {
		p.Page = d.Page
	}
	if p.PerPage < 1 {
		p.PerPage = d.PerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	if p.Sort == "" {
		p.Sort = d.Sort
	}
	if p.Order == "" {
		p.Order = d.Order
	}
	return p
}

// Validate rejects unknown sort columns and orders.
func (p ListParams) Validate() error {
	switch p.Sort {
	case SortUpdatedAt, SortCreatedAt, SortID:
	default:
		return fmt.Errorf("unsupported sort %q", p.Sort)
	}
	switch p.Order {
	case OrderAsc, OrderDesc:
	default:
		return fmt.Errorf("unsupported order %q", p.Order)
	}
	return nil
}

// Query encodes the params as page, per_page, sort and order.
func (p ListParams) Query() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(p.PerPage))
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Order != "" {
		q.Set("order", p.Order)
	}
	return q
}

// ParseListParams reads list params from a query string. Missing values get
// defaults; malformed numbers and unknown sort/order values are errors.
func ParseListParams(q url.Values) (ListParams, error) {
	p := ListParams{
		Sort:  q.Get("sort"),
		Order: q.Get("order"),
	}

	var err error
	if v := q.Get("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil || p.Page < 1 {
			return ListParams{}, fmt.Errorf("page must be a positive integer")
		}
	}
	if v := q.Get("per_page"); v != "" {
		if p.PerPage, err = strconv.Atoi(v); err != nil || p.PerPage < 1 {
			return ListParams{}, fmt.Errorf("per_page must be a positive integer")
		}
	}

	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return ListParams{}, err
	}
	return p, nil
}
