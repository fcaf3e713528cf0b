// Package pagination provides the page clamping and offset math used by
// listing endpoints.
package pagination

// Pagination describes one page of a larger result set.
type Pagination struct {
	TotalPages   int `json:"total_pages"`
	CurrentPage  int `json:"current_page"`
	Offset       int `json:"-"`
	ItemsPerPage int `json:"items_per_page"`
	TotalItems   int `json:"total_items"`
}

// Paginate clamps requestedPage into [1, ceil(totalItems/itemsPerPage)].
// The minimum page is 1 even when there are no results, so an empty listing
// still renders as page 1 with offset 0.
func Paginate(totalItems, itemsPerPage, requestedPage int) Pagination {
	totalPages := (totalItems + itemsPerPage - 1) / itemsPerPage

	page := requestedPage
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	return Pagination{
		TotalPages:   totalPages,
		CurrentPage:  page,
		Offset:       (page - 1) * itemsPerPage,
		ItemsPerPage: itemsPerPage,
		TotalItems:   totalItems,
	}
}
