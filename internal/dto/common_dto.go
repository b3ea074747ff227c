package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// DataResponse wraps every successful payload.
type DataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type Pagination struct {
	CurrentPage  int   `json:"current_page"`
	TotalPages   int   `json:"total_pages"`
	TotalRecords int64 `json:"total_records"`
}

// NewPagination derives the page count from the filtered total.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{CurrentPage: page, TotalPages: pages, TotalRecords: total}
}

// PageQuery is the common page/limit/search/sort query string.
type PageQuery struct {
	Page   int
	Limit  int
	Search string
	Sort   string
}

const maxPageLimit = 100

// Normalize applies defaults and bounds.
func (q *PageQuery) Normalize(defaultLimit int) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}
}

func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Like wraps the search term for a LIKE clause.
func (q PageQuery) Like() string {
	return "%" + q.Search + "%"
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
