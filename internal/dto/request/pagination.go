package request

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// PageRequest selects one page of a listing. Zero values fall back to the
// first page of defaultPerPage rows.
type PageRequest struct {
	Page    int `json:"page" validate:"omitempty,min=1"`
	PerPage int `json:"per_page" validate:"omitempty,min=1,max=100"`
}

func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage < 1:
		p.PerPage = defaultPerPage
	case p.PerPage > maxPerPage:
		p.PerPage = maxPerPage
	}
	return p
}

func (p PageRequest) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PerPage
}
