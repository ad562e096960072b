package model

// Book is a catalog entry. Only IsAvailable is touched by the loan lifecycle.
type Book struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Price       float64 `json:"price"`
	IsAvailable int     `json:"is_available"`
	CoverMime   string  `json:"cover_mime,omitempty"`
}

// Availability values stored in Book.IsAvailable.
const (
	OnLoan    = 0
	Available = 1
)

// BookUpdate carries the fields of an edit. Nil fields are left untouched.
type BookUpdate struct {
	Title  *string  `json:"title,omitempty"`
	Author *string  `json:"author,omitempty"`
	Price  *float64 `json:"price,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u BookUpdate) Empty() bool {
	return u.Title == nil && u.Author == nil && u.Price == nil
}

// Apply overwrites the fields of b that are set in u.
func (u BookUpdate) Apply(b *Book) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.Price != nil {
		b.Price = *u.Price
	}
}
