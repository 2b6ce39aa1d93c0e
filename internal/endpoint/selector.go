package endpoint

// Selector picks which movie listing Movies resolves to. The cases are
// SearchText, CategoryName and GenreID; a nil Selector means none.
type Selector interface {
	selector()
}

// SearchText selects a full-text movie search.
type SearchText string

// CategoryName selects a named TMDB list such as "top_rated" or "upcoming".
type CategoryName string

// GenreID selects movies discovered by TMDB genre id.
type GenreID int

func (SearchText) selector()   {}
func (CategoryName) selector() {}
func (GenreID) selector()      {}

// normalize maps empty values to the nil selector.
func normalize(sel Selector) Selector {
	switch s := sel.(type) {
	case SearchText:
		if s == "" {
			return nil
		}
	case CategoryName:
		if s == "" {
			return nil
		}
	case GenreID:
		if s == 0 {
			return nil
		}
	}
	return sel
}

// MovieListQuery is what callers usually have in hand: any combination of
// search text, category and genre, plus a page.
type MovieListQuery struct {
	Search   string
	Category string
	Genre    int
	Page     int
}

// Selector returns the single selector the query resolves to. Search wins
// over category, category over genre; with none set the result is nil.
func (q MovieListQuery) Selector() Selector {
	switch {
	case q.Search != "":
		return SearchText(q.Search)
	case q.Category != "":
		return CategoryName(q.Category)
	case q.Genre != 0:
		return GenreID(q.Genre)
	default:
		return nil
	}
}

// ResolveMovies is shorthand for r.Movies(q.Selector(), q.Page).
func (r *Resolver) ResolveMovies(q MovieListQuery) Target {
	return r.Movies(q.Selector(), q.Page)
}
