package bookstore

import "fmt"

type Genre string

const (
	GenreGeneral      Genre = "General"
	GenreFiction      Genre = "Fiction"
	GenreNonFiction   Genre = "Non-Fiction"
	GenreSciFi        Genre = "Sci-Fi"
	GenreFantasy      Genre = "Fantasy"
	GenreMotivational Genre = "Motivational"
	GenreBiography    Genre = "Biography"
	GenreHistory      Genre = "History"
	GenreScience      Genre = "Science"
	GenreRomance      Genre = "Romance"
	GenreThriller     Genre = "Thriller"
	GenreMystery      Genre = "Mystery"
	GenreHorror       Genre = "Horror"
)

var genres = map[Genre]bool{
	GenreGeneral: true, GenreFiction: true, GenreNonFiction: true, GenreSciFi: true,
	GenreFantasy: true, GenreMotivational: true, GenreBiography: true, GenreHistory: true,
	GenreScience: true, GenreRomance: true, GenreThriller: true, GenreMystery: true,
	GenreHorror: true,
}

// NormalizeGenres validates tags and drops duplicates, keeping first-seen order.
// An empty list becomes [General].
func NormalizeGenres(in []Genre) ([]Genre, error) {
	if len(in) == 0 {
		return []Genre{GenreGeneral}, nil
	}
	seen := make(map[Genre]bool, len(in))
	out := make([]Genre, 0, len(in))
	for _, g := range in {
		if !genres[g] {
			return nil, Invalid("genre", fmt.Sprintf("unknown genre %q", g))
		}
		if seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out, nil
}
