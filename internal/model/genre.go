package model

import (
	"strconv"
	"strings"
)

// Genre identifies one of the catalog's genre columns on the movies table.
// The values are stable: they index Genres and order the columns in SQL.
type Genre int

const (
	ActionAdventure Genre = iota
	AnimeFeatures
	AnimeSeries
	BritishTV
	ChildrenFamily
	ClassicCultTV
	ClassicMovies
	Comedies
	CrimeTV
	CultMovies
	Documentaries
	Docuseries
	Dramas
	FaithSpirituality
	HorrorMovies
	IndependentMovies
	InternationalMovies
	InternationalTV
	KidsTV
	KoreanTV
	LGBTQMovies
	MusicMusicals
	RealityTV
	RomanticMovies
	RomanticTV
	ScienceNatureTV
	SciFiFantasy
	SpanishLanguageTV
	SportsMovies
	StandUpComedy
	TeenTV
	Thrillers
	TVActionAdventure
	TVComedies
	TVDramas
	TVMysteries

	// NumGenres is the number of genre columns.
	NumGenres int = iota
)

var genreInfo = [NumGenres]struct {
	column string
	name   string
}{
	ActionAdventure:     {"action_adventure", "Action & Adventure"},
	AnimeFeatures:       {"anime_features", "Anime Features"},
	AnimeSeries:         {"anime_series", "Anime Series"},
	BritishTV:           {"british_tv", "British TV Shows"},
	ChildrenFamily:      {"children_family", "Children & Family Movies"},
	ClassicCultTV:       {"classic_cult_tv", "Classic & Cult TV"},
	ClassicMovies:       {"classic_movies", "Classic Movies"},
	Comedies:            {"comedies", "Comedies"},
	CrimeTV:             {"crime_tv", "Crime TV Shows"},
	CultMovies:          {"cult_movies", "Cult Movies"},
	Documentaries:       {"documentaries", "Documentaries"},
	Docuseries:          {"docuseries", "Docuseries"},
	Dramas:              {"dramas", "Dramas"},
	FaithSpirituality:   {"faith_spirituality", "Faith & Spirituality"},
	HorrorMovies:        {"horror_movies", "Horror Movies"},
	IndependentMovies:   {"independent_movies", "Independent Movies"},
	InternationalMovies: {"international_movies", "International Movies"},
	InternationalTV:     {"international_tv", "International TV Shows"},
	KidsTV:              {"kids_tv", "Kids' TV"},
	KoreanTV:            {"korean_tv", "Korean TV Shows"},
	LGBTQMovies:         {"lgbtq_movies", "LGBTQ Movies"},
	MusicMusicals:       {"music_musicals", "Music & Musicals"},
	RealityTV:           {"reality_tv", "Reality TV"},
	RomanticMovies:      {"romantic_movies", "Romantic Movies"},
	RomanticTV:          {"romantic_tv", "Romantic TV Shows"},
	ScienceNatureTV:     {"science_nature_tv", "Science & Nature TV"},
	SciFiFantasy:        {"scifi_fantasy", "Sci-Fi & Fantasy"},
	SpanishLanguageTV:   {"spanish_language_tv", "Spanish-Language TV Shows"},
	SportsMovies:        {"sports_movies", "Sports Movies"},
	StandUpComedy:       {"standup_comedy", "Stand-Up Comedy"},
	TeenTV:              {"teen_tv", "Teen TV Shows"},
	Thrillers:           {"thrillers", "Thrillers"},
	TVActionAdventure:   {"tv_action_adventure", "TV Action & Adventure"},
	TVComedies:          {"tv_comedies", "TV Comedies"},
	TVDramas:            {"tv_dramas", "TV Dramas"},
	TVMysteries:         {"tv_mysteries", "TV Mysteries"},
}

// Column returns the movies column that stores this genre's flag.
func (g Genre) Column() string {
	if !g.valid() {
		return ""
	}
	return genreInfo[g].column
}

// String returns the display name used by the catalog source.
func (g Genre) String() string {
	if !g.valid() {
		return "Genre(" + strconv.Itoa(int(g)) + ")"
	}
	return genreInfo[g].name
}

func (g Genre) valid() bool {
	return g >= 0 && int(g) < NumGenres
}

// AllGenres returns every genre in column order.
func AllGenres() []Genre {
	all := make([]Genre, NumGenres)
	for i := range all {
		all[i] = Genre(i)
	}
	return all
}

// ParseGenre resolves a column name ("scifi_fantasy") or a display name
// ("Sci-Fi & Fantasy"), case-insensitively.
func ParseGenre(s string) (Genre, bool) {
	s = strings.TrimSpace(s)
	for i, info := range genreInfo {
		if strings.EqualFold(s, info.column) || strings.EqualFold(s, info.name) {
			return Genre(i), true
		}
	}
	return 0, false
}

// Genres holds one tri-state flag per genre. Flags are independent: a movie
// can be in several genres at once, and an absent flag stays absent.
type Genres [NumGenres]NullFlag

// Flag returns the raw tri-state flag.
func (gs *Genres) Flag(g Genre) NullFlag {
	if !g.valid() {
		return NullFlag{}
	}
	return gs[g]
}

// Set marks the genre as present (in=true) or explicitly absent (in=false).
func (gs *Genres) Set(g Genre, in bool) {
	if g.valid() {
		gs[g] = Flag(in)
	}
}

// Clear makes the genre unclassified again.
func (gs *Genres) Clear(g Genre) {
	if g.valid() {
		gs[g] = NullFlag{}
	}
}

// Has reports whether the movie is in the genre. Unclassified counts as no.
func (gs *Genres) Has(g Genre) bool {
	f := gs.Flag(g)
	return f.Valid && f.In
}

// Members lists the genres flagged 1, in column order.
func (gs *Genres) Members() []Genre {
	var out []Genre
	for i := range gs {
		if gs[i].Valid && gs[i].In {
			out = append(out, Genre(i))
		}
	}
	return out
}
