package cache

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sakif/moviecatalog/internal/model"
)

// cachedMovie is the wire shape of a cached movie. Genres are keyed by column
// name and only classified genres are present, so a cache entry written
// before a genre column is added still decodes.
type cachedMovie struct {
	ID          string          `msgpack:"id"`
	Title       string          `msgpack:"title"`
	Type        *string         `msgpack:"type,omitempty"`
	Director    *string         `msgpack:"director,omitempty"`
	Cast        *string         `msgpack:"cast,omitempty"`
	Country     *string         `msgpack:"country,omitempty"`
	ReleaseYear *int            `msgpack:"release_year,omitempty"`
	Rating      *string         `msgpack:"rating,omitempty"`
	Duration    *string         `msgpack:"duration,omitempty"`
	Description *string         `msgpack:"description,omitempty"`
	PosterURL   *string         `msgpack:"poster_url,omitempty"`
	Genres      map[string]bool `msgpack:"genres,omitempty"`
}

// encodeMovie drops navigation fields. Only the row itself is cached.
func encodeMovie(m *model.Movie) ([]byte, error) {
	cm := cachedMovie{
		ID:          m.ID,
		Title:       m.Title,
		Type:        m.Type,
		Director:    m.Director,
		Cast:        m.Cast,
		Country:     m.Country,
		ReleaseYear: m.ReleaseYear,
		Rating:      m.Rating,
		Duration:    m.Duration,
		Description: m.Description,
		PosterURL:   m.PosterURL,
	}
	for _, g := range model.AllGenres() {
		if f := m.Genres.Flag(g); f.Valid {
			if cm.Genres == nil {
				cm.Genres = make(map[string]bool)
			}
			cm.Genres[g.Column()] = f.In
		}
	}
	return msgpack.Marshal(&cm)
}

func decodeMovie(raw []byte) (*model.Movie, error) {
	var cm cachedMovie
	if err := msgpack.Unmarshal(raw, &cm); err != nil {
		return nil, err
	}

	m := &model.Movie{
		ID:          cm.ID,
		Title:       cm.Title,
		Type:        cm.Type,
		Director:    cm.Director,
		Cast:        cm.Cast,
		Country:     cm.Country,
		ReleaseYear: cm.ReleaseYear,
		Rating:      cm.Rating,
		Duration:    cm.Duration,
		Description: cm.Description,
		PosterURL:   cm.PosterURL,
	}
	for col, in := range cm.Genres {
		if g, ok := model.ParseGenre(col); ok {
			m.Genres.Set(g, in)
		}
	}
	return m, nil
}
