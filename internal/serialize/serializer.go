// Package serialize turns entity graphs into plain documents.
//
// The graph loaders in the repository layer set back-references, so a loaded
// user can reach itself again through user.Ratings[i].User. Handing that to
// encoding/json would recurse forever. The Serializer walks the graph
// depth-first and builds a tree of maps and slices instead, with two limits
// that apply independently:
//
//   - CYCLES: an object already on the current path (same pointer) is left
//     out instead of being expanded again.
//   - DEPTH: the root is depth 1. Anything deeper than MaxDepth is left out
//     and the document is marked Truncated. This is not an error: the call
//     still returns the rest of the tree.
//
// The walk only reads what is already in memory. A nil relationship slice was
// never loaded and is omitted; a loaded empty one becomes [].
//
// Secrets (password hashes, reset token values) are never written.
package serialize

import (
	"errors"
	"fmt"
	"time"

	"github.com/sakif/moviecatalog/internal/model"
)

// DefaultMaxDepth bounds traversal when Config.MaxDepth is not set.
const DefaultMaxDepth = 64

// ErrDepthExceeded is reported by Document.Err when a subtree was cut off.
var ErrDepthExceeded = errors.New("serialize: maximum depth exceeded")

// Config is passed explicitly at each call site so different endpoints can
// use different limits.
type Config struct {
	MaxDepth    int  // <= 0 means DefaultMaxDepth
	ElideCycles bool // leave out objects already on the current path
	PublicUsers bool // users show only id and name
}

// DefaultConfig is what the HTTP handlers use unless configured otherwise.
func DefaultConfig() Config {
	return Config{MaxDepth: DefaultMaxDepth, ElideCycles: true}
}

type Serializer struct {
	cfg Config
}

func New(cfg Config) *Serializer {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Serializer{cfg: cfg}
}

// Public returns a serializer for documents shown to someone other than the
// user they describe.
func (s *Serializer) Public() *Serializer {
	cfg := s.cfg
	cfg.PublicUsers = true
	return &Serializer{cfg: cfg}
}

// Config returns the effective configuration.
func (s *Serializer) Config() Config {
	return s.cfg
}

// Document is the result of a Serialize call.
type Document struct {
	Value     any  // map[string]any, []any, or nil
	Truncated bool // some subtree was deeper than MaxDepth
	Elided    int  // number of references left out because of a cycle
}

// Err returns ErrDepthExceeded when the document was truncated. Callers that
// treat truncation as lossy-but-fine can ignore it.
func (d *Document) Err() error {
	if d.Truncated {
		return ErrDepthExceeded
	}
	return nil
}

// Serialize converts the roots into a Document.
//
// One root produces a single object (or array, for a slice root). Several
// roots produce an array with one element per root. Each root starts with an
// empty path, so two roots sharing an object both show it.
func (s *Serializer) Serialize(roots ...any) (*Document, error) {
	doc := &Document{}
	w := &walker{cfg: s.cfg, path: make(map[any]struct{}), doc: doc}

	if len(roots) == 1 {
		v, err := w.root(roots[0])
		if err != nil {
			return nil, err
		}
		doc.Value = v
		return doc, nil
	}

	out := make([]any, 0, len(roots))
	for _, r := range roots {
		v, err := w.root(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	doc.Value = out
	return doc, nil
}

type walker struct {
	cfg  Config
	path map[any]struct{}
	doc  *Document
}

func (w *walker) root(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *model.User:
		return orNil(w.user(x, 1)), nil
	case []*model.User:
		return collect(x, w.user, 1), nil
	case []model.User:
		return collectValues(x, w.user, 1), nil
	case *model.Movie:
		return orNil(w.movie(x, 1)), nil
	case []*model.Movie:
		return collect(x, w.movie, 1), nil
	case []model.Movie:
		return collectValues(x, w.movie, 1), nil
	case *model.Rating:
		return orNil(w.rating(x, 1)), nil
	case []*model.Rating:
		return collect(x, w.rating, 1), nil
	case []model.Rating:
		return collectValues(x, w.rating, 1), nil
	case *model.MovieList:
		return orNil(w.movieList(x, 1)), nil
	case []*model.MovieList:
		return collect(x, w.movieList, 1), nil
	case []model.MovieList:
		return collectValues(x, w.movieList, 1), nil
	case *model.MovieListItem:
		return orNil(w.listItem(x, 1)), nil
	case []*model.MovieListItem:
		return collect(x, w.listItem, 1), nil
	case []model.MovieListItem:
		return collectValues(x, w.listItem, 1), nil
	case *model.PasswordResetToken:
		return orNil(w.resetToken(x, 1)), nil
	case *model.RatingStats:
		return w.ratingStats(x), nil
	case model.RatingStats:
		return w.ratingStats(&x), nil
	case model.User, model.Movie, model.Rating, model.MovieList, model.MovieListItem, model.PasswordResetToken:
		// A copy has a new address, so back-references into the original
		// would not be seen as a cycle.
		return nil, fmt.Errorf("serialize: %T must be passed by pointer", v)
	default:
		return nil, fmt.Errorf("serialize: unsupported type %T", v)
	}
}

// enter is called before an entity is expanded. It returns false when the
// entity must be left out.
func (w *walker) enter(ptr any, depth int) bool {
	if depth > w.cfg.MaxDepth {
		w.doc.Truncated = true
		return false
	}
	if w.cfg.ElideCycles {
		if _, onPath := w.path[ptr]; onPath {
			w.doc.Elided++
			return false
		}
	}
	w.path[ptr] = struct{}{}
	return true
}

func (w *walker) leave(ptr any) {
	delete(w.path, ptr)
}

// collect expands each element one level down. Left-out elements are dropped
// from the array.
func collect[T any](items []*T, fn func(*T, int) (map[string]any, bool), depth int) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		if m, ok := fn(it, depth); ok {
			out = append(out, m)
		}
	}
	return out
}

func collectValues[T any](items []T, fn func(*T, int) (map[string]any, bool), depth int) []any {
	out := make([]any, 0, len(items))
	for i := range items {
		if m, ok := fn(&items[i], depth); ok {
			out = append(out, m)
		}
	}
	return out
}

func orNil(m map[string]any, ok bool) any {
	if !ok {
		return nil
	}
	return m
}

// setOpt writes optional fields only when present.
func setOpt[T any](m map[string]any, key string, v *T) {
	if v != nil {
		m[key] = *v
	}
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func (w *walker) user(u *model.User, depth int) (map[string]any, bool) {
	if u == nil || !w.enter(u, depth) {
		return nil, false
	}
	defer w.leave(u)

	if w.cfg.PublicUsers {
		return map[string]any{"id": u.ID, "name": u.Name}, true
	}

	m := map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"netflix":    u.Netflix,
		"primeVideo": u.PrimeVideo,
		"disneyPlus": u.DisneyPlus,
		"hulu":       u.Hulu,
		"hboMax":     u.HBOMax,
		"appleTv":    u.AppleTV,
		"role":       string(u.Role),
	}
	setOpt(m, "phone", u.Phone)
	setOpt(m, "age", u.Age)
	setOpt(m, "gender", u.Gender)
	setOpt(m, "location", u.Location)

	if u.Ratings != nil {
		m["ratings"] = collect(u.Ratings, w.rating, depth+1)
	}
	if u.Lists != nil {
		m["lists"] = collect(u.Lists, w.movieList, depth+1)
	}
	return m, true
}

func (w *walker) movie(mv *model.Movie, depth int) (map[string]any, bool) {
	if mv == nil || !w.enter(mv, depth) {
		return nil, false
	}
	defer w.leave(mv)

	m := map[string]any{
		"id":    mv.ID,
		"title": mv.Title,
	}
	setOpt(m, "type", mv.Type)
	setOpt(m, "director", mv.Director)
	setOpt(m, "cast", mv.Cast)
	setOpt(m, "country", mv.Country)
	setOpt(m, "releaseYear", mv.ReleaseYear)
	setOpt(m, "rating", mv.Rating)
	setOpt(m, "duration", mv.Duration)
	setOpt(m, "description", mv.Description)
	setOpt(m, "posterUrl", mv.PosterURL)

	// Unclassified genres are left out so they never read as "not in genre".
	genres := map[string]any{}
	for _, g := range model.AllGenres() {
		if f := mv.Genres.Flag(g); f.Valid {
			genres[g.Column()] = f.Any()
		}
	}
	m["genres"] = genres

	if mv.Ratings != nil {
		m["ratings"] = collect(mv.Ratings, w.rating, depth+1)
	}
	return m, true
}

func (w *walker) rating(r *model.Rating, depth int) (map[string]any, bool) {
	if r == nil || !w.enter(r, depth) {
		return nil, false
	}
	defer w.leave(r)

	m := map[string]any{
		"userId":  r.UserID,
		"movieId": r.MovieID,
		"rating":  r.Value,
	}
	if r.RatedAt != nil {
		m["ratedAt"] = utc(*r.RatedAt)
	}
	if u, ok := w.user(r.User, depth+1); ok {
		m["user"] = u
	}
	if mv, ok := w.movie(r.Movie, depth+1); ok {
		m["movie"] = mv
	}
	return m, true
}

func (w *walker) movieList(l *model.MovieList, depth int) (map[string]any, bool) {
	if l == nil || !w.enter(l, depth) {
		return nil, false
	}
	defer w.leave(l)

	m := map[string]any{
		"id":        l.ID,
		"userId":    l.UserID,
		"name":      l.Name,
		"createdAt": utc(l.CreatedAt),
		"isPublic":  l.IsPublic,
	}
	setOpt(m, "description", l.Description)

	if u, ok := w.user(l.User, depth+1); ok {
		m["user"] = u
	}
	if l.Items != nil {
		m["items"] = collect(l.Items, w.listItem, depth+1)
	}
	return m, true
}

func (w *walker) listItem(it *model.MovieListItem, depth int) (map[string]any, bool) {
	if it == nil || !w.enter(it, depth) {
		return nil, false
	}
	defer w.leave(it)

	m := map[string]any{
		"listId":    it.ListID,
		"movieId":   it.MovieID,
		"dateAdded": utc(it.DateAdded),
	}
	if l, ok := w.movieList(it.List, depth+1); ok {
		m["list"] = l
	}
	if mv, ok := w.movie(it.Movie, depth+1); ok {
		m["movie"] = mv
	}
	return m, true
}

func (w *walker) resetToken(t *model.PasswordResetToken, depth int) (map[string]any, bool) {
	if t == nil || !w.enter(t, depth) {
		return nil, false
	}
	defer w.leave(t)

	m := map[string]any{
		"id":         t.ID,
		"userId":     t.UserID,
		"expiryDate": utc(t.ExpiryDate),
		"used":       t.Used,
	}
	if u, ok := w.user(t.User, depth+1); ok {
		m["user"] = u
	}
	return m, true
}

// ratingStats has no references, so it never touches the path.
func (w *walker) ratingStats(s *model.RatingStats) any {
	if s == nil {
		return nil
	}
	return map[string]any{
		"movieId": s.MovieID,
		"count":   s.Count,
		"average": s.Average,
	}
}
