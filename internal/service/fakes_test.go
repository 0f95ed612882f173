package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/cache"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/notify"
	"github.com/sakif/moviecatalog/internal/recommend"
	"github.com/sakif/moviecatalog/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory repository.Store. It reproduces the error kinds
// of the real store (Conflict, ReferenceNotFound, NotFound, token kinds) but
// none of its SQL. The sqldb tests cover the real thing.
type fakeStore struct {
	mu sync.Mutex

	users   map[int64]*model.User
	movies  map[string]*model.Movie
	ratings map[string]*model.Rating
	lists   map[int64]*model.MovieList
	items   map[string]*model.MovieListItem
	tokens  map[string]*model.PasswordResetToken
	nextID  int64

	// set to simulate a database failure
	failWith error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[int64]*model.User{},
		movies:  map[string]*model.Movie{},
		ratings: map[string]*model.Rating{},
		lists:   map[int64]*model.MovieList{},
		items:   map[string]*model.MovieListItem{},
		tokens:  map[string]*model.PasswordResetToken{},
		nextID:  1,
	}
}

func (f *fakeStore) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func rkey(userID int64, movieID string) string { return fmt.Sprintf("%d/%s", userID, movieID) }
func ikey(listID int64, movieID string) string { return fmt.Sprintf("%d/%s", listID, movieID) }
func itoa(id int64) string                     { return strconv.FormatInt(id, 10) }

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	u.Email = model.NormalizeEmail(u.Email)
	for _, other := range f.users {
		if other.Email == u.Email {
			return apperror.Conflict("user", "email", u.Email)
		}
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.ID = f.id()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", itoa(id))
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) UpdateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.users[u.ID]
	if !ok {
		return apperror.NotFound("user", itoa(u.ID))
	}
	u.Email = model.NormalizeEmail(u.Email)
	for _, other := range f.users {
		if other.ID != u.ID && other.Email == u.Email {
			return apperror.Conflict("user", "email", u.Email)
		}
	}
	cp := *u
	cp.PasswordHash, cp.Role = cur.PasswordHash, cur.Role
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", itoa(id))
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", itoa(id))
	}
	for k, r := range f.ratings {
		if r.UserID == id {
			delete(f.ratings, k)
		}
	}
	for lid, l := range f.lists {
		if l.UserID == id {
			f.deleteListLocked(lid)
		}
	}
	for k, t := range f.tokens {
		if t.UserID == id {
			delete(f.tokens, k)
		}
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) ListUsers(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if opts.Offset >= len(out) {
		return []model.User{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) LoadUserGraph(ctx context.Context, id int64, inc repository.Include) (*model.User, error) {
	u, err := f.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Ratings {
		u.Ratings = []*model.Rating{}
		f.mu.Lock()
		for _, r := range f.ratings {
			if r.UserID == id {
				cp := *r
				cp.User = u
				u.Ratings = append(u.Ratings, &cp)
			}
		}
		f.mu.Unlock()
	}
	return u, nil
}

func (f *fakeStore) CreateMovie(_ context.Context, m *model.Movie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.movies[m.ID]; ok {
		return apperror.Conflict("movie", "id", m.ID)
	}
	cp := *m
	f.movies[m.ID] = &cp
	return nil
}

func (f *fakeStore) UpsertMovie(_ context.Context, m *model.Movie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	cp := *m
	f.movies[m.ID] = &cp
	return nil
}

func (f *fakeStore) GetMovie(_ context.Context, id string) (*model.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.movies[id]
	if !ok {
		return nil, apperror.NotFound("movie", id)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) GetMoviesByIDs(_ context.Context, ids []string) ([]*model.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Movie{}
	for _, id := range ids {
		if m, ok := f.movies[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMovies(_ context.Context, flt repository.MovieFilter) ([]model.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Movie{}
	for _, m := range f.movies {
		if flt.Genre == nil || m.Genres.Has(*flt.Genre) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeStore) DeleteMovie(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.movies[id]; !ok {
		return apperror.NotFound("movie", id)
	}
	for k, r := range f.ratings {
		if r.MovieID == id {
			delete(f.ratings, k)
		}
	}
	for k, it := range f.items {
		if it.MovieID == id {
			delete(f.items, k)
		}
	}
	delete(f.movies, id)
	return nil
}

func (f *fakeStore) CreateRating(_ context.Context, r *model.Rating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ratings[rkey(r.UserID, r.MovieID)]; ok {
		return apperror.Conflict("rating", "user_id,movie_id", rkey(r.UserID, r.MovieID))
	}
	if _, ok := f.users[r.UserID]; !ok {
		return apperror.ReferenceNotFound("user", itoa(r.UserID))
	}
	if _, ok := f.movies[r.MovieID]; !ok {
		return apperror.ReferenceNotFound("movie", r.MovieID)
	}
	now := time.Now()
	r.RatedAt = &now
	cp := *r
	f.ratings[rkey(r.UserID, r.MovieID)] = &cp
	return nil
}

func (f *fakeStore) UpdateRating(_ context.Context, r *model.Rating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.ratings[rkey(r.UserID, r.MovieID)]
	if !ok {
		return apperror.NotFound("rating", rkey(r.UserID, r.MovieID))
	}
	cur.Value = r.Value
	return nil
}

func (f *fakeStore) GetRating(_ context.Context, userID int64, movieID string) (*model.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ratings[rkey(userID, movieID)]
	if !ok {
		return nil, apperror.NotFound("rating", rkey(userID, movieID))
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListRatingsByUser(_ context.Context, userID int64, _ repository.ListOptions) ([]model.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Rating{}
	for _, r := range f.ratings {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListRatingsByMovie(_ context.Context, movieID string, _ repository.ListOptions) ([]model.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Rating{}
	for _, r := range f.ratings {
		if r.MovieID == movieID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteRating(_ context.Context, userID int64, movieID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ratings[rkey(userID, movieID)]; !ok {
		return apperror.NotFound("rating", rkey(userID, movieID))
	}
	delete(f.ratings, rkey(userID, movieID))
	return nil
}

func (f *fakeStore) MovieRatingStats(_ context.Context, movieID string) (*model.RatingStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.movies[movieID]; !ok {
		return nil, apperror.NotFound("movie", movieID)
	}
	st := &model.RatingStats{MovieID: movieID}
	sum := 0
	for _, r := range f.ratings {
		if r.MovieID == movieID {
			st.Count++
			sum += r.Value
		}
	}
	if st.Count > 0 {
		st.Average = float64(sum) / float64(st.Count)
	}
	return st, nil
}

func (f *fakeStore) CreateMovieList(_ context.Context, l *model.MovieList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[l.UserID]; !ok {
		return apperror.ReferenceNotFound("user", itoa(l.UserID))
	}
	l.ID = f.id()
	l.CreatedAt = time.Now().UTC()
	cp := *l
	f.lists[l.ID] = &cp
	return nil
}

func (f *fakeStore) GetMovieList(_ context.Context, id int64) (*model.MovieList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lists[id]
	if !ok {
		return nil, apperror.NotFound("movie list", itoa(id))
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) ListMovieListsByUser(_ context.Context, userID int64) ([]model.MovieList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.MovieList{}
	for _, l := range f.lists {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateMovieList(_ context.Context, l *model.MovieList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lists[l.ID]; !ok {
		return apperror.NotFound("movie list", itoa(l.ID))
	}
	cp := *l
	f.lists[l.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteMovieList(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lists[id]; !ok {
		return apperror.NotFound("movie list", itoa(id))
	}
	f.deleteListLocked(id)
	return nil
}

func (f *fakeStore) deleteListLocked(id int64) {
	for k, it := range f.items {
		if it.ListID == id {
			delete(f.items, k)
		}
	}
	delete(f.lists, id)
}

func (f *fakeStore) AddListItem(_ context.Context, it *model.MovieListItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[ikey(it.ListID, it.MovieID)]; ok {
		return apperror.Conflict("list item", "list_id,movie_id", ikey(it.ListID, it.MovieID))
	}
	if _, ok := f.lists[it.ListID]; !ok {
		return apperror.ReferenceNotFound("movie list", itoa(it.ListID))
	}
	if _, ok := f.movies[it.MovieID]; !ok {
		return apperror.ReferenceNotFound("movie", it.MovieID)
	}
	it.DateAdded = time.Now().UTC()
	cp := *it
	f.items[ikey(it.ListID, it.MovieID)] = &cp
	return nil
}

func (f *fakeStore) RemoveListItem(_ context.Context, listID int64, movieID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[ikey(listID, movieID)]; !ok {
		return apperror.NotFound("list item", ikey(listID, movieID))
	}
	delete(f.items, ikey(listID, movieID))
	return nil
}

func (f *fakeStore) ListItems(_ context.Context, listID int64) ([]model.MovieListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.MovieListItem{}
	for _, it := range f.items {
		if it.ListID == listID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadMovieListGraph(ctx context.Context, id int64, withMovies bool) (*model.MovieList, error) {
	l, err := f.GetMovieList(ctx, id)
	if err != nil {
		return nil, err
	}
	items, _ := f.ListItems(ctx, id)
	l.Items = make([]*model.MovieListItem, 0, len(items))
	for i := range items {
		items[i].List = l
		l.Items = append(l.Items, &items[i])
	}
	return l, nil
}

func (f *fakeStore) IssueResetToken(_ context.Context, t *model.PasswordResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[t.UserID]; !ok {
		return apperror.ReferenceNotFound("user", itoa(t.UserID))
	}
	for _, old := range f.tokens {
		if old.UserID == t.UserID {
			old.Used = true
		}
	}
	t.ID = f.id()
	cp := *t
	f.tokens[t.Token] = &cp
	return nil
}

func (f *fakeStore) GetResetToken(_ context.Context, token string) (*model.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok {
		return nil, apperror.TokenNotFound()
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) consumeLocked(token string, now time.Time) (*model.PasswordResetToken, error) {
	t, ok := f.tokens[token]
	switch {
	case !ok:
		return nil, apperror.TokenNotFound()
	case t.Expired(now):
		return nil, apperror.TokenExpired()
	case t.Used:
		return nil, apperror.TokenAlreadyUsed()
	}
	t.Used = true
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ConsumeResetToken(_ context.Context, token string, now time.Time) (*model.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumeLocked(token, now)
}

func (f *fakeStore) ResetPassword(_ context.Context, token string, now time.Time, hash string) (*model.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.consumeLocked(token, now)
	if err != nil {
		return nil, err
	}
	f.users[t.UserID].PasswordHash = hash
	return t, nil
}

func (f *fakeStore) PurgeResetTokens(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, t := range f.tokens {
		if t.ExpiryDate.Before(before) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

// =========================================================================
// OTHER FAKES AND HELPERS
// =========================================================================

type fakeCache struct {
	mu      sync.Mutex
	movies  map[string]*model.Movie
	gets    int
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{movies: map[string]*model.Movie{}}
}

func (c *fakeCache) Get(_ context.Context, id string) (*model.Movie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if m, ok := c.movies[id]; ok {
		return m, nil
	}
	return nil, cache.ErrMiss
}

func (c *fakeCache) Set(_ context.Context, m *model.Movie) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.movies[m.ID] = m
	return nil
}

func (c *fakeCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.movies, id)
	c.deletes = append(c.deletes, id)
	return nil
}

type recordingNotifier struct {
	notices []notify.ResetNotice
	err     error
}

func (n *recordingNotifier) NotifyReset(_ context.Context, rn notify.ResetNotice) error {
	n.notices = append(n.notices, rn)
	return n.err
}

// fakeRecommender serves a fixed Result and fixed pages.
type fakeRecommender struct {
	result *recommend.Result
	pages  map[int][]string
	err    error
}

func (r *fakeRecommender) Get(context.Context, int64) (*recommend.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func (r *fakeRecommender) More(_ context.Context, _ int64, section string, page, _ int) (*recommend.Page, error) {
	if r.err != nil {
		return nil, r.err
	}
	_, hasNext := r.pages[page+1]
	return &recommend.Page{Section: section, Page: page, MovieIDs: r.pages[page], HasMore: hasNext}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
