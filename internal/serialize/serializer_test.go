package serialize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sakif/moviecatalog/internal/model"
)

// userWithRatings builds the classic cycle: a user whose two ratings both
// point back at the same user.
func userWithRatings() *model.User {
	u := &model.User{ID: 1, Name: "Ada", Email: "ada@example.com", PasswordHash: "$2a$10$secret", Role: model.RoleUser}
	m1 := &model.Movie{ID: "s1", Title: "One"}
	m2 := &model.Movie{ID: "s2", Title: "Two"}
	u.Ratings = []*model.Rating{
		{UserID: 1, MovieID: "s1", Value: 5, User: u, Movie: m1},
		{UserID: 1, MovieID: "s2", Value: 3, User: u, Movie: m2},
	}
	return u
}

func asMap(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected map, got %T", v)
	return m
}

// =========================================================================
// CYCLES
// =========================================================================

func TestSerialize_ElidesBackReference(t *testing.T) {
	s := New(DefaultConfig())

	doc, err := s.Serialize(userWithRatings())
	require.NoError(t, err)

	root := asMap(t, doc.Value)
	ratings, ok := root["ratings"].([]any)
	require.True(t, ok)
	require.Len(t, ratings, 2)

	for _, r := range ratings {
		rm := asMap(t, r)
		assert.NotContains(t, rm, "user", "the user must not be re-expanded inside its own rating")
		assert.Contains(t, rm, "movie")
	}
	assert.Equal(t, 2, doc.Elided)
	assert.False(t, doc.Truncated)
	assert.NoError(t, doc.Err())
}

func TestSerialize_RejectsValueRoot(t *testing.T) {
	s := New(DefaultConfig())

	for _, v := range []any{
		*userWithRatings(),
		model.Movie{ID: "s1"},
		model.Rating{UserID: 1, MovieID: "s1"},
		model.MovieList{ID: 1},
		model.MovieListItem{ListID: 1, MovieID: "s1"},
		model.PasswordResetToken{ID: 1},
	} {
		_, err := s.Serialize(v)
		require.Error(t, err, "%T", v)
		assert.Contains(t, err.Error(), "by pointer")
	}
}

func TestSerialize_ValueSliceKeepsCycleDetection(t *testing.T) {
	lists := []model.MovieList{{ID: 1, UserID: 1, Name: "Watch"}}
	lists[0].Items = []*model.MovieListItem{
		{ListID: 1, MovieID: "s1", List: &lists[0]},
		{ListID: 1, MovieID: "s2", List: &lists[0]},
	}

	doc, err := New(DefaultConfig()).Serialize(lists)
	require.NoError(t, err)

	out, ok := doc.Value.([]any)
	require.True(t, ok)
	require.Len(t, out, 1)
	items, ok := asMap(t, out[0])["items"].([]any)
	require.True(t, ok)
	for _, it := range items {
		assert.NotContains(t, asMap(t, it), "list")
	}
	assert.Equal(t, 2, doc.Elided)
}

func TestSerialize_SharedObjectOffPathIsExpanded(t *testing.T) {
	// Two ratings of different users share one movie. The movie is not on the
	// path of the second rating, so it appears both times.
	movie := &model.Movie{ID: "s1", Title: "Shared"}
	r1 := &model.Rating{UserID: 1, MovieID: "s1", Value: 4, Movie: movie}
	r2 := &model.Rating{UserID: 2, MovieID: "s1", Value: 2, Movie: movie}

	doc, err := New(DefaultConfig()).Serialize([]*model.Rating{r1, r2})
	require.NoError(t, err)

	arr := doc.Value.([]any)
	require.Len(t, arr, 2)
	for _, r := range arr {
		assert.Contains(t, asMap(t, r), "movie")
	}
	assert.Zero(t, doc.Elided)
}

func TestSerialize_ListItemCycle(t *testing.T) {
	l := &model.MovieList{ID: 9, UserID: 1, Name: "Mine"}
	l.Items = []*model.MovieListItem{{ListID: 9, MovieID: "s1", List: l}}

	doc, err := New(DefaultConfig()).Serialize(l)
	require.NoError(t, err)

	items := asMap(t, doc.Value)["items"].([]any)
	require.Len(t, items, 1)
	assert.NotContains(t, asMap(t, items[0]), "list")
}

func TestSerialize_WithoutElisionDepthStillBounds(t *testing.T) {
	s := New(Config{MaxDepth: 6, ElideCycles: false})

	doc, err := s.Serialize(userWithRatings())
	require.NoError(t, err)
	assert.True(t, doc.Truncated)
	assert.ErrorIs(t, doc.Err(), ErrDepthExceeded)

	out, err := doc.JSON()
	require.NoError(t, err)
	assert.Equal(t, 6, nesting(t, out), "user/rating alternation should stop at depth 6")
}

// =========================================================================
// DEPTH
// =========================================================================

// chain builds list → item → list → item ... with n lists and no cycle.
func chain(n int) *model.MovieList {
	head := &model.MovieList{ID: 1, Name: "l1"}
	cur := head
	for i := 2; i <= n; i++ {
		next := &model.MovieList{ID: int64(i), Name: "l"}
		cur.Items = []*model.MovieListItem{{ListID: cur.ID, MovieID: "m", List: next}}
		cur = next
	}
	return head
}

// nesting returns how deeply objects are nested in the JSON. Arrays do not
// add a level.
func nesting(t *testing.T, raw []byte) int {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(raw, &v))

	var walk func(v any) int
	walk = func(v any) int {
		switch x := v.(type) {
		case map[string]any:
			best := 0
			for _, child := range x {
				if d := walk(child); d > best {
					best = d
				}
			}
			return best + 1
		case []any:
			best := 0
			for _, child := range x {
				if d := walk(child); d > best {
					best = d
				}
			}
			return best
		}
		return 0
	}
	return walk(v)
}

func TestSerialize_TruncatesDeepChain(t *testing.T) {
	s := New(Config{MaxDepth: 10, ElideCycles: true})

	doc, err := s.Serialize(chain(50))
	require.NoError(t, err, "truncation must not fail the call")
	assert.True(t, doc.Truncated)
	assert.ErrorIs(t, doc.Err(), ErrDepthExceeded)

	out, err := doc.JSON()
	require.NoError(t, err)
	assert.Equal(t, 10, nesting(t, out))
}

func TestSerialize_ShallowChainNotTruncated(t *testing.T) {
	doc, err := New(Config{MaxDepth: 10, ElideCycles: true}).Serialize(chain(5))
	require.NoError(t, err)
	assert.False(t, doc.Truncated)
	assert.NoError(t, doc.Err())
}

func TestNew_DefaultsMaxDepth(t *testing.T) {
	assert.Equal(t, DefaultMaxDepth, New(Config{}).Config().MaxDepth)
}

// =========================================================================
// LOADED VS NOT LOADED, SECRETS, TYPES
// =========================================================================

func TestSerialize_NilVersusEmptyCollections(t *testing.T) {
	notLoaded := &model.User{ID: 1, Name: "a"}
	loadedEmpty := &model.User{ID: 2, Name: "b", Ratings: []*model.Rating{}, Lists: []*model.MovieList{}}

	doc, err := New(DefaultConfig()).Serialize(notLoaded, loadedEmpty)
	require.NoError(t, err)

	out, err := doc.JSON()
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.NotContains(t, got[0], "ratings")
	assert.NotContains(t, got[0], "lists")
	assert.Equal(t, []any{}, got[1]["ratings"])
	assert.Equal(t, []any{}, got[1]["lists"])
}

func TestSerializer_PublicUsers(t *testing.T) {
	u := userWithRatings()
	phone := "555-0100"
	u.Phone = &phone

	s := New(DefaultConfig())
	doc, err := s.Public().Serialize(u)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "Ada"}, doc.Value)

	doc, err = s.Serialize(u)
	require.NoError(t, err)
	full := asMap(t, doc.Value)
	assert.Equal(t, "ada@example.com", full["email"])
	assert.Equal(t, "555-0100", full["phone"])
	assert.False(t, s.Config().PublicUsers, "Public must not change the receiver")
}

func TestSerialize_NeverWritesSecrets(t *testing.T) {
	u := userWithRatings()
	tok := &model.PasswordResetToken{ID: 3, UserID: 1, Token: "super-secret-token", ExpiryDate: time.Now(), User: u}

	doc, err := New(DefaultConfig()).Serialize(tok)
	require.NoError(t, err)
	out, err := doc.JSON()
	require.NoError(t, err)

	assert.NotContains(t, string(out), "super-secret-token")
	assert.NotContains(t, string(out), "$2a$10$secret")
	assert.NotContains(t, string(out), `"password"`)
	assert.True(t, strings.Contains(string(out), `"used":false`))
}

func TestSerialize_GenresKeepTriState(t *testing.T) {
	m := &model.Movie{ID: "s1", Title: "One"}
	m.Genres.Set(model.Dramas, true)
	m.Genres.Set(model.Comedies, false)

	doc, err := New(DefaultConfig()).Serialize(m)
	require.NoError(t, err)

	genres := asMap(t, doc.Value)["genres"].(map[string]any)
	assert.Equal(t, 1, genres["dramas"])
	assert.Equal(t, 0, genres["comedies"])
	assert.NotContains(t, genres, "thrillers")
}

func TestSerialize_UnsupportedType(t *testing.T) {
	_, err := New(DefaultConfig()).Serialize(struct{ X int }{1})
	assert.Error(t, err)
}

func TestSerialize_ValueSliceRoot(t *testing.T) {
	movies := []model.Movie{{ID: "s1", Title: "One"}, {ID: "s2", Title: "Two"}}

	doc, err := New(DefaultConfig()).Serialize(movies)
	require.NoError(t, err)
	assert.Len(t, doc.Value, 2)
}

// =========================================================================
// ENCODINGS
// =========================================================================

func TestDocument_MsgPackRoundTrip(t *testing.T) {
	doc, err := New(DefaultConfig()).Serialize(userWithRatings())
	require.NoError(t, err)

	raw, err := doc.MsgPack()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, msgpack.Unmarshal(raw, &decoded))
	assert.Equal(t, "Ada", decoded["name"])
	assert.Len(t, decoded["ratings"], 2)
	assert.NotContains(t, decoded, "password")
}

func TestDocument_Write(t *testing.T) {
	doc, err := New(DefaultConfig()).Serialize(&model.Movie{ID: "s1", Title: "One"})
	require.NoError(t, err)

	var sb strings.Builder
	ct, err := doc.Write(&sb, ContentTypeMsgPack)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeMsgPack, ct)

	sb.Reset()
	ct, err = doc.Write(&sb, "text/html")
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJSON, ct)
	assert.Contains(t, sb.String(), `"id":"s1"`)
}
