package sqldb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/sakif/moviecatalog/internal/apperror"
)

// seedGraph builds two users who both rate and list the same movies, so the
// cascade tests can check that only the deleted side disappears.
func seedGraph(t *testing.T, db *DB) (aliceID, bobID int64, aliceList, bobList int64) {
	t.Helper()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	createTestMovie(t, db, "s1", "One")
	createTestMovie(t, db, "s2", "Two")

	createTestRating(t, db, alice.ID, "s1", 5)
	createTestRating(t, db, alice.ID, "s2", 4)
	createTestRating(t, db, bob.ID, "s1", 2)

	al := createTestList(t, db, alice.ID, "alice's", "s1", "s2")
	bl := createTestList(t, db, bob.ID, "bob's", "s1")

	createTestToken(t, db, alice.ID, "tok-alice", time.Now().Add(time.Hour))
	return alice.ID, bob.ID, al.ID, bl.ID
}

// =========================================================================
// DELETE USER
// =========================================================================

func TestDeleteUser_Cascades(t *testing.T) {
	db := newTestDB(t)
	alice, bob, aliceList, bobList := seedGraph(t, db)

	if err := db.DeleteUser(context.Background(), alice); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	checks := []struct {
		table, where string
		arg          any
		want         int
	}{
		{tableUsers, "id = ?", alice, 0},
		{tableRatings, "user_id = ?", alice, 0},
		{tableMovieLists, "user_id = ?", alice, 0},
		{tableListItems, "list_id = ?", aliceList, 0},
		{tableResetTokens, "user_id = ?", alice, 0},
		// bob and the movies are untouched
		{tableUsers, "id = ?", bob, 1},
		{tableRatings, "user_id = ?", bob, 1},
		{tableListItems, "list_id = ?", bobList, 1},
		{tableMovies, "", nil, 2},
	}
	for _, c := range checks {
		var got int
		if c.where == "" {
			got = countRows(t, db, c.table, "")
		} else {
			got = countRows(t, db, c.table, c.where, c.arg)
		}
		if got != c.want {
			t.Errorf("%s where %s (%v): %d rows, want %d", c.table, c.where, c.arg, got, c.want)
		}
	}
}

func TestDeleteUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	if err := db.DeleteUser(context.Background(), 404); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestDeleteUser_RollsBackOnFailure makes the fourth cascade step fail with a
// trigger. The tokens and ratings removed by the earlier steps must come back.
func TestDeleteUser_RollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	alice, _, aliceList, _ := seedGraph(t, db)

	_, err := db.conn.Exec(`CREATE TRIGGER block_list_delete BEFORE DELETE ON movie_lists
		BEGIN SELECT RAISE(ABORT, 'list delete blocked'); END`)
	if err != nil {
		t.Fatalf("creating trigger: %v", err)
	}

	if err := db.DeleteUser(context.Background(), alice); err == nil {
		t.Fatal("DeleteUser() should fail while the trigger is in place")
	}

	if n := countRows(t, db, tableUsers, "id = ?", alice); n != 1 {
		t.Errorf("user rows = %d, want 1", n)
	}
	if n := countRows(t, db, tableRatings, "user_id = ?", alice); n != 2 {
		t.Errorf("ratings = %d, want 2 (rolled back)", n)
	}
	if n := countRows(t, db, tableResetTokens, "user_id = ?", alice); n != 1 {
		t.Errorf("tokens = %d, want 1 (rolled back)", n)
	}
	if n := countRows(t, db, tableListItems, "list_id = ?", aliceList); n != 2 {
		t.Errorf("list items = %d, want 2 (rolled back)", n)
	}
}

// TestDeleteUser_RollbackWithMock checks the transaction protocol itself:
// a failing step must end in ROLLBACK, never COMMIT.
func TestDeleteUser_RollbackWithMock(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer mockDB.Close()
	db := newDB(sqlx.NewDb(mockDB, "sqlmock"), DriverSQLite)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM password_reset_tokens WHERE user_id = \?`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM ratings WHERE user_id = \?`).
		WithArgs(int64(7)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = db.DeleteUser(context.Background(), 7)
	if err == nil {
		t.Fatal("DeleteUser() should return the step error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// =========================================================================
// DELETE MOVIE / LIST
// =========================================================================

func TestDeleteMovie_Cascades(t *testing.T) {
	db := newTestDB(t)
	alice, bob, aliceList, bobList := seedGraph(t, db)

	if err := db.DeleteMovie(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteMovie() error = %v", err)
	}

	if n := countRows(t, db, tableRatings, "movie_id = ?", "s1"); n != 0 {
		t.Errorf("ratings of s1 = %d, want 0", n)
	}
	if n := countRows(t, db, tableListItems, "movie_id = ?", "s1"); n != 0 {
		t.Errorf("items of s1 = %d, want 0", n)
	}
	// everything else stays
	if n := countRows(t, db, tableRatings, "user_id = ?", alice); n != 1 {
		t.Errorf("alice ratings = %d, want 1 (s2)", n)
	}
	if n := countRows(t, db, tableUsers, "id IN (?, ?)", alice, bob); n != 2 {
		t.Errorf("users = %d, want 2", n)
	}
	if n := countRows(t, db, tableMovieLists, "id IN (?, ?)", aliceList, bobList); n != 2 {
		t.Errorf("lists = %d, want 2 (now possibly empty)", n)
	}

	if err := db.DeleteMovie(context.Background(), "s1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMovieList_Cascades(t *testing.T) {
	db := newTestDB(t)
	alice, _, aliceList, bobList := seedGraph(t, db)

	if err := db.DeleteMovieList(context.Background(), aliceList); err != nil {
		t.Fatalf("DeleteMovieList() error = %v", err)
	}
	if n := countRows(t, db, tableListItems, "list_id = ?", aliceList); n != 0 {
		t.Errorf("items = %d, want 0", n)
	}
	if n := countRows(t, db, tableListItems, "list_id = ?", bobList); n != 1 {
		t.Errorf("bob's items = %d, want 1", n)
	}
	if n := countRows(t, db, tableMovies, ""); n != 2 {
		t.Errorf("movies = %d, want 2", n)
	}
	if _, err := db.GetUser(context.Background(), alice); err != nil {
		t.Errorf("owner should survive: %v", err)
	}

	if err := db.DeleteMovieList(context.Background(), aliceList); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}
