// store/preload_test.go
package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type preloadAuthor struct {
	ID       int64
	Username string
}

type preloadPost struct {
	ID       int64
	Title    string
	AuthorID int64
	Author   *preloadAuthor
}

func TestPreloadRelatedBatchesIntoOneQuery(t *testing.T) {
	db, mock, _ := newMockStore(t)
	p := NewPreloader(db)

	mock.ExpectQuery("SELECT id, username FROM preload_authors WHERE id IN (?)").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).
			AddRow(int64(5), "alice"))

	posts := []any{
		&preloadPost{ID: 1, Title: "first", AuthorID: 5},
		&preloadPost{ID: 2, Title: "second", AuthorID: 5},
	}
	p.PreloadRelated(context.Background(), posts, []string{"Author"})

	for _, raw := range posts {
		post := raw.(*preloadPost)
		require.NotNil(t, post.Author, "post %d", post.ID)
		assert.Equal(t, "alice", post.Author.Username)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreloadSkipsAlreadySetRelations(t *testing.T) {
	db, mock, _ := newMockStore(t)
	p := NewPreloader(db)

	existing := &preloadAuthor{ID: 5, Username: "cached"}
	posts := []any{&preloadPost{ID: 1, AuthorID: 5, Author: existing}}
	p.PreloadRelated(context.Background(), posts, []string{"Author"})

	// No query was issued and the assigned value survived.
	assert.Same(t, existing, posts[0].(*preloadPost).Author)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreloadUnknownFieldDegradesQuietly(t *testing.T) {
	db, mock, _ := newMockStore(t)
	p := NewPreloader(db)

	posts := []any{&preloadPost{ID: 1, AuthorID: 5}}
	p.PreloadRelated(context.Background(), posts, []string{"Reviewer"})

	assert.Nil(t, posts[0].(*preloadPost).Author)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreloadIgnoresZeroForeignKeys(t *testing.T) {
	db, mock, _ := newMockStore(t)
	p := NewPreloader(db)

	posts := []any{&preloadPost{ID: 1, AuthorID: 0}}
	p.PreloadRelated(context.Background(), posts, []string{"Author"})

	assert.Nil(t, posts[0].(*preloadPost).Author)
	assert.NoError(t, mock.ExpectationsWereMet())
}
