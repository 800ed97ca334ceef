package docdb_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/docdb/mocks"
)

type note struct {
	ID   string `json:"-"`
	Text string `json:"Text"`
}

func (n *note) Collection() string      { return "Notes" }
func (n *note) DocumentID() string      { return n.ID }
func (n *note) SetDocumentID(id string) { n.ID = id }

func withMockBackend(t *testing.T) (*docdb.DocumentStore, *mocks.MockBackend) {
	t.Helper()
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().Scan(gomock.Any(), docdb.IndexesCollection, gomock.Any()).Return(nil).AnyTimes()
	backend.EXPECT().Close().Return(nil)

	s, err := docdb.Open(context.Background(), docdb.Options{Database: "mock", Backend: backend})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, backend
}

func TestSaveChanges_CommitFailure(t *testing.T) {
	s, backend := withMockBackend(t)
	ctx := context.Background()

	commitErr := errors.New("disk full")
	backend.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(commitErr)

	sess := s.OpenSession()
	defer sess.Close()

	require.NoError(t, sess.Store(ctx, &note{ID: "Notes/1", Text: "x"}))
	assert.ErrorIs(t, sess.SaveChanges(ctx), commitErr)
}

func TestSaveChanges_SingleAtomicBatch(t *testing.T) {
	s, backend := withMockBackend(t)
	ctx := context.Background()

	backend.EXPECT().Get(gomock.Any(), "Notes", "Notes/old").Return([]byte(`{"Text":"old"}`), nil)
	backend.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, batch []docdb.Mutation) error {
		require.Len(t, batch, 3)
		assert.Equal(t, "Notes/old", batch[0].ID)
		assert.True(t, batch[0].Delete)
		assert.Equal(t, "Notes/a", batch[1].ID)
		assert.JSONEq(t, `{"Text":"a"}`, string(batch[1].Doc))
		assert.Equal(t, "Notes/b", batch[2].ID)
		return nil
	}).Times(1)

	sess := s.OpenSession()
	defer sess.Close()

	old, err := docdb.Load[note](ctx, sess, "Notes/old")
	require.NoError(t, err)
	require.NoError(t, sess.Delete(old))
	require.NoError(t, sess.Store(ctx, &note{ID: "Notes/a", Text: "a"}))
	require.NoError(t, sess.Store(ctx, &note{ID: "Notes/b", Text: "b"}))
	require.NoError(t, sess.SaveChanges(ctx))

	// Nothing left to write.
	require.NoError(t, sess.SaveChanges(ctx))
}

func TestLoad_BackendFailure(t *testing.T) {
	s, backend := withMockBackend(t)
	ctx := context.Background()

	getErr := errors.New("connection reset")
	backend.EXPECT().Get(gomock.Any(), "Notes", "Notes/1").Return(nil, getErr)

	_, err := docdb.Load[note](ctx, s.OpenSession(), "Notes/1")
	assert.ErrorIs(t, err, getErr)
}

var noteIndex = docdb.IndexDefinition{
	Name:       "NoteIndex",
	Collection: "Notes",
	Fields:     []docdb.IndexField{{Name: "Text", Path: "Text"}},
}

func TestExecuteIndex_SavesDefinition(t *testing.T) {
	s, backend := withMockBackend(t)
	ctx := context.Background()

	backend.EXPECT().Scan(gomock.Any(), "Notes", gomock.Any()).Return(nil).AnyTimes()
	backend.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, batch []docdb.Mutation) error {
		require.Len(t, batch, 1)
		assert.Equal(t, docdb.IndexesCollection, batch[0].Collection)
		assert.Equal(t, "NoteIndex", batch[0].ID)
		assert.JSONEq(t, `{"Name":"NoteIndex","Collection":"Notes","Fields":[{"Name":"Text","Path":"Text"}]}`, string(batch[0].Doc))
		return nil
	}).Times(1)

	require.NoError(t, s.ExecuteIndex(ctx, noteIndex))
	// Identical definitions are not written again.
	require.NoError(t, s.ExecuteIndex(ctx, noteIndex))
}

func TestExecuteIndex_SaveFailure(t *testing.T) {
	s, backend := withMockBackend(t)
	ctx := context.Background()

	saveErr := errors.New("read only")
	backend.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(saveErr)

	assert.ErrorIs(t, s.ExecuteIndex(ctx, noteIndex), saveErr)

	_, err := s.IsStale("NoteIndex")
	assert.ErrorIs(t, err, docdb.ErrIndexNotFound)
}

func TestOpen_DefinitionLoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)

	scanErr := errors.New("permission denied")
	backend.EXPECT().Scan(gomock.Any(), docdb.IndexesCollection, gomock.Any()).Return(scanErr)
	backend.EXPECT().Close().Return(nil)

	_, err := docdb.Open(context.Background(), docdb.Options{Database: "mock", Backend: backend})
	assert.ErrorIs(t, err, scanErr)
}

func TestIsStale_UntilBuildFinishes(t *testing.T) {
	s, backend := withMockBackend(t)
	ctx := context.Background()

	release := make(chan struct{})
	backend.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil)
	backend.EXPECT().Scan(gomock.Any(), "Notes", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fn func(string, []byte) error) error {
			<-release
			return fn("Notes/1", []byte(`{"Text":"hello"}`))
		})

	require.NoError(t, s.ExecuteIndex(ctx, noteIndex))

	stale, err := s.IsStale("NoteIndex")
	require.NoError(t, err)
	assert.True(t, stale)

	err = s.WaitForIndexing(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, docdb.ErrIndexWaitTimeout)

	// A query gives up with its context rather than answering from an
	// index that was never built.
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = docdb.QueryIndex[note](s.OpenSession(), "NoteIndex").ToList(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, s.WaitForIndexing(ctx, 5*time.Second))

	stale, err = s.IsStale("NoteIndex")
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestQuery_FirstBuildFailure(t *testing.T) {
	s, backend := withMockBackend(t)
	ctx := context.Background()

	scanErr := errors.New("i/o error")
	backend.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil)
	backend.EXPECT().Scan(gomock.Any(), "Notes", gomock.Any()).Return(scanErr)
	backend.EXPECT().Scan(gomock.Any(), "Notes", gomock.Any()).Return(nil).AnyTimes()

	require.NoError(t, s.ExecuteIndex(ctx, noteIndex))

	_, err := docdb.QueryIndex[note](s.OpenSession(), "NoteIndex").ToList(ctx)
	require.ErrorIs(t, err, docdb.ErrIndexBuildFailed)
	assert.ErrorIs(t, err, scanErr)

	// The failed query scheduled another build.
	require.NoError(t, s.WaitForIndexing(ctx, 5*time.Second))
	notes, err := docdb.QueryIndex[note](s.OpenSession(), "NoteIndex").ToList(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestClose_InterruptedBuildIsQuiet(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	scanning := make(chan struct{})
	backend.EXPECT().Scan(gomock.Any(), docdb.IndexesCollection, gomock.Any()).Return(nil)
	backend.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil)
	backend.EXPECT().Scan(gomock.Any(), "Notes", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ func(string, []byte) error) error {
			close(scanning)
			<-ctx.Done()
			return ctx.Err()
		})
	backend.EXPECT().Close().Return(nil)

	s, err := docdb.Open(context.Background(), docdb.Options{Database: "mock", Backend: backend, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, s.ExecuteIndex(context.Background(), noteIndex))

	<-scanning
	require.NoError(t, s.Close())

	assert.NotContains(t, logs.String(), "building index failed")
}
