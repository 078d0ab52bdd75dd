package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"resumerag/internal/adapter/storetest"
	"resumerag/internal/domain"
	"resumerag/internal/port"
)

func TestBoltStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) port.Store {
		st, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		return st
	})
}

func TestBoltStoreReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	st, err := NewBoltStore(path)
	require.NoError(t, err)
	doc, err := st.UpsertDocument(ctx, domain.Document{Slug: "resume", Title: "Resume", Body: "x"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = NewBoltStore(path)
	require.NoError(t, err)
	defer st.Close()

	refs, err := st.ListDocuments(ctx, nil)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, doc.ID, refs[0].ID)

	// IDs keep growing across reopen.
	next, err := st.UpsertDocument(ctx, domain.Document{Slug: "about", Title: "About", Body: "y"})
	require.NoError(t, err)
	require.Greater(t, next.ID, doc.ID)
}
