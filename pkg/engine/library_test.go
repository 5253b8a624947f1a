package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/bookgraph/pkg/graph"
)

func TestLibrary_SyncAddsOnly(t *testing.T) {
	lib := NewLibrary(nil)
	g1 := graph.NewGraph([]graph.Node{bookNode("n1", "c1", "Dune"), themeNode("t1", "Desert")}, nil)
	assert.Equal(t, 1, lib.Sync(g1))
	assert.Equal(t, 0, lib.Sync(g1))

	g2 := graph.NewGraph([]graph.Node{bookNode("n2", "c2", "Emma")}, nil)
	assert.Equal(t, 1, lib.Sync(g2))

	ids := []string{}
	for _, b := range lib.Books() {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestLibrary_DuplicateCodeAddedOnce(t *testing.T) {
	lib := NewLibrary(nil)
	g := graph.NewGraph([]graph.Node{bookNode("n1", "c1", "Dune"), bookNode("n2", "c1", "Dune again")}, nil)
	assert.Equal(t, 1, lib.Sync(g))
	b, ok := lib.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "n1", b.NodeID)
}

func TestLibrary_BooksAreCopies(t *testing.T) {
	lib := NewLibrary(nil)
	n := bookNode("n1", "c1", "Dune")
	n.Properties.Subjects = []string{"sf"}
	lib.Sync(graph.NewGraph([]graph.Node{n}, nil))

	books := lib.Books()
	books[0].Progress = 99
	books[0].Tags[0] = "changed"

	b, _ := lib.Get("c1")
	assert.Zero(t, b.Progress)
	assert.Equal(t, []string{"sf"}, b.Tags)
}

func TestLibrary_RemoveAndActive(t *testing.T) {
	lib := NewLibrary(nil)
	lib.Sync(graph.NewGraph([]graph.Node{
		bookNode("n1", "c1", "Dune"),
		bookNode("n2", "c2", "Emma"),
		bookNode("n3", "c3", "Ulysses"),
	}, nil))

	active, ok := lib.Active()
	require.True(t, ok)
	assert.Equal(t, "c1", active.ID)

	require.NoError(t, lib.SetActive("c2"))
	assert.True(t, lib.Remove("c2"))
	assert.False(t, lib.Remove("c2"))

	active, ok = lib.Active()
	require.True(t, ok)
	assert.Equal(t, "c1", active.ID)
	assert.Equal(t, 2, lib.Len())

	lib.Remove("c1")
	lib.Remove("c3")
	_, ok = lib.Active()
	assert.False(t, ok)
}

func TestLibrary_RemovedBookReturnsOnlyIfNodeReappears(t *testing.T) {
	lib := NewLibrary(nil)
	g := graph.NewGraph([]graph.Node{bookNode("n1", "c1", "Dune")}, nil)
	lib.Sync(g)
	lib.Remove("c1")
	assert.Zero(t, lib.Len())

	lib.Sync(graph.NewGraph(nil, nil))
	assert.Zero(t, lib.Len())
	lib.Sync(g)
	assert.Equal(t, 1, lib.Len())
}

func TestLibrary_SetProgress(t *testing.T) {
	lib := NewLibrary(nil)
	lib.Sync(graph.NewGraph([]graph.Node{bookNode("n1", "c1", "Dune")}, nil))

	tests := []struct {
		name     string
		id       string
		progress int
		wantErr  error
	}{
		{"zero", "c1", 0, nil},
		{"full", "c1", 100, nil},
		{"negative", "c1", -1, ErrInvalidProgress},
		{"over", "c1", 101, ErrInvalidProgress},
		{"unknown", "c9", 10, ErrBookNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := lib.SetProgress(tt.id, tt.progress)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			b, _ := lib.Get(tt.id)
			assert.Equal(t, tt.progress, b.Progress)
		})
	}
}

func TestLibrary_Filter(t *testing.T) {
	lib := NewLibrary(nil)
	hobbit := bookNode("n1", "c1", "The Hobbit")
	hobbit.Properties.Author = "J.R.R. Tolkien"
	emma := bookNode("n2", "c2", "Emma")
	emma.Properties.Subjects = []string{"Romance", "Satire"}
	lib.Sync(graph.NewGraph([]graph.Node{hobbit, emma}, nil))

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"c1", "c2"}},
		{"   ", []string{"c1", "c2"}},
		{"hobbit", []string{"c1"}},
		{"TOLKIEN", []string{"c1"}},
		{"satire", []string{"c2"}},
		{"nothing", []string{}},
	}
	for _, tt := range tests {
		got := []string{}
		for _, b := range lib.Filter(tt.query) {
			got = append(got, b.ID)
		}
		assert.Equal(t, tt.want, got, "query %q", tt.query)
	}
}
