package engine

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/graph"
)

// Library is the user's book list. It is derived from graph snapshots but
// also carries local-only fields such as reading progress.
//
// Sync only ever adds books: a book whose node disappears from the graph
// stays until Remove is called.
type Library struct {
	mu       sync.RWMutex
	books    []*graph.Book
	index    map[string]*graph.Book
	activeID string
	logger   *zap.Logger
}

// NewLibrary creates an empty library.
func NewLibrary(logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{
		index:  make(map[string]*graph.Book),
		logger: logger,
	}
}

// Sync adds a Book for every book-kind node of g whose code is not yet in
// the library. Existing books are kept as they are. It returns the number of
// books added. Duplicate codes are skipped here; the Reconciler reports
// them along with the snapshot's other integrity errors.
func (l *Library) Sync(g graph.Graph) int {
	derived, _ := g.DeriveBooks()

	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for _, b := range derived {
		if _, exists := l.index[b.ID]; exists {
			continue
		}
		book := b
		l.books = append(l.books, &book)
		l.index[book.ID] = &book
		added++
	}
	LibraryBooks.Set(float64(len(l.books)))
	if added > 0 {
		l.logger.Debug("library_synced", zap.Int("added", added), zap.Int("total", len(l.books)))
	}
	return added
}

// Books returns copies of all books in insertion order.
func (l *Library) Books() []graph.Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyBooks(l.books)
}

// Len returns the number of books.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.books)
}

// Get returns the book with the given code.
func (l *Library) Get(id string) (graph.Book, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.index[id]
	if !ok {
		return graph.Book{}, false
	}
	return copyBook(b), true
}

// Remove deletes a book from the library. If it was the active book, the
// first remaining book becomes active.
func (l *Library) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[id]; !ok {
		return false
	}
	delete(l.index, id)
	for i, b := range l.books {
		if b.ID == id {
			l.books = append(l.books[:i:i], l.books[i+1:]...)
			break
		}
	}
	if l.activeID == id {
		l.activeID = ""
		if len(l.books) > 0 {
			l.activeID = l.books[0].ID
		}
	}
	LibraryBooks.Set(float64(len(l.books)))
	return true
}

// SetProgress records reading progress (0..100) for a book.
func (l *Library) SetProgress(id string, progress int) error {
	if progress < 0 || progress > 100 {
		return ErrInvalidProgress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.index[id]
	if !ok {
		return ErrBookNotFound
	}
	b.Progress = progress
	return nil
}

// SetActive selects the active book.
func (l *Library) SetActive(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[id]; !ok {
		return ErrBookNotFound
	}
	l.activeID = id
	return nil
}

// Active returns the selected book, falling back to the first one.
func (l *Library) Active() (graph.Book, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.index[l.activeID]; ok {
		return copyBook(b), true
	}
	if len(l.books) > 0 {
		return copyBook(l.books[0]), true
	}
	return graph.Book{}, false
}

// Filter returns books whose title, author or any tag contains query,
// ignoring case. A blank query returns every book.
func (l *Library) Filter(query string) []graph.Book {
	l.mu.RLock()
	defer l.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return copyBooks(l.books)
	}
	out := []graph.Book{}
	for _, b := range l.books {
		if matchesBook(b, q) {
			out = append(out, copyBook(b))
		}
	}
	return out
}

func matchesBook(b *graph.Book, q string) bool {
	if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Author), q) {
		return true
	}
	for _, t := range b.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func copyBook(b *graph.Book) graph.Book {
	out := *b
	out.Tags = append([]string{}, b.Tags...)
	return out
}

func copyBooks(books []*graph.Book) []graph.Book {
	out := make([]graph.Book, len(books))
	for i, b := range books {
		out[i] = copyBook(b)
	}
	return out
}

func reportIntegrity(logger *zap.Logger, errs []error) {
	for _, err := range errs {
		kind := "unknown"
		var ie *graph.DataIntegrityError
		if errors.As(err, &ie) {
			kind = ie.Kind
		}
		IntegrityErrors.WithLabelValues(kind).Inc()
		logger.Warn("graph_integrity_error", zap.String("kind", kind), zap.Error(err))
	}
}
