package graph

import (
	"strconv"
	"strings"
	"unicode"
)

// Book is the domain view of a book-kind node. Its identity is the
// catalogue code, not the node id.
type Book struct {
	ID       string   `json:"id"`
	NodeID   string   `json:"node_id"`
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Year     int      `json:"year"`
	Tags     []string `json:"tags"`
	Progress int      `json:"progress"`
	Cover    string   `json:"cover,omitempty"`
}

// DeriveBooks returns one Book per book-kind node in wire order. A second
// node with an already seen code is skipped and reported.
func (g Graph) DeriveBooks() ([]Book, []error) {
	var (
		books []Book
		errs  []error
	)
	seen := make(map[string]string)
	for _, n := range g.nodes {
		if n.Kind() != KindBook {
			continue
		}
		code := strings.TrimSpace(n.Properties.Code)
		if first, dup := seen[code]; dup {
			errs = append(errs, &DataIntegrityError{
				Kind:   IntegrityDuplicateBook,
				ID:     code,
				Detail: "code already used by node " + first,
			})
			continue
		}
		seen[code] = n.ID
		books = append(books, BookFromNode(n))
	}
	return books, errs
}

// BookFromNode converts a book-kind node. Progress always starts at zero.
func BookFromNode(n Node) Book {
	tags := []string{}
	if n.Properties.Subjects != nil {
		tags = append(tags, n.Properties.Subjects...)
	}
	return Book{
		ID:     strings.TrimSpace(n.Properties.Code),
		NodeID: n.ID,
		Title:  n.DisplayLabel(),
		Author: n.Properties.Author,
		Year:   ParseYear(n.Properties.Published),
		Tags:   tags,
		Cover:  n.Properties.Cover,
	}
}

// ParseYear extracts the leading year component of a published date such as
// "1965", "1965-08-01" or "1965 (reprint)". It returns 0 when none is found.
func ParseYear(published string) int {
	s := strings.TrimSpace(published)
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if end >= 0 {
		s = s[:end]
	}
	if s == "" {
		return 0
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return year
}
