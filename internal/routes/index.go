package routes

import (
	"context"
	"fmt"
	"strings"

	"github.com/blugelabs/bluge"
)

const nameField = "name"

// Index is a full text index over route names.
type Index struct {
	writer *bluge.Writer
}

// OpenIndex opens an index in dir, or purely in memory when dir is empty.
func OpenIndex(dir string) (*Index, error) {
	cfg := bluge.InMemoryOnlyConfig()
	if dir != "" {
		cfg = bluge.DefaultConfig(dir)
	}
	writer, err := bluge.OpenWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("open route index: %w", err)
	}
	return &Index{writer: writer}, nil
}

func (x *Index) Put(route Route) error {
	doc := bluge.NewDocument(route.ID).
		AddField(bluge.NewTextField(nameField, route.Name).StoreValue())
	return x.writer.Update(doc.ID(), doc)
}

func (x *Index) Delete(id string) error {
	return x.writer.Delete(bluge.Identifier(id))
}

// Search returns the ids of routes whose name matches query, best match first.
// Every term also matches as a prefix so partial words find routes.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]string, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}
	q := bluge.NewBooleanQuery().SetMinShould(1)
	q.AddShould(bluge.NewMatchQuery(query).SetField(nameField))
	for _, term := range terms {
		q.AddShould(bluge.NewPrefixQuery(term).SetField(nameField))
	}

	reader, err := x.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}
	var ids []string
	match, err := matches.Next()
	for err == nil && match != nil {
		if verr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
				return false
			}
			return true
		}); verr != nil {
			return nil, verr
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (x *Index) Close() error {
	return x.writer.Close()
}
