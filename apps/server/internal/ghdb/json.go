package ghdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Doc is a decoded JSON file and the blob SHA it was read at.
type Doc[T any] struct {
	Path  string
	SHA   string
	Value T
}

// ListJSON lists dir, fetches every *.json file in it with bounded
// concurrency and decodes each into T. Results are in file name order. A file
// removed between the listing and its fetch is skipped; a file that fails to
// decode fails the whole call.
func ListJSON[T any](ctx context.Context, r *Repo, dir string) ([]Doc[T], error) {
	entries, err := r.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	var files []Entry
	for _, e := range entries {
		if e.Type == "file" && strings.HasSuffix(e.Name, ".json") {
			files = append(files, e)
		}
	}

	docs := make([]*Doc[T], len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.FetchConcurrency)
	for i, e := range files {
		g.Go(func() error {
			d, err := ReadJSON[T](gctx, r, e.Path)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			docs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Doc[T], 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

// ReadJSON fetches p and decodes it into T.
func ReadJSON[T any](ctx context.Context, r *Repo, p string) (*Doc[T], error) {
	f, err := r.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(f.Content, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	return &Doc[T]{Path: p, SHA: f.SHA, Value: v}, nil
}

// Marshal encodes v the way records are stored: two-space indent and a
// trailing newline so diffs in the repository stay readable.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
