// Package ghdb treats a GitHub repository as a document database.
//
// Reads go through the contents API (directory listing, per-file fetch) or the
// git data API (recursive tree listing). Writes come in three flavours:
//
//   - Write: last-writer-wins single file PUT, retried on conflict
//   - WriteIfMatch: single file PUT guarded by the caller's blob SHA
//   - Commit: several files in one commit via blobs, a tree and a ref update
//
// Every record's version is the blob SHA of the file it was read from.
package ghdb

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	gogithub "github.com/google/go-github/v75/github"
)

const (
	defaultBranch      = "main"
	defaultMaxAttempts = 4
	defaultBackoff     = 200 * time.Millisecond
	defaultConcurrency = 8
)

// Config identifies the repository and tunes retries.
type Config struct {
	Owner  string
	Repo   string
	Branch string

	// CommitterName and CommitterEmail are used for every commit when both are set.
	CommitterName  string
	CommitterEmail string

	MaxAttempts      int
	InitialBackoff   time.Duration
	FetchConcurrency int
}

// Entry is one item of a directory or tree listing.
type Entry struct {
	Name string
	Path string
	SHA  string
	Type string // "file" or "dir"
	Size int
}

// File is a decoded file and the blob SHA it was read at.
type File struct {
	Path    string
	SHA     string
	Content []byte
}

// Repo is a handle on one branch of one repository.
type Repo struct {
	gh  *gogithub.Client
	cfg Config
	log *slog.Logger
	in  *instruments
}

// New returns a Repo for cfg, filling in defaults.
func New(gh *gogithub.Client, cfg Config, log *slog.Logger) (*Repo, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("ghdb: owner and repo are required")
	}
	if cfg.Branch == "" {
		cfg.Branch = defaultBranch
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultBackoff
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = defaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Repo{gh: gh, cfg: cfg, log: log, in: newInstruments()}, nil
}

// Config returns the effective configuration.
func (r *Repo) Config() Config { return r.cfg }

// HTMLURL returns a browser link to p on the configured branch.
func (r *Repo) HTMLURL(p string) string {
	return fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", r.cfg.Owner, r.cfg.Repo, r.cfg.Branch, p)
}

// List returns the immediate children of dir. A missing directory is empty.
func (r *Repo) List(ctx context.Context, dir string) (_ []Entry, err error) {
	dir = strings.Trim(dir, "/")
	ctx, done := r.in.observe(ctx, "list", dir)
	defer func() { done(err) }()

	_, contents, _, err := r.gh.Repositories.GetContents(ctx, r.cfg.Owner, r.cfg.Repo, dir, r.ref())
	if err != nil {
		err = classify("list", dir, err, false)
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(contents))
	for _, c := range contents {
		entries = append(entries, Entry{
			Name: c.GetName(),
			Path: c.GetPath(),
			SHA:  c.GetSHA(),
			Type: c.GetType(),
			Size: c.GetSize(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Read fetches and decodes p. Returns ErrNotFound when the file is absent.
func (r *Repo) Read(ctx context.Context, p string) (_ *File, err error) {
	ctx, done := r.in.observe(ctx, "read", p)
	defer func() { done(err) }()

	fc, _, _, err := r.gh.Repositories.GetContents(ctx, r.cfg.Owner, r.cfg.Repo, p, r.ref())
	if err != nil {
		return nil, classify("read", p, err, false)
	}
	if fc == nil {
		return nil, fmt.Errorf("read %s: is a directory", p)
	}

	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	return &File{Path: p, SHA: fc.GetSHA(), Content: []byte(content)}, nil
}

// Tree lists every blob under prefix at the head of the branch using a single
// recursive tree fetch. An empty prefix lists the whole repository.
func (r *Repo) Tree(ctx context.Context, prefix string) (_ []Entry, err error) {
	prefix = strings.Trim(prefix, "/")
	ctx, done := r.in.observe(ctx, "tree", prefix)
	defer func() { done(err) }()

	h, err := r.head(ctx)
	if err != nil {
		return nil, err
	}
	files, err := r.treeFiles(ctx, h.tree)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for p, sha := range files {
		if prefix != "" && !strings.HasPrefix(p, prefix+"/") {
			continue
		}
		out = append(out, Entry{Name: path.Base(p), Path: p, SHA: sha, Type: "file"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

type head struct {
	commit string
	tree   string
}

func (r *Repo) head(ctx context.Context) (head, error) {
	ref, _, err := r.gh.Git.GetRef(ctx, r.cfg.Owner, r.cfg.Repo, r.refName())
	if err != nil {
		return head{}, classify("get ref", r.refName(), err, false)
	}
	sha := ref.GetObject().GetSHA()

	c, _, err := r.gh.Git.GetCommit(ctx, r.cfg.Owner, r.cfg.Repo, sha)
	if err != nil {
		return head{}, classify("get commit", sha, err, false)
	}
	return head{commit: sha, tree: c.GetTree().GetSHA()}, nil
}

// treeFiles returns path → blob SHA for every blob in the tree.
func (r *Repo) treeFiles(ctx context.Context, treeSHA string) (map[string]string, error) {
	tree, _, err := r.gh.Git.GetTree(ctx, r.cfg.Owner, r.cfg.Repo, treeSHA, true)
	if err != nil {
		return nil, classify("get tree", treeSHA, err, false)
	}
	if tree.GetTruncated() {
		r.log.Warn("recursive tree listing truncated", "tree", treeSHA, "entries", len(tree.Entries))
	}

	files := make(map[string]string, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.GetType() == "blob" {
			files[e.GetPath()] = e.GetSHA()
		}
	}
	return files, nil
}

func (r *Repo) ref() *gogithub.RepositoryContentGetOptions {
	return &gogithub.RepositoryContentGetOptions{Ref: r.cfg.Branch}
}

func (r *Repo) refName() string { return "refs/heads/" + r.cfg.Branch }

func (r *Repo) committer() *gogithub.CommitAuthor {
	if r.cfg.CommitterName == "" || r.cfg.CommitterEmail == "" {
		return nil
	}
	return &gogithub.CommitAuthor{
		Name:  gogithub.Ptr(r.cfg.CommitterName),
		Email: gogithub.Ptr(r.cfg.CommitterEmail),
	}
}

func (r *Repo) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = 10 * r.cfg.InitialBackoff
	return b
}

func (r *Repo) retryOpts(op, p string) []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(uint(r.cfg.MaxAttempts)), //nolint:gosec // MaxAttempts is positive
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.log.Warn("retrying github write", "op", op, "path", p, "wait", wait, "error", err)
		}),
	}
}
