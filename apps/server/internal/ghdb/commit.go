package ghdb

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"
	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/sync/errgroup"
)

// Change is one file in a batch commit. Delete removes the path; otherwise
// Content replaces it.
type Change struct {
	Path    string
	Content []byte
	Delete  bool
}

// CommitRequest describes a batch write.
type CommitRequest struct {
	Message string
	Changes []Change

	// Expect maps path → blob SHA the file must have at the head the commit is
	// built on. An empty SHA means the file must not exist. A mismatch fails
	// the commit with a *ConflictError.
	Expect map[string]string

	// Force moves the ref even when the new commit is not a descendant of the
	// current head. Without it a concurrent commit restarts the sequence.
	Force bool
}

// CommitResult reports the new head and the blob SHA written for each path.
type CommitResult struct {
	SHA   string
	Blobs map[string]string
}

// Commit writes every change in req as a single commit:
// read ref → read commit → read tree → check Expect → create blobs → create
// tree → create commit → update ref. If the ref moved in between, the
// sequence restarts from the ref read.
func (r *Repo) Commit(ctx context.Context, req CommitRequest) (_ *CommitResult, err error) {
	ctx, done := r.in.observe(ctx, "commit", req.Message)
	defer func() { done(err) }()

	if len(req.Changes) == 0 {
		return nil, fmt.Errorf("commit %q: no changes", req.Message)
	}

	blobs := &blobCache{shas: make(map[string]string)}
	op := func() (*CommitResult, error) {
		res, err := r.commitOnce(ctx, req, blobs)
		if err != nil && !IsConflict(err) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	}
	return backoff.Retry(ctx, op, r.retryOpts("commit", req.Message)...)
}

func (r *Repo) commitOnce(ctx context.Context, req CommitRequest, blobs *blobCache) (*CommitResult, error) {
	h, err := r.head(ctx)
	if err != nil {
		return nil, err
	}
	files, err := r.treeFiles(ctx, h.tree)
	if err != nil {
		return nil, err
	}

	for p, want := range req.Expect {
		if have := files[p]; have != want {
			// A failed precondition will not pass on a retry.
			return nil, backoff.Permanent(&ConflictError{
				Path:   p,
				Reason: fmt.Sprintf("expected blob %q, found %q", want, have),
			})
		}
	}

	if err := r.createBlobs(ctx, req.Changes, blobs); err != nil {
		return nil, err
	}

	var entries []*gogithub.TreeEntry
	for _, c := range req.Changes {
		if c.Delete {
			if _, ok := files[c.Path]; !ok {
				continue
			}
			entries = append(entries, &gogithub.TreeEntry{
				Path: gogithub.Ptr(c.Path),
				Mode: gogithub.Ptr("100644"),
				Type: gogithub.Ptr("blob"),
			})
			continue
		}
		entries = append(entries, &gogithub.TreeEntry{
			Path: gogithub.Ptr(c.Path),
			Mode: gogithub.Ptr("100644"),
			Type: gogithub.Ptr("blob"),
			SHA:  gogithub.Ptr(blobs.get(c.Path)),
		})
	}
	if len(entries) == 0 {
		return &CommitResult{SHA: h.commit, Blobs: map[string]string{}}, nil
	}

	tree, _, err := r.gh.Git.CreateTree(ctx, r.cfg.Owner, r.cfg.Repo, h.tree, entries)
	if err != nil {
		return nil, classify("create tree", h.tree, err, false)
	}

	commit, _, err := r.gh.Git.CreateCommit(ctx, r.cfg.Owner, r.cfg.Repo, gogithub.Commit{
		Message:   gogithub.Ptr(req.Message),
		Tree:      &gogithub.Tree{SHA: tree.SHA},
		Parents:   []*gogithub.Commit{{SHA: gogithub.Ptr(h.commit)}},
		Author:    r.committer(),
		Committer: r.committer(),
	}, nil)
	if err != nil {
		return nil, classify("create commit", tree.GetSHA(), err, false)
	}

	_, _, err = r.gh.Git.UpdateRef(ctx, r.cfg.Owner, r.cfg.Repo, r.refName(), gogithub.UpdateRef{
		SHA:   commit.GetSHA(),
		Force: gogithub.Ptr(req.Force),
	})
	if err != nil {
		return nil, classify("update ref", r.refName(), err, true)
	}

	written := make(map[string]string, len(req.Changes))
	for _, c := range req.Changes {
		if !c.Delete {
			written[c.Path] = blobs.get(c.Path)
		}
	}
	r.log.Debug("batch commit", "sha", commit.GetSHA(), "files", len(entries), "message", req.Message)
	return &CommitResult{SHA: commit.GetSHA(), Blobs: written}, nil
}

// blobCache keeps blob SHAs across retries; blobs are content addressed so a
// restarted sequence can reuse them.
type blobCache struct {
	mu   sync.Mutex
	shas map[string]string
}

func (b *blobCache) get(p string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shas[p]
}

func (b *blobCache) set(p, sha string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shas[p] = sha
}

func (r *Repo) createBlobs(ctx context.Context, changes []Change, blobs *blobCache) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.FetchConcurrency)

	for _, c := range changes {
		if c.Delete || blobs.get(c.Path) != "" {
			continue
		}
		g.Go(func() error {
			blob, _, err := r.gh.Git.CreateBlob(gctx, r.cfg.Owner, r.cfg.Repo, gogithub.Blob{
				Content:  gogithub.Ptr(base64.StdEncoding.EncodeToString(c.Content)),
				Encoding: gogithub.Ptr("base64"),
			})
			if err != nil {
				return classify("create blob", c.Path, err, false)
			}
			blobs.set(c.Path, blob.GetSHA())
			return nil
		})
	}
	return g.Wait()
}
