package ghdb

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"
	gogithub "github.com/google/go-github/v75/github"
)

// Write stores content at p, replacing whatever is there. The current SHA is
// fetched before each PUT; if GitHub rejects it as stale the SHA is refetched
// and the PUT retried with exponential backoff up to MaxAttempts.
func (r *Repo) Write(ctx context.Context, p string, content []byte, message string) (_ *File, err error) {
	ctx, done := r.in.observe(ctx, "write", p)
	defer func() { done(err) }()

	op := func() (*File, error) {
		sha, err := r.currentSHA(ctx, p)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		f, err := r.put(ctx, p, content, message, sha)
		if err != nil && !IsConflict(err) {
			return nil, backoff.Permanent(err)
		}
		return f, err
	}
	return backoff.Retry(ctx, op, r.retryOpts("write", p)...)
}

// WriteIfMatch stores content at p only if the file's current blob SHA equals
// sha. An empty sha means the file must not exist yet. A mismatch returns a
// *ConflictError and is never retried.
func (r *Repo) WriteIfMatch(ctx context.Context, p string, content []byte, message, sha string) (_ *File, err error) {
	ctx, done := r.in.observe(ctx, "write_if_match", p)
	defer func() { done(err) }()

	return r.put(ctx, p, content, message, sha)
}

// Delete removes p. An empty sha deletes whatever version is current.
func (r *Repo) Delete(ctx context.Context, p, message, sha string) (err error) {
	ctx, done := r.in.observe(ctx, "delete", p)
	defer func() { done(err) }()

	if sha == "" {
		f, err := r.Read(ctx, p)
		if err != nil {
			return err
		}
		sha = f.SHA
	}

	opts := &gogithub.RepositoryContentFileOptions{
		Message:   gogithub.Ptr(message),
		SHA:       gogithub.Ptr(sha),
		Branch:    gogithub.Ptr(r.cfg.Branch),
		Committer: r.committer(),
	}
	_, _, err = r.gh.Repositories.DeleteFile(ctx, r.cfg.Owner, r.cfg.Repo, p, opts)
	return classify("delete", p, err, true)
}

func (r *Repo) put(ctx context.Context, p string, content []byte, message, sha string) (*File, error) {
	opts := &gogithub.RepositoryContentFileOptions{
		Message:   gogithub.Ptr(message),
		Content:   content,
		Branch:    gogithub.Ptr(r.cfg.Branch),
		Committer: r.committer(),
	}

	var (
		res *gogithub.RepositoryContentResponse
		err error
	)
	if sha == "" {
		res, _, err = r.gh.Repositories.CreateFile(ctx, r.cfg.Owner, r.cfg.Repo, p, opts)
	} else {
		opts.SHA = gogithub.Ptr(sha)
		res, _, err = r.gh.Repositories.UpdateFile(ctx, r.cfg.Owner, r.cfg.Repo, p, opts)
	}
	if err != nil {
		return nil, classify("put", p, err, true)
	}
	return &File{Path: p, SHA: res.GetContent().GetSHA(), Content: content}, nil
}

// currentSHA returns the blob SHA of p, or "" if it does not exist.
func (r *Repo) currentSHA(ctx context.Context, p string) (string, error) {
	f, err := r.Read(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return f.SHA, nil
}
