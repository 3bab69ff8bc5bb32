// Package ghfake is an in-memory stand-in for the slice of the GitHub REST API
// the stockroom database layer talks to: the contents API (file/dir GET, PUT
// with SHA checks, DELETE) and the git data API (refs, commits, trees, blobs).
//
// It keeps real commit history per branch so tests can assert that a batch
// write produced exactly one commit, and it can inject failures to exercise
// conflict handling.
package ghfake

import (
	"crypto/sha1" //nolint:gosec // git object ids are sha1
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Op names an API operation that can have failures injected.
type Op string

// Operations that FailNext can target.
const (
	OpGetContents    Op = "get-contents"
	OpPutContents    Op = "put-contents"
	OpDeleteContents Op = "delete-contents"
	OpGetRef         Op = "get-ref"
	OpUpdateRef      Op = "update-ref"
	OpCreateBlob     Op = "create-blob"
	OpCreateTree     Op = "create-tree"
	OpCreateCommit   Op = "create-commit"
)

const defaultBranch = "main"

type commit struct {
	SHA     string
	Tree    string
	Message string
	Parents []string
}

type repoState struct {
	blobs   map[string][]byte
	trees   map[string]map[string]string // tree sha → path → blob sha
	commits map[string]commit
	refs    map[string]string // "heads/<branch>" → commit sha
}

type failure struct {
	status int
	times  int
}

// Server holds every fake repository. The zero value is not usable; call New.
type Server struct {
	mu       sync.Mutex
	repos    map[string]*repoState // "owner/repo"
	failures map[Op]*failure
	seq      int
	calls    map[Op]int
	before   map[Op]func()
}

// New creates an empty Server.
func New() *Server {
	return &Server{
		repos:    make(map[string]*repoState),
		failures: make(map[Op]*failure),
		calls:    make(map[Op]int),
		before:   make(map[Op]func()),
	}
}

// Handler returns a gin engine serving the fake API.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	s.Register(r)
	return r
}

// Register mounts the fake API routes on r.
func (s *Server) Register(r gin.IRoutes) {
	r.GET("/repos/:owner/:repo/contents/*path", s.getContents)
	r.PUT("/repos/:owner/:repo/contents/*path", s.putContents)
	r.DELETE("/repos/:owner/:repo/contents/*path", s.deleteContents)

	r.GET("/repos/:owner/:repo/git/ref/*ref", s.getRef)
	r.PATCH("/repos/:owner/:repo/git/refs/*ref", s.updateRef)
	r.GET("/repos/:owner/:repo/git/commits/:sha", s.getCommit)
	r.POST("/repos/:owner/:repo/git/commits", s.createCommit)
	r.GET("/repos/:owner/:repo/git/trees/:sha", s.getTree)
	r.POST("/repos/:owner/:repo/git/trees", s.createTree)
	r.POST("/repos/:owner/:repo/git/blobs", s.createBlob)
}

// FailNext makes the next `times` calls of op fail with the given status.
func (s *Server) FailNext(op Op, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = &failure{status: status, times: times}
}

// BeforeNext runs fn once, just before the next op is served. fn may call
// SetFile to simulate a concurrent writer.
func (s *Server) BeforeNext(op Op, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.before[op] = fn
}

// Calls returns how many requests for op reached the server.
func (s *Server) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// SetFile commits content at p on branch ("" means main) as its own commit.
func (s *Server) SetFile(owner, repo, branch, p string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.repo(owner, repo)
	head := st.head(branchOr(branch))
	files := copyTree(st.trees[st.commits[head].Tree])
	files[p] = st.putBlob(content)
	s.commitFiles(st, branchOr(branch), files, "seed "+p)
}

// File returns the content of p at the head of branch.
func (s *Server) File(owner, repo, branch, p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.repo(owner, repo)
	tree := st.trees[st.commits[st.head(branchOr(branch))].Tree]
	sha, ok := tree[p]
	if !ok {
		return nil, false
	}
	return st.blobs[sha], true
}

// Files returns every file at the head of branch keyed by path.
func (s *Server) Files(owner, repo, branch string) map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.repo(owner, repo)
	tree := st.trees[st.commits[st.head(branchOr(branch))].Tree]
	out := make(map[string][]byte, len(tree))
	for p, sha := range tree {
		out[p] = st.blobs[sha]
	}
	return out
}

// CommitCount returns the number of commits reachable from the head of branch,
// including the initial empty commit.
func (s *Server) CommitCount(owner, repo, branch string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.repo(owner, repo)
	n := 0
	for sha := st.head(branchOr(branch)); sha != ""; {
		n++
		c := st.commits[sha]
		if len(c.Parents) == 0 {
			break
		}
		sha = c.Parents[0]
	}
	return n
}

// HeadMessage returns the message of the head commit on branch.
func (s *Server) HeadMessage(owner, repo, branch string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.repo(owner, repo)
	return st.commits[st.head(branchOr(branch))].Message
}

func (s *Server) getContents(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intercept(c, OpGetContents) {
		return
	}

	st := s.repo(c.Param("owner"), c.Param("repo"))
	branch := branchOr(c.Query("ref"))
	p := strings.Trim(c.Param("path"), "/")
	tree := st.trees[st.commits[st.head(branch)].Tree]

	if sha, ok := tree[p]; ok {
		content := st.blobs[sha]
		c.JSON(http.StatusOK, gin.H{
			"type":     "file",
			"encoding": "base64",
			"size":     len(content),
			"name":     path.Base(p),
			"path":     p,
			"sha":      sha,
			"content":  base64.StdEncoding.EncodeToString(content),
		})
		return
	}

	if entries := listDir(tree, st.blobs, p); len(entries) > 0 {
		c.JSON(http.StatusOK, entries)
		return
	}

	notFound(c)
}

type contentsWrite struct {
	Message string  `json:"message"`
	Content string  `json:"content"`
	SHA     *string `json:"sha"`
	Branch  *string `json:"branch"`
}

func (s *Server) putContents(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intercept(c, OpPutContents) {
		return
	}

	var body contentsWrite
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}
	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		unprocessable(c, "content is not valid Base64")
		return
	}

	st := s.repo(c.Param("owner"), c.Param("repo"))
	branch := branchOr(deref(body.Branch))
	p := strings.Trim(c.Param("path"), "/")
	files := copyTree(st.trees[st.commits[st.head(branch)].Tree])

	current, exists := files[p]
	switch {
	case exists && deref(body.SHA) == "":
		unprocessable(c, "Invalid request.\n\n\"sha\" wasn't supplied.")
		return
	case exists && deref(body.SHA) != current:
		conflict(c, fmt.Sprintf("%s does not match %s", p, deref(body.SHA)))
		return
	case !exists && deref(body.SHA) != "":
		conflict(c, fmt.Sprintf("%s does not exist", p))
		return
	}

	sha := st.putBlob(content)
	files[p] = sha
	cm := s.commitFiles(st, branch, files, body.Message)

	status := http.StatusCreated
	if exists {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"content": gin.H{"type": "file", "name": path.Base(p), "path": p, "sha": sha, "size": len(content)},
		"commit":  commitJSON(cm),
	})
}

func (s *Server) deleteContents(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intercept(c, OpDeleteContents) {
		return
	}

	var body contentsWrite
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}

	st := s.repo(c.Param("owner"), c.Param("repo"))
	branch := branchOr(deref(body.Branch))
	p := strings.Trim(c.Param("path"), "/")
	files := copyTree(st.trees[st.commits[st.head(branch)].Tree])

	current, exists := files[p]
	if !exists {
		notFound(c)
		return
	}
	if deref(body.SHA) != current {
		conflict(c, fmt.Sprintf("%s does not match %s", p, deref(body.SHA)))
		return
	}

	delete(files, p)
	cm := s.commitFiles(st, branch, files, body.Message)
	c.JSON(http.StatusOK, gin.H{"content": nil, "commit": commitJSON(cm)})
}

func (s *Server) getRef(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intercept(c, OpGetRef) {
		return
	}

	st := s.repo(c.Param("owner"), c.Param("repo"))
	ref := strings.Trim(c.Param("ref"), "/")
	branch := strings.TrimPrefix(ref, "heads/")
	if _, ok := st.refs["heads/"+branch]; !ok && branch != defaultBranch {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, refJSON(ref, st.head(branch)))
}

func (s *Server) updateRef(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intercept(c, OpUpdateRef) {
		return
	}

	var body struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}

	st := s.repo(c.Param("owner"), c.Param("repo"))
	ref := strings.Trim(c.Param("ref"), "/")
	branch := strings.TrimPrefix(ref, "heads/")
	if _, ok := st.commits[body.SHA]; !ok {
		unprocessable(c, "Object does not exist")
		return
	}
	if !body.Force && !st.isAncestor(st.head(branch), body.SHA) {
		unprocessable(c, "Update is not a fast forward")
		return
	}
	st.refs["heads/"+branch] = body.SHA
	c.JSON(http.StatusOK, refJSON(ref, body.SHA))
}

func (s *Server) getCommit(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.repo(c.Param("owner"), c.Param("repo"))
	cm, ok := st.commits[c.Param("sha")]
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, commitJSON(cm))
}

func (s *Server) createCommit(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intercept(c, OpCreateCommit) {
		return
	}

	var body struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}

	st := s.repo(c.Param("owner"), c.Param("repo"))
	if _, ok := st.trees[body.Tree]; !ok {
		unprocessable(c, "Tree SHA does not exist")
		return
	}
	for _, p := range body.Parents {
		if _, ok := st.commits[p]; !ok {
			unprocessable(c, "Parent SHA does not exist or is not a commit object")
			return
		}
	}
	cm := s.newCommit(st, body.Tree, body.Message, body.Parents)
	c.JSON(http.StatusCreated, commitJSON(cm))
}

func (s *Server) getTree(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.repo(c.Param("owner"), c.Param("repo"))
	sha := c.Param("sha")
	tree, ok := st.trees[sha]
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, treeJSON(sha, tree, st.blobs))
}

func (s *Server) createTree(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intercept(c, OpCreateTree) {
		return
	}

	var body struct {
		BaseTree string `json:"base_tree"`
		Tree     []struct {
			Path    string  `json:"path"`
			Mode    string  `json:"mode"`
			Type    string  `json:"type"`
			SHA     *string `json:"sha"`
			Content *string `json:"content"`
		} `json:"tree"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}

	st := s.repo(c.Param("owner"), c.Param("repo"))
	files := map[string]string{}
	if body.BaseTree != "" {
		base, ok := st.trees[body.BaseTree]
		if !ok {
			unprocessable(c, "base_tree is not a valid tree oid")
			return
		}
		files = copyTree(base)
	}

	for _, e := range body.Tree {
		switch {
		case e.SHA == nil && e.Content == nil:
			delete(files, e.Path)
		case e.Content != nil:
			files[e.Path] = st.putBlob([]byte(*e.Content))
		default:
			if _, ok := st.blobs[*e.SHA]; !ok {
				unprocessable(c, "tree.sha "+*e.SHA+" is not a valid blob")
				return
			}
			files[e.Path] = *e.SHA
		}
	}

	sha := st.putTree(files)
	c.JSON(http.StatusCreated, treeJSON(sha, files, st.blobs))
}

func (s *Server) createBlob(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intercept(c, OpCreateBlob) {
		return
	}

	var body struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}

	content := []byte(body.Content)
	if body.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			unprocessable(c, "content is not valid Base64")
			return
		}
		content = decoded
	}

	st := s.repo(c.Param("owner"), c.Param("repo"))
	sha := st.putBlob(content)
	c.JSON(http.StatusCreated, gin.H{"sha": sha, "size": len(content)})
}

// The helpers below expect the caller to hold s.mu.

func (s *Server) intercept(c *gin.Context, op Op) bool {
	s.calls[op]++
	if fn, ok := s.before[op]; ok {
		delete(s.before, op)
		s.mu.Unlock()
		fn()
		s.mu.Lock()
	}
	f, ok := s.failures[op]
	if !ok || f.times == 0 {
		return false
	}
	f.times--
	c.JSON(f.status, gin.H{"message": "injected failure"})
	return true
}

func (s *Server) repo(owner, name string) *repoState {
	key := owner + "/" + name
	st, ok := s.repos[key]
	if ok {
		return st
	}
	st = &repoState{
		blobs:   make(map[string][]byte),
		trees:   make(map[string]map[string]string),
		commits: make(map[string]commit),
		refs:    make(map[string]string),
	}
	root := st.putTree(map[string]string{})
	initial := s.newCommit(st, root, "initial commit", nil)
	st.refs["heads/"+defaultBranch] = initial.SHA
	s.repos[key] = st
	return st
}

func (s *Server) newCommit(st *repoState, tree, message string, parents []string) commit {
	s.seq++
	h := sha1.New() //nolint:gosec // git object ids are sha1
	fmt.Fprintf(h, "tree %s\n%s\n%d\n%s", tree, strings.Join(parents, ","), s.seq, message)
	cm := commit{SHA: hex.EncodeToString(h.Sum(nil)), Tree: tree, Message: message, Parents: parents}
	st.commits[cm.SHA] = cm
	return cm
}

func (s *Server) commitFiles(st *repoState, branch string, files map[string]string, message string) commit {
	tree := st.putTree(files)
	cm := s.newCommit(st, tree, message, []string{st.head(branch)})
	st.refs["heads/"+branch] = cm.SHA
	return cm
}

// head returns the commit a branch points at. Unknown branches fork from main.
func (st *repoState) head(branch string) string {
	if sha, ok := st.refs["heads/"+branch]; ok {
		return sha
	}
	return st.refs["heads/"+defaultBranch]
}

func (st *repoState) isAncestor(ancestor, sha string) bool {
	for sha != "" {
		if sha == ancestor {
			return true
		}
		c, ok := st.commits[sha]
		if !ok || len(c.Parents) == 0 {
			return false
		}
		sha = c.Parents[0]
	}
	return false
}

func (st *repoState) putBlob(content []byte) string {
	h := sha1.New() //nolint:gosec // git object ids are sha1
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	sha := hex.EncodeToString(h.Sum(nil))
	st.blobs[sha] = append([]byte(nil), content...)
	return sha
}

func (st *repoState) putTree(files map[string]string) string {
	paths := sortedKeys(files)
	h := sha1.New() //nolint:gosec // git object ids are sha1
	for _, p := range paths {
		fmt.Fprintf(h, "%s\x00%s\n", p, files[p])
	}
	sha := hex.EncodeToString(h.Sum(nil))
	st.trees[sha] = copyTree(files)
	return sha
}

// listDir returns the immediate children of dir, mirroring the contents API
// directory response.
func listDir(tree map[string]string, blobs map[string][]byte, dir string) []gin.H {
	prefix := dir
	if prefix != "" {
		prefix += "/"
	}

	seen := map[string]bool{}
	var entries []gin.H
	for _, p := range sortedKeys(tree) {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		name, entryType, sha, size := rest, "file", tree[p], len(blobs[tree[p]])
		if idx := strings.Index(rest, "/"); idx != -1 {
			name, entryType, size = rest[:idx], "dir", 0
			h := sha1.Sum([]byte(prefix + name)) //nolint:gosec // synthetic tree id
			sha = hex.EncodeToString(h[:])
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		entries = append(entries, gin.H{
			"type": entryType,
			"name": name,
			"path": prefix + name,
			"sha":  sha,
			"size": size,
		})
	}
	return entries
}

func treeJSON(sha string, files map[string]string, blobs map[string][]byte) gin.H {
	entries := make([]gin.H, 0, len(files))
	for _, p := range sortedKeys(files) {
		entries = append(entries, gin.H{
			"path": p,
			"mode": "100644",
			"type": "blob",
			"sha":  files[p],
			"size": len(blobs[files[p]]),
		})
	}
	return gin.H{"sha": sha, "tree": entries, "truncated": false}
}

func commitJSON(c commit) gin.H {
	parents := make([]gin.H, 0, len(c.Parents))
	for _, p := range c.Parents {
		parents = append(parents, gin.H{"sha": p})
	}
	return gin.H{
		"sha":     c.SHA,
		"message": c.Message,
		"tree":    gin.H{"sha": c.Tree},
		"parents": parents,
	}
}

func refJSON(ref, sha string) gin.H {
	return gin.H{
		"ref":    "refs/" + strings.TrimPrefix(ref, "refs/"),
		"object": gin.H{"type": "commit", "sha": sha},
	}
}

func copyTree(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func branchOr(b string) string {
	if b == "" {
		return defaultBranch
	}
	return b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
}

func conflict(c *gin.Context, msg string) {
	c.JSON(http.StatusConflict, gin.H{"message": msg})
}

func unprocessable(c *gin.Context, msg string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msg})
}
