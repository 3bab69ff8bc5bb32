// Command mock-github serves an in-memory GitHub contents and git data API
// seeded with a sample inventory, for running stockroom locally.
package main

import (
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/stockroom/pkg/ghfake"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	owner, repo, ok := strings.Cut(envOr("GITHUB_REPO", "acme/inventory"), "/")
	if !ok {
		log.Error("GITHUB_REPO must be owner/name")
		os.Exit(1)
	}

	gh := ghfake.New()
	if err := seedRepo(gh, owner, repo); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
	log.Info("seeded repo", "repo", owner+"/"+repo, "parts", len(seedParts))

	r := gin.Default()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := indexPage.Execute(c.Writer, newIndex(gh, owner, repo)); err != nil {
			log.Error("render index", "error", err)
		}
	})
	gh.Register(r)

	port := envOr("PORT", "9090")
	log.Info("mock-github starting", "port", port)
	if err := r.Run(":" + port); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// --- HTML index ---

type indexFile struct {
	Path string
	Size int
}

type indexData struct {
	Repo    string
	Commits int
	Head    string
	Files   []indexFile
}

func newIndex(gh *ghfake.Server, owner, repo string) indexData {
	files := gh.Files(owner, repo, "main")
	d := indexData{
		Repo:    owner + "/" + repo,
		Commits: gh.CommitCount(owner, repo, "main"),
		Head:    gh.HeadMessage(owner, repo, "main"),
		Files:   make([]indexFile, 0, len(files)),
	}
	for p, b := range files {
		d.Files = append(d.Files, indexFile{Path: p, Size: len(b)})
	}
	sort.Slice(d.Files, func(i, j int) bool { return d.Files[i].Path < d.Files[j].Path })
	return d
}

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>{{.Repo}} - Mock GitHub</title>
  <meta http-equiv="refresh" content="3">
  <style>
    * { margin:0; padding:0; box-sizing:border-box; }
    body { background:#0d1117; color:#c9d1d9; font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Helvetica,Arial,sans-serif; }
    td { padding:8px 16px; border-bottom:1px solid #21262d; font-size:13px; }
  </style>
</head>
<body>
  <div style="max-width:860px;margin:0 auto;padding:32px 16px;">
    <div style="display:flex;align-items:center;justify-content:space-between;margin-bottom:24px;">
      <h1 style="font-size:20px;font-weight:600;">{{.Repo}}</h1>
      <span style="font-size:13px;color:#8b949e;">{{.Commits}} commits &middot; {{.Head}}</span>
    </div>
    <table style="width:100%;border-collapse:collapse;background:#161b22;border:1px solid #30363d;">
      <tbody>
      {{range .Files}}
        <tr><td style="font-family:monospace;color:#79c0ff;">{{.Path}}</td><td style="color:#8b949e;text-align:right;">{{.Size}} B</td></tr>
      {{else}}
        <tr><td style="padding:40px 16px;text-align:center;color:#8b949e;">Empty repository.</td></tr>
      {{end}}
      </tbody>
    </table>
  </div>
</body>
</html>`))
