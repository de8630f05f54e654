package api

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/budgetqa/internal/index"
	"github.com/dgallion1/budgetqa/internal/rag"
)

const headerPreviewRunes = 100

var exampleQuestions = []string{
	"在路面标线中，纵向标线的工程预算定额是多少?",
	"在现浇混凝土工程中，承台的工程预算定额是多少?",
	"在隧道爆破开挖中，平洞钻爆开挖工程预算定额是多少？当断面面积在100平方米以内?",
}

type pageData struct {
	Query    string
	K        int
	KOptions []int
	Examples []string
	Chunks   int
	Setup    string
	Error    string
	Answer   template.HTML
	Sources  []sourceView
}

type sourceView struct {
	N           int
	Pages       string
	Section     string
	Similarity  string
	TableHeader string
	Body        template.HTML
	Open        bool
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	data := pageData{
		Query:    strings.TrimSpace(r.URL.Query().Get("q")),
		K:        s.resolveK(k),
		Examples: exampleQuestions,
	}
	for i := rag.MinK; i <= rag.MaxK; i++ {
		data.KOptions = append(data.KOptions, i)
	}

	status := http.StatusOK
	if msg, code := s.checkSetup(r.Context()); code != 0 {
		data.Setup = msg
		s.renderPage(w, code, data)
		return
	}
	data.Chunks, _ = s.index.Count(r.Context())

	if data.Query != "" {
		res, err := s.engine.Query(r.Context(), data.Query, data.K)
		if err != nil {
			s.log.Error("query failed", "error", err)
			data.Error = err.Error()
			status = http.StatusBadGateway
		} else {
			data.Answer = s.renderMarkdown(res.Answer)
			data.Sources = s.sourceViews(res.Sources)
		}
	}
	s.renderPage(w, status, data)
}

func (s *Server) sourceViews(hits []index.Hit) []sourceView {
	views := make([]sourceView, len(hits))
	for i, h := range hits {
		views[i] = sourceView{
			N:           i + 1,
			Pages:       h.Chunk.PageRange(),
			Section:     h.Chunk.Section,
			Similarity:  fmt.Sprintf("%.1f%%", (1-h.Distance)*100),
			TableHeader: truncateRunes(h.Chunk.Header(), headerPreviewRunes),
			Body:        s.renderMarkdown(h.Chunk.Text),
			Open:        i == 0,
		}
	}
	return views
}

// renderMarkdown converts answer or chunk markdown to HTML. Raw HTML in the
// input is dropped by goldmark's default renderer.
func (s *Server) renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(src), &buf); err != nil {
		s.log.Warn("markdown render failed", "error", err)
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(buf.String())
}

func (s *Server) renderPage(w http.ResponseWriter, code int, data pageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.log.Error("render page failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

const pageTemplate = `<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<title>浙江省市政工程预算定额辅助查询平台</title>
<style>
body { font-family: sans-serif; max-width: 1100px; margin: 2em auto; padding: 0 1em; }
.source { background: #f0f2f6; border-radius: 10px; padding: 15px; margin: 10px 0; border-left: 4px solid #1f77b4; }
.badge { background: #1f77b4; color: #fff; padding: 2px 8px; border-radius: 4px; font-size: 0.8em; }
.section { background: #2ecc71; margin-left: 5px; }
.table-header { background: #e8f4fd; padding: 6px; font-family: monospace; }
.error { color: #b00020; }
table { border-collapse: collapse; } td, th { border: 1px solid #ccc; padding: 2px 6px; }
</style>
</head>
<body>
<h1>浙江省市政工程预算定额辅助查询平台</h1>
<p>人工智能辅助(AI-assist)检索相关市政工程预算</p>
{{if .Setup}}
<div class="error"><h2>Setup required</h2><p>{{.Setup}}</p></div>
{{else}}
<form method="get" action="/">
<input type="text" name="q" value="{{.Query}}" size="80" placeholder="进行工程预算定额查询">
<label>检索资源数量
<select name="k">{{range .KOptions}}<option value="{{.}}"{{if eq . $.K}} selected{{end}}>{{.}}</option>{{end}}</select>
</label>
<button type="submit">检索</button>
<a href="/">清除</a>
</form>
<h3>问题示例</h3>
<ul>{{range .Examples}}<li><a href="/?q={{.}}&amp;k={{$.K}}">{{.}}</a></li>{{end}}</ul>
<p>索引块: {{.Chunks}}</p>
{{if .Error}}<p class="error">Error processing query: {{.Error}}</p>{{end}}
{{if .Answer}}
<hr>
<h2>搜索结果</h2>
<div class="answer">{{.Answer}}</div>
<hr>
<h2>检索资源</h2>
{{range .Sources}}
<details class="source"{{if .Open}} open{{end}}>
<summary>Source {{.N}}: {{.Pages}} (relevance: {{.Similarity}})</summary>
<p><span class="badge">{{.Pages}}</span>{{if .Section}}<span class="badge section">{{.Section}}</span>{{end}} Similarity: {{.Similarity}}</p>
{{if .TableHeader}}<div class="table-header">Table context: {{.TableHeader}}</div>{{end}}
<hr>
{{.Body}}
</details>
{{end}}
{{end}}
{{end}}
</body>
</html>
`
