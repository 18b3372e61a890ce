// Package site is a small demo content origin: one article with its author,
// navigation, footer and topic taxonomy, plus stand-ins for stylesheets and
// media. Responses are delayed by 20-120ms to make block loading visible on
// the dashboard.
package site

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// ArticlePath is the demo article.
const ArticlePath = "/en/2024/market-outlook"

var pages = map[string]string{
	ArticlePath: `<html><head>
<title>Market Outlook 2024</title>
<meta name="description" content="Where markets are heading after a year of rate hikes.">
<meta name="publication-date" content="12 March 2024">
<meta name="author" content="Jane Doe">
<meta property="article:tag" content="Economy">
<meta property="article:tag" content="Markets">
</head><body><header></header><main>
<div>
<h1>Market Outlook 2024</h1>
<p><picture><img src="/media_outlook.jpeg" alt="Trading floor"></picture></p>
<p><em>The trading floor in March</em></p>
<p>Markets rallied in the first quarter as inflation eased.</p>
<p><picture><img src="/media_chart1.png" alt="Rates"></picture></p>
<p><picture><img src="/media_chart2.png" alt="Spreads"></picture></p>
<p><em>Rates and spreads since 2020</em></p>
</div>
<div>
<div class="additional-materials">
<div><div>Report</div><div>Full outlook</div><div>All charts and tables</div><div><a href="/docs/outlook.pdf">pdf</a></div></div>
<div><div>Slides</div><div>Briefing deck</div></div>
</div>
</div>
</main><footer></footer></body></html>`,

	"/en/authors/jane-doe.plain.html": `<div><p><picture><img src="/media_jane.png" alt="Jane Doe"></picture></p><h1>Jane Doe</h1><p>Chief economist.</p></div>`,

	"/en/gnav.plain.html": `<div><p><a href="/en">Acme</a></p></div>
<div><h2>Insights</h2><ul><li><a href="/en/topics/economy">Economy</a></li><li><a href="/en/topics/markets">Markets</a></li></ul></div>`,

	"/en/footer.plain.html": `<div><h2>About us</h2><ul><li><a href="/en/about">Who we are</a></li></ul></div>
<div><h2>Help</h2><ul><li><a href="/en/contact">Contact</a></li></ul></div>
<div><p><a href="https://www.linkedin.com/company/acme">LinkedIn</a></p></div>
<div><p><a href="/en/privacy">Privacy</a></p><p>© 2024 Acme</p></div>`,

	"/en/taxonomy.json": `{"data": [
  {"Name": "News", "Parent": "", "UFT": "yes"},
  {"Name": "Economy", "Parent": "News", "Link": "/en/topics/economy", "UFT": "yes"},
  {"Name": "Markets", "Parent": "News", "Link": "/en/topics/markets", "UFT": "yes"}
]}`,
}

// Handler serves the demo site. POSTs (checkpoint beacons) are logged and
// accepted.
func Handler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.IntN(100)) * time.Millisecond)

		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			logger.Info("checkpoint received", "path", r.URL.Path, "body", string(body))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if body, ok := pages[r.URL.Path]; ok {
			if strings.HasSuffix(r.URL.Path, ".json") {
				w.Header().Set("Content-Type", "application/json")
			} else {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
			}
			_, _ = io.WriteString(w, body)
			return
		}

		switch {
		case strings.HasSuffix(r.URL.Path, ".css"):
			w.Header().Set("Content-Type", "text/css")
		case strings.HasPrefix(r.URL.Path, "/media_"), strings.HasPrefix(r.URL.Path, "/icons/"):
			w.Header().Set("Content-Type", "image/png")
		default:
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
