package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"priceline/internal/feed"
)

// cookiedump copies the gateway session cookies out of a local browser into
// the session file priceline reads at startup. With -list it only prints them.
func main() {
	from := flag.String("from-browser", "chrome", "browser to read cookies from")
	forURL := flag.String("for", "", "gateway URL to dump cookies for (e.g., https://localhost:5000)")
	out := flag.String("out", "./data/session.json", "output JSON path for session cookies")
	list := flag.Bool("list", false, "print matching cookies instead of writing them")
	full := flag.Bool("full", false, "with -list, print full cookie values")
	flag.Parse()

	if *forURL == "" {
		log.Fatal("--for URL is required")
	}

	cs, err := feed.CookiesFromBrowser(*from, *forURL)
	if err != nil {
		log.Fatalf("read cookies: %v", err)
	}
	if *list {
		printCookies(cs, *full)
		return
	}
	if err := feed.WriteSession(*out, cs); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	fmt.Printf("Wrote %d cookies for %s to %s\n", len(cs), *forURL, *out)
}

func printCookies(cs []*http.Cookie, full bool) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Domain != cs[j].Domain {
			return cs[i].Domain < cs[j].Domain
		}
		if cs[i].Path != cs[j].Path {
			return cs[i].Path < cs[j].Path
		}
		return cs[i].Name < cs[j].Name
	})

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Domain", "Path", "Name", "Value", "Secure", "HttpOnly", "Expires"})
	now := time.Now()
	for _, c := range cs {
		tw.AppendRow(table.Row{c.Domain, c.Path, c.Name, truncate(c.Value, full), c.Secure, c.HttpOnly, expires(c.Expires, now)})
	}
	tw.AppendFooter(table.Row{"", "", "Total", len(cs)})
	tw.Render()

	if len(cs) == 0 {
		fmt.Println("No matching cookies. Sign in to the gateway in the browser and re-run.")
	}
}

func truncate(v string, full bool) string {
	if full || len(v) <= 40 {
		return v
	}
	return v[:40] + "..."
}

func expires(t, now time.Time) string {
	switch {
	case t.IsZero():
		return "session"
	case now.After(t):
		return t.UTC().Format(time.RFC3339) + " (expired)"
	default:
		return t.UTC().Format(time.RFC3339)
	}
}
