// Command a11ydebug loads a page, enables modes on it and prints what each
// mode did, plus the computed style of matching elements.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"calmpage/affect"
	"calmpage/assets"
	"calmpage/engine"
	"golang.org/x/net/html/charset"
)

func main() {
	modes := flag.String("modes", strings.Join(affect.Names(), ","), "comma separated modes to enable")
	sel := flag.String("sel", "", "selector whose computed style is printed")
	props := flag.String("props", "color,background-color,font-size,display,animation", "properties to print for -sel")
	dump := flag.Bool("dump", false, "print the transformed page")
	flag.Parse()

	src := "https://example.com/"
	if flag.NArg() > 0 {
		src = flag.Arg(0)
	}
	log.SetFlags(0)
	logger := log.New(os.Stderr, "", 0)

	body, base, err := load(src)
	if err != nil {
		log.Fatal(err)
	}
	doc, err := engine.Parse(body, engine.WithBaseURL(base), engine.WithLogger(logger))
	body.Close()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	reg := affect.NewRegistry(doc,
		engine.WithAssets(assets.Loader()),
		engine.WithFrames(engine.NewFrameFetcher(nil)),
	)
	if err := reg.Enable(ctx, strings.Split(*modes, ",")...); err != nil {
		logger.Printf("enable: %v", err)
	}
	if err := doc.Settle(ctx); err != nil {
		logger.Printf("settle: %v", err)
	}

	for _, name := range reg.Enabled() {
		c, _ := reg.Mode(name)
		s := c.Session()
		fmt.Printf("mode=%s applied=%d tracked=%d flags=%v\n", name, s.Loop.Applied(), len(s.Ledger.Tracked(doc.Root())), c.State().Flags())
	}
	fmt.Printf("gates=%d\n", len(doc.QueryAll("["+engine.GateAttr+"]")))

	if *sel != "" {
		for _, n := range doc.QueryAll(*sel) {
			var parts []string
			for _, p := range strings.Split(*props, ",") {
				p = strings.TrimSpace(p)
				parts = append(parts, p+"="+doc.ComputedValue(n, p))
			}
			fmt.Printf("node=%s hidden=%v %s\n", n.Data, doc.IsHidden(n), strings.Join(parts, " "))
		}
	}
	if *dump {
		if err := doc.Render(os.Stdout); err != nil {
			log.Fatal(err)
		}
	}
}

// load opens a URL or a local file.
func load(src string) (io.ReadCloser, string, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		f, err := os.Open(src)
		return f, "", err
	}
	req, err := http.NewRequest(http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", "a11ydebug/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	r, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		return nil, "", err
	}
	return struct {
		io.Reader
		io.Closer
	}{r, resp.Body}, resp.Request.URL.String(), nil
}
