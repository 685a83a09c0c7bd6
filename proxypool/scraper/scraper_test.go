package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONScraper_DecodesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"host":"1.2.3.4","port":8080,"country":"Germany","city":"Berlin"},
			{"host":"5.6.7.8","port":3128,"username":"u","password":"p","country":"France","city":"Paris"}
		]`))
	}))
	defer srv.Close()

	proxies, err := NewJSONScraper(srv.URL).Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape returned error: %v", err)
	}
	if len(proxies) != 2 {
		t.Fatalf("expected 2 proxies, got %d", len(proxies))
	}
	if proxies[1].Username != "u" || proxies[1].Password != "p" || proxies[1].City != "Paris" {
		t.Errorf("unexpected second proxy: %+v", proxies[1])
	}
}

func TestJSONScraper_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"malformed body", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{not json`)) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			if _, err := NewJSONScraper(srv.URL).Scrape(context.Background()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestJSONScraper_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewJSONScraper(url).Scrape(context.Background()); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestHTMLTableScraper_ParsesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table>
			<thead><tr><th>IP</th><th>Port</th><th>Country</th><th>City</th></tr></thead>
			<tbody>
				<tr><td> 10.0.0.1 </td><td>8080</td><td>Netherlands</td><td>Amsterdam</td></tr>
				<tr><td>10.0.0.2</td><td>abc</td><td>Spain</td><td>Madrid</td></tr>
				<tr><td></td><td>80</td><td>Spain</td><td>Madrid</td></tr>
				<tr><td>10.0.0.3</td><td>3128</td></tr>
			</tbody>
		</table></body></html>`))
	}))
	defer srv.Close()

	proxies, err := NewHTMLTableScraper(srv.URL).Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape returned error: %v", err)
	}
	if len(proxies) != 2 {
		t.Fatalf("expected 2 proxies, got %d", len(proxies))
	}
	if proxies[0].Host != "10.0.0.1" || proxies[0].Port != 8080 || proxies[0].Country != "Netherlands" {
		t.Errorf("unexpected first proxy: %+v", proxies[0])
	}
	if proxies[1].Country != "" || proxies[1].City != "" {
		t.Errorf("missing columns should be empty: %+v", proxies[1])
	}
}
