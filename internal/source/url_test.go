package source

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestURLFetchTainting(t *testing.T) {
	data := pngBytes(t, 4, 4, color.White)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/granted.png":
			if o := r.Header.Get("Origin"); o != "" {
				w.Header().Set("Access-Control-Allow-Origin", o)
			}
		case "/wildcard.png":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case "/missing.png":
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	const app = "https://app.example.com"

	tests := []struct {
		name    string
		src     URL
		tainted bool
	}{
		{"granted", URL{Address: srv.URL + "/granted.png", Origin: app}, false},
		{"wildcard", URL{Address: srv.URL + "/wildcard.png", Origin: app}, false},
		{"not granted", URL{Address: srv.URL + "/plain.png", Origin: app}, true},
		{"no-cors cross origin", URL{Address: srv.URL + "/granted.png", Origin: app, Mode: NoCORS}, true},
		{"same origin", URL{Address: srv.URL + "/plain.png", Origin: srv.URL}, false},
		{"no app origin", URL{Address: srv.URL + "/plain.png"}, false},
	}

	l := NewLoader(nil, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bmp, err := l.LoadImage(context.Background(), tt.src)
			if err != nil {
				t.Fatalf("LoadImage failed: %v", err)
			}
			if bmp.Tainted() != tt.tainted {
				t.Errorf("expected tainted=%v, got %v", tt.tainted, bmp.Tainted())
			}
		})
	}

	_, err := l.LoadImage(context.Background(), URL{Address: srv.URL + "/missing.png", Origin: app})
	var le *LoadError
	if !errors.As(err, &le) {
		t.Errorf("expected LoadError for 404, got %v", err)
	}
}
