package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/barber-agent/internal/observability/metrics"
	"github.com/wolfman30/barber-agent/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, logging.New("error"), opts...)
}

func strPtr(s string) *string { return &s }

func TestClient_ListByLocation_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/tenants/by-location" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("city"); got != "İstanbul" {
			t.Fatalf("city = %q", got)
		}
		if got := r.URL.Query().Get("district"); got != "Kadıköy" {
			t.Fatalf("district = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":7,"name":"Baran Kuaför","neighborhood":"Moda","address":"Moda Cd. 1"},
			{"id":3,"name":"Usta Berber","neighborhood":"","address":"Bahariye Cd. 5"},
			{"id":9,"name":"Yeni Salon"}
		]`))
	})

	listings, err := client.ListByLocation(context.Background(), "  İstanbul ", strPtr("Kadıköy"))
	if err != nil {
		t.Fatalf("ListByLocation() error = %v", err)
	}
	want := []Listing{
		{ID: 7, Name: "Baran Kuaför", Address: "Moda"},
		{ID: 3, Name: "Usta Berber", Address: "Bahariye Cd. 5"},
		{ID: 9, Name: "Yeni Salon", Address: ""},
	}
	if len(listings) != len(want) {
		t.Fatalf("len(listings) = %d, want %d", len(listings), len(want))
	}
	for i := range want {
		if listings[i] != want[i] {
			t.Fatalf("listing[%d] = %+v, want %+v", i, listings[i], want[i])
		}
	}
}

func TestClient_ListByLocation_OmitsEmptyDistrict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["district"]; ok {
			t.Fatalf("district should be omitted, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[]`))
	})

	listings, err := client.ListByLocation(context.Background(), "Ankara", nil)
	if err != nil {
		t.Fatalf("ListByLocation() error = %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("expected empty result, got %d", len(listings))
	}
}

func TestClient_ListByLocation_RequiresCity(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", nil)
	_, err := client.ListByLocation(context.Background(), "   ", nil)
	if !errors.Is(err, ErrCityRequired) {
		t.Fatalf("expected ErrCityRequired, got %v", err)
	}
}

func TestClient_ListByLocation_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"tenants":`))
			},
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":1}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			if _, err := client.ListByLocation(context.Background(), "Ankara", strPtr("Çankaya")); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestClient_ListByLocation_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	if _, err := client.ListByLocation(context.Background(), "Ankara", nil); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestClient_ListCitiesAndDistricts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/locations/cities":
			_, _ = w.Write([]byte(`["Ankara","İstanbul"]`))
		case "/api/locations/cities/Ankara/districts":
			_, _ = w.Write([]byte(`["Çankaya","Keçiören"]`))
		case "/api/locations/cities/İstanbul/districts":
			if !strings.Contains(r.RequestURI, "/cities/%C4%B0stanbul/") {
				t.Fatalf("city segment not escaped: %q", r.RequestURI)
			}
			_, _ = w.Write([]byte(`["Kadıköy"]`))
		default:
			http.NotFound(w, r)
		}
	})

	cities, err := client.ListCities(context.Background())
	if err != nil {
		t.Fatalf("ListCities() error = %v", err)
	}
	if len(cities) != 2 || cities[1] != "İstanbul" {
		t.Fatalf("cities = %v", cities)
	}

	districts, err := client.ListDistricts(context.Background(), "Ankara")
	if err != nil {
		t.Fatalf("ListDistricts() error = %v", err)
	}
	if len(districts) != 2 || districts[0] != "Çankaya" {
		t.Fatalf("districts = %v", districts)
	}

	districts, err = client.ListDistricts(context.Background(), "İstanbul")
	if err != nil {
		t.Fatalf("ListDistricts(İstanbul) error = %v", err)
	}
	if len(districts) != 1 || districts[0] != "Kadıköy" {
		t.Fatalf("districts = %v", districts)
	}

	if _, err := client.ListDistricts(context.Background(), ""); !errors.Is(err, ErrCityRequired) {
		t.Fatalf("expected ErrCityRequired, got %v", err)
	}
}

func TestClient_RecordsMetrics(t *testing.T) {
	m := metrics.NewConversationMetrics(prometheus.NewRegistry())
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, WithMetrics(m))

	if _, err := client.ListCities(context.Background()); err != nil {
		t.Fatalf("ListCities() error = %v", err)
	}
}
