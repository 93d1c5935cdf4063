package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tablero/internal/core"
)

// newTestClient points a Sheets service at a local fake API.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &Client{svc: svc, mode: AuthAPIKey}
}

func TestNewServiceAccountClientClose(t *testing.T) {
	c, err := New(context.Background(), ServiceAccountAuth{Email: "svc@example.iam.gserviceaccount.com", PrivateKey: "key"},
		goption.WithEndpoint("http://127.0.0.1:0/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.pool == nil {
		t.Fatal("service account client should own a pooled HTTP client")
	}
	for i := 0; i < 2; i++ {
		if err := c.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i+1, err)
		}
	}
}

func TestClient_ReadValues(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"range":"'Hoja 1'!A1:F3","values":[["Fecha","Tipo","Categoria","Importe","Estado"],["15/03/2024","Gasto","Software",100,true],[]]}`)
	})

	rows, err := c.ReadValues(context.Background(), "sheet-id", "Hoja 1!A:F")
	if err != nil {
		t.Fatalf("ReadValues: %v", err)
	}
	if !strings.Contains(gotPath, "/v4/spreadsheets/sheet-id/values/") {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	want := [][]string{
		{"Fecha", "Tipo", "Categoria", "Importe", "Estado"},
		{"15/03/2024", "Gasto", "Software", "100", "true"},
		{},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestClient_ReadValuesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"The caller does not have permission"}}`)
	})

	_, err := c.ReadValues(context.Background(), "sheet-id", "Hoja 1!A:F")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 403") || !strings.Contains(err.Error(), "permission") {
		t.Fatalf("error should carry status and message, got %v", err)
	}
}

func TestClient_AppendValues(t *testing.T) {
	var (
		gotInput string
		gotBody  struct {
			Values [][]string `json:"values"`
		}
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":append") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotInput = r.URL.Query().Get("valueInputOption")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"updates":{"updatedRange":"'Hoja 1'!A7:F7","updatedRows":1}}`)
	})

	row := []string{"15/03/2024", "Gasto", "Software", "100", "Pagado", ""}
	rng, err := c.AppendValues(context.Background(), "sheet-id", "Hoja 1!A:F", row)
	if err != nil {
		t.Fatalf("AppendValues: %v", err)
	}
	if rng != "'Hoja 1'!A7:F7" {
		t.Fatalf("updated range = %q", rng)
	}
	if gotInput != ValueInputOption {
		t.Fatalf("valueInputOption = %q, want %q", gotInput, ValueInputOption)
	}
	if len(gotBody.Values) != 1 || !reflect.DeepEqual(gotBody.Values[0], row) {
		t.Fatalf("unexpected body values %v", gotBody.Values)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{}
	if _, err := c.ReadValues(context.Background(), "id", "A:F"); err == nil {
		t.Fatal("expected error with nil service")
	}
	if _, err := c.AppendValues(context.Background(), "id", "A:F", nil); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestNew_NilAuth(t *testing.T) {
	_, err := New(context.Background(), nil)
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestNew_APIKey(t *testing.T) {
	c, err := New(context.Background(), APIKeyAuth{Key: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Mode() != AuthAPIKey {
		t.Fatalf("mode = %s", c.Mode())
	}
}

func TestToStrings(t *testing.T) {
	got := toStrings([]interface{}{"a", 1.5, nil, false})
	want := []string{"a", "1.5", "", "false"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("toStrings = %v, want %v", got, want)
	}
	if valuesToStrings(nil) != nil {
		t.Fatal("expected nil for empty values")
	}
}
