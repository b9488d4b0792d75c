package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/fetch"
	"github.com/matzehuels/cfboot/pkg/store"
)

func mirror(t *testing.T, opts ...Option) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	for _, v := range []string{"1.0.0", "1.1.0"} {
		h := map[string]string{bundle.HeaderSymbolicName: "demo", bundle.HeaderVersion: v}
		if err := bundle.WriteJar(filepath.Join(dir, "demo-"+v+".jar"), h, nil); err != nil {
			t.Fatal(err)
		}
	}
	srv := httptest.NewServer(New(store.New(dir), opts...).Handler())
	t.Cleanup(srv.Close)
	return srv, dir
}

func TestFetchFromMirror(t *testing.T) {
	srv, _ := mirror(t)
	dir := t.TempDir()

	path, err := fetch.New(dir, fetch.WithBaseURL(srv.URL)).Download(context.Background(), "demo", "1.0.0", nil)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	d, err := bundle.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if d.Key() != "demo:1.0.0" {
		t.Errorf("downloaded %s, want demo:1.0.0", d.Key())
	}
}

func TestFetchLatestThroughRedirect(t *testing.T) {
	srv, _ := mirror(t, WithRedirects(true))

	path, err := fetch.New(t.TempDir(), fetch.WithBaseURL(srv.URL)).Download(context.Background(), "demo", fetch.Latest, nil)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if filepath.Base(path) != "demo-1.1.0.jar" {
		t.Errorf("Download() = %q, want demo-1.1.0.jar", path)
	}
}

func TestDownloadUnknownModule(t *testing.T) {
	srv, _ := mirror(t)
	resp, err := http.Get(srv.URL + "/rest/update/provider/download/missing/1.0.0/?allowRedirect=true")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDownloadInvalidVersion(t *testing.T) {
	srv, _ := mirror(t)
	resp, err := http.Get(srv.URL + "/rest/update/provider/download/demo/x.y/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestList(t *testing.T) {
	srv, _ := mirror(t)
	resp, err := http.Get(srv.URL + "/rest/update/provider/list")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "demo" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestFileRouteRejectsNonJars(t *testing.T) {
	srv, _ := mirror(t)
	for _, p := range []string{"/files/.hidden.jar", "/files/readme.txt", "/files/missing.jar"} {
		resp, err := http.Get(srv.URL + p)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", p, resp.StatusCode)
		}
	}
}
