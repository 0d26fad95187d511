package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ligustah/datagov/internal/ckan"
)

// CatalogServer is a minimal CKAN action API backed by memory.
type CatalogServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	packages map[string]ckan.Package
	orgs     []string
	queries  map[string][]url.Values
	auth     string
}

// NewCatalogServer starts a catalog that is closed when t finishes.
func NewCatalogServer(t *testing.T) *CatalogServer {
	t.Helper()

	cs := &CatalogServer{
		packages: make(map[string]ckan.Package),
		queries:  make(map[string][]url.Values),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/3/action/package_show", cs.packageShow)
	mux.HandleFunc("GET /api/3/action/package_search", cs.packageSearch)
	mux.HandleFunc("GET /api/3/action/package_autocomplete", cs.packageAutocomplete)
	mux.HandleFunc("GET /api/3/action/organization_list", cs.organizationList)

	cs.srv = httptest.NewServer(mux)
	t.Cleanup(cs.srv.Close)
	return cs
}

// BaseURL returns the API root to hand to ckan.NewClient.
func (cs *CatalogServer) BaseURL() string {
	return cs.srv.URL + "/api/3"
}

// AddPackage registers pkg under its name and id.
func (cs *CatalogServer) AddPackage(pkg ckan.Package) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.packages[pkg.Name] = pkg
	if pkg.ID != "" {
		cs.packages[pkg.ID] = pkg
	}
}

// SetOrganizations sets the organization_list result.
func (cs *CatalogServer) SetOrganizations(names ...string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.orgs = names
}

// Queries returns the query parameters of every call to action.
func (cs *CatalogServer) Queries(action string) []url.Values {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]url.Values(nil), cs.queries[action]...)
}

// Authorization returns the Authorization header of the latest request.
func (cs *CatalogServer) Authorization() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.auth
}

func (cs *CatalogServer) record(action string, r *http.Request) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.queries[action] = append(cs.queries[action], r.URL.Query())
	cs.auth = r.Header.Get("Authorization")
}

func (cs *CatalogServer) packageShow(w http.ResponseWriter, r *http.Request) {
	cs.record("package_show", r)

	cs.mu.Lock()
	pkg, ok := cs.packages[r.URL.Query().Get("id")]
	cs.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Not found", "Not Found Error")
		return
	}
	writeResult(w, pkg)
}

func (cs *CatalogServer) packageSearch(w http.ResponseWriter, r *http.Request) {
	cs.record("package_search", r)

	q := strings.ToLower(r.URL.Query().Get("q"))
	rows := intParam(r, "rows", 10)
	start := intParam(r, "start", 0)

	var matches []ckan.Package
	for _, pkg := range cs.unique() {
		if q == "" || strings.Contains(strings.ToLower(pkg.Name+" "+pkg.Title+" "+pkg.Notes), q) {
			matches = append(matches, pkg)
		}
	}

	result := ckan.SearchResult{Count: len(matches), Results: []ckan.Package{}}
	if start < len(matches) {
		end := min(start+rows, len(matches))
		result.Results = matches[start:end]
	}
	writeResult(w, result)
}

func (cs *CatalogServer) packageAutocomplete(w http.ResponseWriter, r *http.Request) {
	cs.record("package_autocomplete", r)

	q := strings.ToLower(r.URL.Query().Get("q"))
	limit := intParam(r, "limit", 10)

	results := []ckan.AutocompleteResult{}
	for _, pkg := range cs.unique() {
		if len(results) == limit {
			break
		}
		if strings.HasPrefix(pkg.Name, q) {
			results = append(results, ckan.AutocompleteResult{
				Name:           pkg.Name,
				Title:          pkg.Title,
				MatchField:     "name",
				MatchDisplayed: pkg.Name,
			})
		}
	}
	writeResult(w, results)
}

func (cs *CatalogServer) organizationList(w http.ResponseWriter, r *http.Request) {
	cs.record("organization_list", r)

	cs.mu.Lock()
	orgs := append([]string{}, cs.orgs...)
	cs.mu.Unlock()

	if limit := intParam(r, "limit", 0); limit > 0 && limit < len(orgs) {
		orgs = orgs[:limit]
	}
	writeResult(w, orgs)
}

// unique returns each package once, ordered by name.
func (cs *CatalogServer) unique() []ckan.Package {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	seen := make(map[string]bool)
	var pkgs []ckan.Package
	for _, pkg := range cs.packages {
		if seen[pkg.Name] {
			continue
		}
		seen[pkg.Name] = true
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "result": result})
}

func writeError(w http.ResponseWriter, status int, message, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"message": message, "__type": typ},
	})
}
