package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v81/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporanger/internal/config"
	"reporanger/internal/gh"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *gh.Client {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	u, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = u
	return &gh.Client{Client: client}
}

func TestResolveReposOrgPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" || page == "1" {
			w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?page=2>; rel="next"`, r.Host, r.URL.Path))
			fmt.Fprint(w, `[{"id":1,"name":"alpha","owner":{"login":"acme"}},{"id":2,"name":"beta","owner":{"login":"acme"}}]`)
			return
		}
		fmt.Fprint(w, `[{"id":3,"name":"gamma","owner":{"login":"acme"}}]`)
	})

	client := newTestClient(t, mux)
	cfg := config.New()
	cfg.Targeting.Org = "acme"

	refs, err := ResolveRepos(context.Background(), client, cfg)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "acme/alpha", refs[0].String())
	assert.Equal(t, "acme/gamma", refs[2].String())
	assert.NotNil(t, refs[0].Repo)
}

func TestResolveReposOrgHonorsMaxRepos(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"name":"alpha","owner":{"login":"acme"}},{"id":2,"name":"beta","owner":{"login":"acme"}},{"id":3,"name":"gamma","owner":{"login":"acme"}}]`)
	})

	client := newTestClient(t, mux)
	cfg := config.New()
	cfg.Targeting.Org = "acme"
	cfg.Targeting.MaxRepos = 2

	refs, err := ResolveRepos(context.Background(), client, cfg)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestResolveReposOrgWithRepoIncludeFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"name":"api-service","owner":{"login":"acme"}},{"id":2,"name":"website","owner":{"login":"acme"}},{"id":3,"name":"auth-service","owner":{"login":"acme"}}]`)
	})

	client := newTestClient(t, mux)
	cfg := config.New()
	cfg.Targeting.Org = "acme"
	cfg.Targeting.Repos = []string{"*-service"}

	refs, err := ResolveRepos(context.Background(), client, cfg)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "api-service", refs[0].Name)
	assert.Equal(t, "auth-service", refs[1].Name)
}

func TestResolveReposExplicitList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/alpha", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":1,"name":"alpha","owner":{"login":"acme"}}`)
	})
	mux.HandleFunc("/repos/octocat/hello", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":2,"name":"hello","owner":{"login":"octocat"}}`)
	})

	client := newTestClient(t, mux)
	cfg := config.New()
	cfg.Targeting.Repos = []string{"acme/alpha", "https://github.com/octocat/hello"}

	refs, err := ResolveRepos(context.Background(), client, cfg)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "acme/alpha", refs[0].String())
	assert.Equal(t, "octocat/hello", refs[1].String())
}

func TestResolveReposExplicitNotFoundIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/ghost", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux)
	cfg := config.New()
	cfg.Targeting.Repos = []string{"acme/ghost"}

	_, err := ResolveRepos(context.Background(), client, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme/ghost")
}

func TestResolveReposExplicitRejectsGlobs(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())
	cfg := config.New()
	cfg.Targeting.Repos = []string{"acme/*"}

	_, err := ResolveRepos(context.Background(), client, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "glob")
}

func TestResolveReposUserPublicListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login":"someone-else"}`)
	})
	mux.HandleFunc("/users/octocat/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"name":"hello","owner":{"login":"octocat"}}]`)
	})

	client := newTestClient(t, mux)
	cfg := config.New()
	cfg.Targeting.User = "octocat"

	refs, err := ResolveRepos(context.Background(), client, cfg)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "octocat/hello", refs[0].String())
}

func TestResolveReposAuthenticatedUserListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login":"octocat"}`)
	})
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"name":"hello","owner":{"login":"octocat"}},{"id":2,"name":"secret","private":true,"owner":{"login":"octocat"}}]`)
	})

	client := newTestClient(t, mux)
	cfg := config.New()
	cfg.Targeting.User = "OctoCat" // matching is case-insensitive

	refs, err := ResolveRepos(context.Background(), client, cfg)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestNormalizeRepoSelector(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "owner/repo", want: "owner/repo"},
		{in: "https://github.com/owner/repo", want: "owner/repo"},
		{in: "https://github.com/owner/repo.git", want: "owner/repo"},
		{in: "https://github.com/owner/repo/tree/main", want: "owner/repo"},
		{in: "github.com/owner/repo", want: "owner/repo"},
		{in: "git@github.com:owner/repo.git", want: "owner/repo"},
		{in: "https://gitlab.com/owner/repo", wantErr: true},
		{in: "https://github.com/owner", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeRepoSelector(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDedupeRefs(t *testing.T) {
	refs := []RepositoryRef{
		{Owner: "acme", Name: "alpha", ID: 1},
		{Owner: "acme", Name: "alpha", ID: 1},
		{Owner: "acme", Name: "beta"},
		{Owner: "acme", Name: "beta"},
		{Owner: "acme", Name: "gamma", ID: 3},
	}

	out := dedupeRefs(refs)
	require.Len(t, out, 3)
	assert.Equal(t, "alpha", out[0].Name)
	assert.Equal(t, "beta", out[1].Name)
	assert.Equal(t, "gamma", out[2].Name)
}

func TestResolveReposNoSelection(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())
	refs, err := ResolveRepos(context.Background(), client, config.New())
	require.NoError(t, err)
	assert.Empty(t, refs)
}
