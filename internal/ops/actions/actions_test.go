package actions

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v81/github"
	"github.com/spf13/afero"

	"reporanger/internal/gh"
	"reporanger/internal/ops"
)

// newTestRequest points a client at a mock GitHub API and returns the shared
// operation request, mirroring how the engine constructs it.
func newTestRequest(t *testing.T, mux *http.ServeMux) ops.Request {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	u, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatalf("parse base URL: %v", err)
	}
	client.BaseURL = u
	client.UploadURL = u

	return ops.Request{
		Client: &gh.Client{Client: client},
		FS:     afero.NewMemMapFs(),
	}
}

func testTarget() ops.Target {
	return ops.Target{Owner: "owner", Name: "repo"}
}

// mutationRecorder counts write-method requests so tests can assert
// convergence (a second run must not mutate anything).
type mutationRecorder struct {
	count int
}

func (m *mutationRecorder) wrap(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			m.count++
		}
		h(w, r)
	}
}
