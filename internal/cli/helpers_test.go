package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const testLayers = `layers:
  - name: roads
    index: gis
    attributes:
      - name: name
        type: string
      - name: lanes
        type: integer
`

const (
	filterName    = `{"op":"=","args":[{"property":"name"},"A1"]}`
	filterPartial = `{"op":"and","args":[{"op":"=","args":[{"property":"name"},"A1"]},{"op":"like","args":[{"property":"lanes"},"2*"]}]}`
)

// fakeBackend answers every search with reply and keeps the request bodies.
type fakeBackend struct {
	mu     sync.Mutex
	bodies []string
	status int
	reply  string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.bodies = append(b.bodies, string(data))
	status, reply := b.status, b.reply
	b.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func (b *fakeBackend) requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bodies...)
}

// testEnv writes a layer file and a config pointing at backendURL, and
// returns the config path.
func testEnv(t *testing.T, backendURL string, audit bool) string {
	t.Helper()
	dir := t.TempDir()

	layers := filepath.Join(dir, "layers.yaml")
	require.NoError(t, os.WriteFile(layers, []byte(testLayers), 0o644))

	cfg := fmt.Sprintf("backend:\n  url: %s\nlayers:\n  path: %s\naudit:\n  enabled: %t\n  path: %s\n",
		backendURL, layers, audit, filepath.Join(dir, "audit.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

// withBackend starts a fake backend and a config that uses it.
func withBackend(t *testing.T, reply string) (*fakeBackend, string) {
	t.Helper()
	b := &fakeBackend{reply: reply}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, testEnv(t, srv.URL, true)
}

// execute runs the root command and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
