package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberchat/relay/internal/server"
)

func newTestServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()

	s := server.New()
	ts := httptest.NewServer(s.E)
	t.Cleanup(func() {
		ts.Close()
		s.Hub.Shutdown()
		s.Bridge.Stop()
		s.Bus.Close()
	})
	return s, ts
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ConfigDefaults(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, "3000", s.Cfg.Port)
	assert.Equal(t, 100, s.Cfg.MaxHistory)
}
