package oxia

import (
	"io"
	"os"
	"sync"
	"testing"

	"github.com/oxia-db/oxia/oxiad/dataserver"
)

// TestServer is an embedded Oxia standalone server for tests.
type TestServer struct {
	standalone *dataserver.Standalone
	addr       string
	dir        string
}

// Addr returns the service address of the test server.
func (s *TestServer) Addr() string {
	return s.addr
}

// Close shuts down the test server and cleans up resources.
func (s *TestServer) Close() error {
	var err error
	if s.standalone != nil {
		err = s.standalone.Close()
	}
	if s.dir != "" {
		os.RemoveAll(s.dir)
	}
	return err
}

var (
	externalAddr     string
	externalAddrOnce sync.Once
)

// StartTestServer starts an embedded Oxia server, or returns the external
// server named by OXIA_SERVICE_ADDRESS. The server is closed via t.Cleanup.
func StartTestServer(t *testing.T) *TestServer {
	t.Helper()

	externalAddrOnce.Do(func() {
		externalAddr = os.Getenv("OXIA_SERVICE_ADDRESS")
	})
	if externalAddr != "" {
		t.Logf("Using external Oxia server at %s", externalAddr)
		return &TestServer{addr: externalAddr}
	}

	dir, err := os.MkdirTemp("", "janitor-oxia-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	standalone, err := dataserver.NewStandalone(dataserver.NewTestConfig(dir))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to start Oxia standalone server: %v", err)
	}

	server := &TestServer{
		standalone: standalone,
		addr:       standalone.ServiceAddr(),
		dir:        dir,
	}
	t.Cleanup(func() {
		server.Close()
	})
	return server
}

var _ io.Closer = (*TestServer)(nil)
