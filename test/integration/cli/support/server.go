package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/server"
)

// HTTPTestServerWrapper runs the API in-process for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// startTestHTTPServer starts an in-process API server with a fixed seed.
func (testCtx *TestContext) startTestHTTPServer(rl server.RateLimitConfig) error {
	if testCtx.HTTPTestServer != nil {
		return nil
	}
	pCfg := pipeline.DefaultConfig()
	pCfg.Seed = 42
	pCfg.Parallel.MaxWorkers = 2

	srv, err := server.NewServer(server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    1,
		TimeoutSec:     30,
		PipelineConfig: pCfg,
		RateLimit:      rl,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
	}
	return nil
}

// StopServer stops the in-process server if running.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Server.Close()
		testCtx.HTTPTestServer = nil
	}
	return nil
}

// makeHTTPRequest sends a request to the in-process server and records the
// response.
func (testCtx *TestContext) makeHTTPRequest(method, endpoint, contentType string, body []byte) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}

	req, err := http.NewRequest(method, testCtx.HTTPTestServer.Server.URL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := testCtx.HTTPTestServer.Server.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

// postFile posts a generated file, choosing the content type by extension.
func (testCtx *TestContext) postFile(endpoint, name string) error {
	path, ok := testCtx.Files[name]
	if !ok {
		return fmt.Errorf("no generated file named %q", name)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: generated test file
	if err != nil {
		return err
	}
	contentType := "application/json"
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		contentType = "application/yaml"
	}
	return testCtx.makeHTTPRequest(http.MethodPost, endpoint, contentType, data)
}

// postJSON posts v encoded as JSON.
func (testCtx *TestContext) postJSON(endpoint string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return testCtx.makeHTTPRequest(http.MethodPost, endpoint, "application/json", data)
}
