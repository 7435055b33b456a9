package support

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/MeKo-Tech/pano/internal/server"
	"github.com/cucumber/godog"
)

// theAPIServerIsRunning starts the in-process server without limits.
func (testCtx *TestContext) theAPIServerIsRunning() error {
	return testCtx.startTestHTTPServer(server.RateLimitConfig{})
}

// theAPIServerIsRunningWithALimitOf starts the server with a per-minute limit.
func (testCtx *TestContext) theAPIServerIsRunningWithALimitOf(perMinute int) error {
	return testCtx.startTestHTTPServer(server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute})
}

// theAPIServerIsRunningWithAQuotaOf starts the server with a daily
// correspondence quota.
func (testCtx *TestContext) theAPIServerIsRunningWithAQuotaOf(n int) error {
	return testCtx.startTestHTTPServer(server.RateLimitConfig{Enabled: true, MaxCorrespondencesPerDay: int64(n)})
}

func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.makeHTTPRequest(http.MethodGet, endpoint, "", nil)
}

func (testCtx *TestContext) iPOSTTheFileTo(name, endpoint string) error {
	return testCtx.postFile(endpoint, name)
}

// iPOSTTheCorrespondencesTo posts the first pair of {sequence} as an
// estimate request.
func (testCtx *TestContext) iPOSTTheCorrespondencesTo(endpoint string) error {
	seq, err := sequence.Load(testCtx.Files["sequence"])
	if err != nil {
		return err
	}
	return testCtx.postJSON(endpoint, server.EstimateRequest{Correspondences: seq.Pairs[0].Correspondences})
}

func (testCtx *TestContext) iPOSTTheBody(endpoint string, body *godog.DocString) error {
	return testCtx.makeHTTPRequest(http.MethodPost, endpoint, "application/json", []byte(body.Content))
}

func (testCtx *TestContext) iPOSTTheFileToTimes(name, endpoint string, times int) error {
	for range times {
		if err := testCtx.postFile(endpoint, name); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) responseJSON() (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &data); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	return data, nil
}

func (testCtx *TestContext) theResponseJSONShouldContain(field string) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return checkFieldExists(data, field)
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return checkFieldEquals(data, field, expected)
}

func (testCtx *TestContext) theResponseArrayShouldHaveEntries(field string, n int) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return checkArrayLength(data, field, n)
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != expected {
		return fmt.Errorf("header %s is %q, want %q", name, got, expected)
	}
	return nil
}

// RegisterServerSteps registers the API server steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the API server is running$`, testCtx.theAPIServerIsRunning)
	sc.Step(`^the API server is running with a limit of (\d+) requests per minute$`, testCtx.theAPIServerIsRunningWithALimitOf)
	sc.Step(`^the API server is running with a quota of (\d+) correspondences per day$`, testCtx.theAPIServerIsRunningWithAQuotaOf)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST the "([^"]*)" file to "([^"]*)"$`, testCtx.iPOSTTheFileTo)
	sc.Step(`^I POST the "([^"]*)" file to "([^"]*)" (\d+) times$`, testCtx.iPOSTTheFileToTimes)
	sc.Step(`^I POST the first pair's correspondences to "([^"]*)"$`, testCtx.iPOSTTheCorrespondencesTo)
	sc.Step(`^I POST to "([^"]*)" with body:$`, testCtx.iPOSTTheBody)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response JSON should contain "([^"]*)"$`, testCtx.theResponseJSONShouldContain)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response array "([^"]*)" should have (\d+) entries$`, testCtx.theResponseArrayShouldHaveEntries)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
}
