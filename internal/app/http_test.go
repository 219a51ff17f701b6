package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gavel/api/internal/config"
	"gavel/api/internal/judge"
	"gavel/api/internal/store"
)

func newTestServer(t *testing.T, fs *fakeStore, engine *judge.Engine, cfg config.Config) *httptest.Server {
	t.Helper()
	svc := newTestService(fs, engine, cfg)
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func registerUser(t *testing.T, serverURL, email string) string {
	t.Helper()
	resp, payload := doJSON(t, http.MethodPost, serverURL+"/api/auth/register", "", map[string]any{
		"email":       email,
		"password":    "longenough",
		"displayName": "Test Party",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, payload %v", resp.StatusCode, payload)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("register returned no token")
	}
	return token
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, newFakeStore(), nil, config.Config{})
	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ok, _ := payload["ok"].(bool); !ok {
		t.Fatalf("payload = %v", payload)
	}
}

func TestPreflightHasNoBody(t *testing.T) {
	server := newTestServer(t, newFakeStore(), nil, config.Config{})

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/cases", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing Access-Control-Allow-Origin header")
	}
	body := make([]byte, 1)
	if n, _ := resp.Body.Read(body); n != 0 {
		t.Fatalf("expected empty body, read %q", body[:n])
	}
}

func TestCaseRoutesRequireAuth(t *testing.T) {
	server := newTestServer(t, newFakeStore(), nil, config.Config{})

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/cases"},
		{http.MethodGet, "/api/cases/user"},
		{http.MethodGet, "/api/cases/CASE_1_aa"},
		{http.MethodPost, "/api/cases/CASE_1_aa/argue/sideA"},
		{http.MethodPost, "/api/cases/CASE_1_aa/judge"},
	} {
		resp, payload := doJSON(t, route.method, server.URL+route.path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, payload %v", route.method, route.path, resp.StatusCode, payload)
		}
	}
}

func TestCreateAndFetchCase(t *testing.T) {
	fs := newFakeStore()
	server := newTestServer(t, fs, nil, config.Config{})
	token := registerUser(t, server.URL, "party@example.com")

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/cases", token, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, payload %v", resp.StatusCode, payload)
	}
	caseID, _ := payload["caseId"].(string)
	if !strings.HasPrefix(caseID, "CASE_") {
		t.Fatalf("caseId = %q", caseID)
	}

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/cases/"+caseID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch status = %d, payload %v", resp.StatusCode, payload)
	}
	if payload["caseId"] != caseID {
		t.Fatalf("fetched caseId = %v", payload["caseId"])
	}
	if payload["status"] != "active" {
		t.Fatalf("status = %v", payload["status"])
	}

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/cases/CASE_0_missing", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing case status = %d", resp.StatusCode)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("code = %v", payload["code"])
	}
}

func TestArgueEndpointEnforcesCap(t *testing.T) {
	fs := newFakeStore()
	server := newTestServer(t, fs, nil, config.Config{})
	token := registerUser(t, server.URL, "party@example.com")

	_, payload := doJSON(t, http.MethodPost, server.URL+"/api/cases", token, nil)
	caseID := payload["caseId"].(string)

	for i := 0; i < maxArguments; i++ {
		resp, body := doJSON(t, http.MethodPost, server.URL+"/api/cases/"+caseID+"/argue/sideA", token, map[string]any{
			"argument": fmt.Sprintf("point %d", i+1),
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("argument %d: status = %d, payload %v", i+1, resp.StatusCode, body)
		}
		if remaining, _ := body["remainingArguments"].(float64); int(remaining) != maxArguments-(i+1) {
			t.Fatalf("argument %d: remaining = %v", i+1, body["remainingArguments"])
		}
	}

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/cases/"+caseID+"/argue/sideB", token, map[string]any{
		"argument": "one too many",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("sixth argument: status = %d, payload %v", resp.StatusCode, body)
	}
	if body["code"] != "LIMIT_EXCEEDED" {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestArgueEndpointRejectsBadInput(t *testing.T) {
	fs := newFakeStore()
	server := newTestServer(t, fs, nil, config.Config{})
	token := registerUser(t, server.URL, "party@example.com")

	_, payload := doJSON(t, http.MethodPost, server.URL+"/api/cases", token, nil)
	caseID := payload["caseId"].(string)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/cases/"+caseID+"/argue/sideC", token, map[string]any{
		"argument": "who am I",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("bad side: status = %d, payload %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/cases/"+caseID+"/argue/sideA", token, map[string]any{
		"argument": "",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("empty argument: status = %d, payload %v", resp.StatusCode, body)
	}
}

func TestUploadEndpoint(t *testing.T) {
	fs := newFakeStore()
	server := newTestServer(t, fs, nil, config.Config{MaxUploadBytes: 10 << 20})
	token := registerUser(t, server.URL, "party@example.com")

	_, payload := doJSON(t, http.MethodPost, server.URL+"/api/cases", token, nil)
	caseID := payload["caseId"].(string)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("documents", "contract.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("pdf bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = writer.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/cases/"+caseID+"/upload/sideA", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d, payload %v", resp.StatusCode, body)
	}
	files, _ := body["files"].([]any)
	if len(files) != 1 {
		t.Fatalf("files = %v", body["files"])
	}

	record, err := fs.GetCase(context.Background(), caseID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if len(record.SideA.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(record.SideA.Documents))
	}
}

func TestUploadEndpointRejectsEmptyForm(t *testing.T) {
	fs := newFakeStore()
	server := newTestServer(t, fs, nil, config.Config{MaxUploadBytes: 10 << 20})
	token := registerUser(t, server.URL, "party@example.com")

	_, payload := doJSON(t, http.MethodPost, server.URL+"/api/cases", token, nil)
	caseID := payload["caseId"].(string)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("note", "no files here")
	_ = writer.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/cases/"+caseID+"/upload/sideA", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusUnprocessableEntity || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("status = %d, payload %v", resp.StatusCode, body)
	}
}

func TestJudgeEndpoint(t *testing.T) {
	fs := newFakeStore()
	client := &fakeJudgeClient{replies: []string{
		"VERDICT: Side B prevails\nREASONING: The lease terms control.",
	}}
	server := newTestServer(t, fs, judge.New(client, 3, 0), config.Config{RequireEvidence: true})
	token := registerUser(t, server.URL, "party@example.com")

	_, payload := doJSON(t, http.MethodPost, server.URL+"/api/cases", token, nil)
	caseID := payload["caseId"].(string)

	// Precondition: no evidence yet.
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/cases/"+caseID+"/judge", token, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("judge without evidence: status = %d, payload %v", resp.StatusCode, body)
	}

	if err := fs.AppendDocuments(context.Background(), caseID, store.SideB, []string{"test-bucket/x/sideB/lease.pdf"}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/cases/"+caseID+"/judge", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("judge status = %d, payload %v", resp.StatusCode, body)
	}
	if body["decision"] != "Side B prevails" {
		t.Fatalf("decision = %v", body["decision"])
	}
	if round, _ := body["round"].(float64); int(round) != 1 {
		t.Fatalf("round = %v", body["round"])
	}
}

func TestListCasesEndpoint(t *testing.T) {
	fs := newFakeStore()
	server := newTestServer(t, fs, nil, config.Config{})
	token := registerUser(t, server.URL, "party@example.com")

	for i := 0; i < 3; i++ {
		resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/cases", token, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d: status = %d, payload %v", i, resp.StatusCode, payload)
		}
	}

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/cases/user", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	cases, _ := payload["cases"].([]any)
	if len(cases) != 3 {
		t.Fatalf("cases = %d, want 3", len(cases))
	}
}

func TestLoginEndpoint(t *testing.T) {
	fs := newFakeStore()
	server := newTestServer(t, fs, nil, config.Config{})
	registerUser(t, server.URL, "party@example.com")

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/auth/login", "", map[string]any{
		"email":    "party@example.com",
		"password": "longenough",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, payload %v", resp.StatusCode, payload)
	}
	if token, _ := payload["token"].(string); token == "" {
		t.Fatal("login returned no token")
	}

	resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/auth/login", "", map[string]any{
		"email":    "party@example.com",
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized || payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("bad login: status = %d, payload %v", resp.StatusCode, payload)
	}
}
