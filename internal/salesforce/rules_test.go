package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func testTokens(instanceURL string) Tokens {
	return Tokens{
		AccessToken: "test-token",
		InstanceURL: instanceURL,
		DomainType:  DomainProduction,
	}
}

func TestListRules(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"totalSize": 3,
			"records": [
				{"Id": "03d000000000001AAA", "ValidationName": "Amount_Positive", "Active": true,
				 "EntityDefinition": {"QualifiedApiName": "Opportunity"}},
				{"Id": "03d000000000002AAA", "ValidationName": "", "Active": false,
				 "EntityDefinition": {"QualifiedApiName": "Account"}},
				{"Id": "03d000000000003AAA", "ValidationName": "Email_Required", "Active": true}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient("v59.0", 5*time.Second)
	rules, err := client.ListRules(context.Background(), testTokens(srv.URL))
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer token header, got %q", gotAuth)
	}
	if !strings.Contains(gotQuery, "FROM ValidationRule") {
		t.Errorf("unexpected SOQL query: %s", gotQuery)
	}

	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}

	if rules[0].ValidationName != "Amount_Positive" || rules[0].EntityName != "Opportunity" || !rules[0].Active {
		t.Errorf("unexpected first rule: %+v", rules[0])
	}
	// Missing names get normalized, never dropped.
	if rules[1].ValidationName != "Unnamed Rule" {
		t.Errorf("expected Unnamed Rule fallback, got %q", rules[1].ValidationName)
	}
	if rules[2].EntityName != "Unknown" {
		t.Errorf("expected Unknown entity fallback, got %q", rules[2].EntityName)
	}
}

func TestListRulesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`))
	}))
	defer srv.Close()

	client := NewClient("v59.0", 5*time.Second)
	_, err := client.ListRules(context.Background(), testTokens(srv.URL))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.Status)
	}
	if apiErr.Code != "INVALID_SESSION_ID" {
		t.Errorf("expected INVALID_SESSION_ID passthrough, got %q", apiErr.Code)
	}
}

func TestToggleRule(t *testing.T) {
	const ruleID = "03d000000000001AAA"

	var patchBody map[string]any
	var patchCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query().Get("q")
			if !strings.Contains(q, "WHERE Id = '"+ruleID+"'") {
				t.Errorf("unexpected fetch query: %s", q)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"records": [{
					"Id": "` + ruleID + `",
					"FullName": "Opportunity.Amount_Positive",
					"Metadata": {
						"description": "Amount must be positive",
						"errorConditionFormula": "Amount <= 0",
						"errorDisplayField": "Amount",
						"errorMessage": "Amount must be greater than zero"
					}
				}]
			}`))
		case http.MethodPatch:
			patchCount++
			if !strings.HasSuffix(r.URL.Path, "/tooling/sobjects/ValidationRule/"+ruleID) {
				t.Errorf("unexpected PATCH path: %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&patchBody); err != nil {
				t.Errorf("failed to decode PATCH body: %v", err)
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	client := NewClient("v59.0", 5*time.Second)
	if err := client.ToggleRule(context.Background(), testTokens(srv.URL), ruleID, false); err != nil {
		t.Fatalf("ToggleRule failed: %v", err)
	}

	if patchCount != 1 {
		t.Fatalf("expected exactly 1 PATCH, got %d", patchCount)
	}

	meta, ok := patchBody["Metadata"].(map[string]any)
	if !ok {
		t.Fatalf("PATCH body missing Metadata: %v", patchBody)
	}
	if meta["active"] != false {
		t.Errorf("expected active false, got %v", meta["active"])
	}
	// The fetched metadata must be carried through, not replaced by defaults.
	if meta["errorConditionFormula"] != "Amount <= 0" {
		t.Errorf("expected original formula preserved, got %v", meta["errorConditionFormula"])
	}
	if meta["errorMessage"] != "Amount must be greater than zero" {
		t.Errorf("expected original message preserved, got %v", meta["errorMessage"])
	}
}

func TestToggleRuleMetadataDefaults(t *testing.T) {
	const ruleID = "03d000000000001AAA"

	var patchBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"records": [{"Id": "` + ruleID + `", "FullName": "Account.X"}]}`))
		case http.MethodPatch:
			json.NewDecoder(r.Body).Decode(&patchBody)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	client := NewClient("v59.0", 5*time.Second)
	if err := client.ToggleRule(context.Background(), testTokens(srv.URL), ruleID, true); err != nil {
		t.Fatalf("ToggleRule failed: %v", err)
	}

	meta := patchBody["Metadata"].(map[string]any)
	if meta["active"] != true {
		t.Errorf("expected active true, got %v", meta["active"])
	}
	if meta["errorConditionFormula"] != "TRUE" {
		t.Errorf("expected TRUE formula default, got %v", meta["errorConditionFormula"])
	}
	if meta["errorMessage"] != "Validation error" {
		t.Errorf("expected default error message, got %v", meta["errorMessage"])
	}
	if meta["description"] != "" {
		t.Errorf("expected empty description default, got %v", meta["description"])
	}
}

func TestToggleRuleNotFound(t *testing.T) {
	var patchCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"records": []}`))
		case http.MethodPatch:
			patchCount++
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	client := NewClient("v59.0", 5*time.Second)
	err := client.ToggleRule(context.Background(), testTokens(srv.URL), "03d000000000009AAA", true)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "NOT_FOUND" || apiErr.Status != http.StatusNotFound {
		t.Errorf("expected 404 NOT_FOUND, got %d %s", apiErr.Status, apiErr.Code)
	}
	if patchCount != 0 {
		t.Errorf("an unknown rule must never be patched, got %d PATCH calls", patchCount)
	}
}

func TestToggleRuleInvalidID(t *testing.T) {
	var requestCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
	}))
	defer srv.Close()

	client := NewClient("v59.0", 5*time.Second)
	err := client.ToggleRule(context.Background(), testTokens(srv.URL), "'; DROP TABLE--", true)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "INVALID_RULE_ID" {
		t.Errorf("expected INVALID_RULE_ID, got %q", apiErr.Code)
	}
	if requestCount != 0 {
		t.Errorf("a malformed ID must never reach Salesforce, got %d requests", requestCount)
	}
}

func TestQueryEscaping(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`{"records": []}`))
	}))
	defer srv.Close()

	client := NewClient("v59.0", 5*time.Second)
	if _, err := client.query(context.Background(), testTokens(srv.URL), "SELECT Id FROM ValidationRule"); err != nil {
		t.Fatalf("query failed: %v", err)
	}

	decoded, err := url.QueryUnescape(strings.TrimPrefix(rawQuery, "q="))
	if err != nil {
		t.Fatalf("failed to decode query: %v", err)
	}
	if decoded != "SELECT Id FROM ValidationRule" {
		t.Errorf("query round-trip mismatch: %s", decoded)
	}
	if strings.Contains(rawQuery, " ") {
		t.Errorf("raw query must be URL-encoded: %s", rawQuery)
	}
}
