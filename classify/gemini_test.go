package classify

import (
	"errors"
	"testing"
)

func TestCleanModelJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain json", `{"account_code":"5110","confidence":0.9}`, `{"account_code":"5110","confidence":0.9}`},
		{"json fence", "```json\n{\"account_code\":\"5110\"}\n```", `{"account_code":"5110"}`},
		{"bare fence", "```\n{\"account_code\":\"5110\"}\n```", `{"account_code":"5110"}`},
		{"leading prose", "Here is the classification:\n{\"account_code\":\"5110\"}", `{"account_code":"5110"}`},
		{"surrounding whitespace", "  \n{\"account_code\":\"5110\"}\n  ", `{"account_code":"5110"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanModelJSON(tc.raw); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseVerdict(t *testing.T) {
	res, err := parseVerdict("```json\n{\"account_code\":\"5120\",\"confidence\":0.82,\"reasoning\":\"telecom vendor\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AccountCode != "5120" || res.Confidence != 0.82 || res.Reasoning != "telecom vendor" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestParseVerdictMalformed(t *testing.T) {
	cases := []string{
		"not json at all",
		"{\"confidence\":0.9}",
		"{\"account_code\":\"  \"}",
		"",
	}
	for _, raw := range cases {
		if _, err := parseVerdict(raw); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("raw %q: expected ErrMalformedResponse, got %v", raw, err)
		}
	}
}

func TestClassifyGenAIError(t *testing.T) {
	if err := classifyGenAIError(errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if err := classifyGenAIError(errors.New("quota exceeded for model")); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if err := classifyGenAIError(errors.New("connection refused")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
