package provision

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return renderer
}

func TestRenderMinimalStub(t *testing.T) {
	renderer := newTestRenderer(t)

	stub, err := renderer.Render(Params{
		Name:            "steward",
		ChannelID:       "100",
		MaximusDir:      "/opt/maximus",
		AnthropicAPIKey: true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(stub), &doc); err != nil {
		t.Fatalf("stub is not valid YAML: %v", err)
	}
	services, ok := doc["services"].(map[string]any)
	if !ok {
		t.Fatalf("stub has no services map:\n%s", stub)
	}
	if _, ok := services["agent-steward"]; !ok {
		t.Fatalf("expected an agent-steward service, got %v", services)
	}
	for _, want := range []string{
		"AGENT_NAME=steward",
		"ANTHROPIC_API_KEY=${ANTHROPIC_API_KEY}",
		"/opt/maximus/tasks/discord/100:/tasks/discord/100",
	} {
		if !strings.Contains(stub, want) {
			t.Fatalf("stub missing %q:\n%s", want, stub)
		}
	}
	if strings.Contains(stub, "CLAUDE_CODE_OAUTH_TOKEN") {
		t.Fatalf("stub has an auth option that was not requested:\n%s", stub)
	}
}

func TestRenderAllOptions(t *testing.T) {
	renderer := newTestRenderer(t)

	stub, err := renderer.Render(Params{
		Name:             "builder",
		ChannelID:        "200",
		MaximusDir:       "/opt/maximus",
		Codebase:         "/srv/project",
		Mounts:           []string{"/data:/data:ro", "/cache:/cache"},
		Credentials:      true,
		ClaudeOAuthToken: true,
		AnthropicAPIKey:  true,
		GHCredentials:    true,
		GHToken:          true,
		SSH:              true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		"CLAUDE_CODE_OAUTH_TOKEN=${CLAUDE_CODE_OAUTH_TOKEN}",
		"GH_TOKEN=${GH_TOKEN}",
		"~/.claude/.credentials.json",
		"~/.config/gh",
		"~/.ssh/id_ed25519",
		"/srv/project:/workspace",
		"/data:/data:ro",
		"/cache:/cache",
	} {
		if !strings.Contains(stub, want) {
			t.Fatalf("stub missing %q:\n%s", want, stub)
		}
	}
}

func TestRenderRejectsBadName(t *testing.T) {
	renderer := newTestRenderer(t)

	for _, name := range []string{"", "bad name", "agent!", "dots.not.allowed"} {
		_, err := renderer.Render(Params{Name: name, ChannelID: "100", MaximusDir: "/opt/maximus", AnthropicAPIKey: true})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("name %q: expected a validation error, got %v", name, err)
		}
	}
}

func TestRenderRequiresAuthMethod(t *testing.T) {
	renderer := newTestRenderer(t)

	_, err := renderer.Render(Params{Name: "steward", ChannelID: "100", MaximusDir: "/opt/maximus", GHToken: true})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if !strings.Contains(verr.Message, "auth method") {
		t.Fatalf("unexpected message %q", verr.Message)
	}
}

func TestRenderRejectsBadMount(t *testing.T) {
	renderer := newTestRenderer(t)

	_, err := renderer.Render(Params{
		Name:            "steward",
		ChannelID:       "100",
		MaximusDir:      "/opt/maximus",
		AnthropicAPIKey: true,
		Mounts:          []string{"/only-one-part"},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if !strings.Contains(verr.Message, "/only-one-part") {
		t.Fatalf("message should name the bad mount, got %q", verr.Message)
	}
}

func TestParseMounts(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{" , ,", nil},
		{"/a:/b", []string{"/a:/b"}},
		{"/a:/b, /c:/d:ro", []string{"/a:/b", "/c:/d:ro"}},
	}
	for _, tc := range cases {
		got := ParseMounts(tc.raw)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseMounts(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
