// Package provision renders docker-compose service stubs for new agent
// instances. Rendered output is both parsed as YAML and validated
// against a schema before anything is shown to the requesting user, so a
// template regression can never hand out a broken stub.
package provision

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed compose.yml.tmpl
var composeTemplate string

//go:embed compose.schema.json
var composeSchema string

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	mountPattern = regexp.MustCompile(`^[^:]+:[^:]+(:[a-z]+)?$`)
)

// ValidationError is a user-facing rejection of the request parameters.
// Its message is shown verbatim to the invoking user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Params are the inputs of one provision request.
type Params struct {
	Name       string   // service name suffix
	ChannelID  string   // conversation the instance is routed to
	MaximusDir string   // host directory of the agent deployment
	Codebase   string   // optional project dir to mount
	Mounts     []string // extra host:container[:mode] mounts

	Credentials      bool // mount the agent credentials file
	ClaudeOAuthToken bool // pass CLAUDE_CODE_OAUTH_TOKEN
	AnthropicAPIKey  bool // pass ANTHROPIC_API_KEY
	GHCredentials    bool // mount GitHub CLI credentials
	GHToken          bool // pass GH_TOKEN
	SSH              bool // mount SSH key for git push access
}

// Renderer renders and checks provision stubs.
type Renderer struct {
	tmpl   *template.Template
	schema *jsonschema.Schema
}

// NewRenderer parses the embedded template and compiles the embedded
// schema.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("compose").Parse(composeTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse compose template: %w", err)
	}
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(composeSchema))
	if err != nil {
		return nil, fmt.Errorf("parse compose schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("compose.schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add compose schema: %w", err)
	}
	schema, err := compiler.Compile("compose.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile compose schema: %w", err)
	}
	return &Renderer{tmpl: tmpl, schema: schema}, nil
}

// Render validates params, renders the stub, and verifies the result is
// well-formed YAML matching the compose schema. Parameter problems come
// back as *ValidationError; anything else is an internal failure.
func (r *Renderer) Render(params Params) (string, error) {
	if err := validate(params); err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := r.tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render compose stub: %w", err)
	}
	stub := strings.TrimSpace(buf.String())

	var doc any
	if err := yaml.Unmarshal([]byte(stub), &doc); err != nil {
		return "", fmt.Errorf("generated YAML is invalid: %w", err)
	}
	// The schema library expects JSON-decoded values, so round-trip the
	// YAML document through JSON before validating.
	jsonDoc, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("generated YAML is invalid: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(string(jsonDoc)))
	if err != nil {
		return "", fmt.Errorf("generated YAML is invalid: %w", err)
	}
	if err := r.schema.Validate(instance); err != nil {
		return "", fmt.Errorf("generated stub does not match the compose schema: %w", err)
	}
	return stub, nil
}

func validate(params Params) error {
	if !namePattern.MatchString(params.Name) {
		return &ValidationError{Message: "Invalid name: only alphanumeric characters and hyphens are allowed."}
	}
	if !params.Credentials && !params.ClaudeOAuthToken && !params.AnthropicAPIKey {
		return &ValidationError{Message: "At least one auth method is required: `credentials`, `claude-oauth-token`, or `anthropic-api-key`."}
	}
	for _, mount := range params.Mounts {
		if !mountPattern.MatchString(mount) {
			return &ValidationError{Message: fmt.Sprintf("Invalid mount format: `%s`. Expected `host:container[:mode]`.", mount)}
		}
	}
	return nil
}

// ParseMounts splits a comma-separated mount list, dropping empty
// entries.
func ParseMounts(raw string) []string {
	var mounts []string
	for _, mount := range strings.Split(raw, ",") {
		mount = strings.TrimSpace(mount)
		if mount != "" {
			mounts = append(mounts, mount)
		}
	}
	return mounts
}
