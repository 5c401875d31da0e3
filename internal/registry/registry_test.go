package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

func compileSchema(t *testing.T, schemaJSON string) *jsonschema.Schema {
	t.Helper()
	c := jsonschema.NewCompiler()
	url := "mem://schema.json"
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	if err := c.AddResource(url, doc); err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return sch
}

func TestRegisterAndInstantiate(t *testing.T) {
	t.Parallel()
	r := New()
	r.Root("task", nil)

	factory := func(raw json.RawMessage, extra any) (any, error) {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, err
		}
		return body.Name, nil
	}
	if err := r.Register("task", "echo", factory, nil, false); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Instantiate("task", "echo", json.RawMessage(`{"name":"hello"}`), nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %v, want hello", got)
	}
}

func TestInstantiateUnknownRoot(t *testing.T) {
	t.Parallel()
	r := New()
	_, err := r.Instantiate("nope", "echo", nil, nil)
	if !errors.Is(err, ErrUnknownRoot) {
		t.Fatalf("err = %v, want ErrUnknownRoot", err)
	}
}

func TestInstantiateUnknownType(t *testing.T) {
	t.Parallel()
	r := New()
	r.Root("task", nil)
	_, err := r.Instantiate("task", "missing", nil, nil)
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
}

func TestRegisterDuplicateNameRejected(t *testing.T) {
	t.Parallel()
	r := New()
	r.Root("task", nil)
	factory := func(raw json.RawMessage, extra any) (any, error) { return nil, nil }
	if err := r.Register("task", "echo", factory, nil, false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := r.Register("task", "echo", factory, nil, false)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	if err := r.Register("task", "echo", factory, nil, true); err != nil {
		t.Fatalf("forceOverride Register: %v", err)
	}
}

func TestBaseSchemaValidationRejectsBadConfig(t *testing.T) {
	t.Parallel()
	r := New()
	base := compileSchema(t, `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
	r.Root("task", base)

	factory := func(raw json.RawMessage, extra any) (any, error) { return "ok", nil }
	if err := r.Register("task", "echo", factory, nil, false); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := r.Instantiate("task", "echo", json.RawMessage(`{}`), nil)
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("err = %v, want ErrConfigInvalid", err)
	}

	if _, err := r.Instantiate("task", "echo", json.RawMessage(`{"name":"x"}`), nil); err != nil {
		t.Fatalf("Instantiate with valid config: %v", err)
	}
}

func TestUnregisterRootClearsPartition(t *testing.T) {
	t.Parallel()
	r := New()
	r.Root("task", nil)
	factory := func(raw json.RawMessage, extra any) (any, error) { return nil, nil }
	if err := r.Register("task", "echo", factory, nil, false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.UnregisterRoot("task")
	if _, err := r.Instantiate("task", "echo", nil, nil); !errors.Is(err, ErrUnknownRoot) {
		t.Fatalf("err = %v, want ErrUnknownRoot after UnregisterRoot", err)
	}
}

func TestNewInstanceIDUnique(t *testing.T) {
	t.Parallel()
	a := NewInstanceID()
	b := NewInstanceID()
	if a == b || a == "" || b == "" {
		t.Fatalf("expected two distinct non-empty ids, got %q and %q", a, b)
	}
}
