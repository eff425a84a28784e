package gateway

import (
	"errors"
	"reflect"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"projects", "project_id", "service_info"} {
		if err := r.Register(&Handler{Name: name}); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	if err := r.Register(&Handler{Name: "projects"}); !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("Register(duplicate) error = %v, want ErrDuplicateHandler", err)
	}

	want := []string{"projects", "project_id", "service_info"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}

	h, ok := r.Get("project_id")
	if !ok || h.Name != "project_id" {
		t.Errorf("Get(project_id) = %v, %v", h, ok)
	}
	if _, ok := r.Get("studies"); ok {
		t.Error("Get(studies) found an unregistered handler")
	}

	handlers := r.Handlers()
	if len(handlers) != 3 || handlers[2].Name != "service_info" {
		t.Errorf("Handlers() = %v", handlers)
	}
}

func TestPlacement_String(t *testing.T) {
	if DefaultPlacement.String() != "default" || NetworkPlacement.String() != "network" {
		t.Errorf("Placement strings = %s, %s", DefaultPlacement, NetworkPlacement)
	}
}

func TestPermissionPath(t *testing.T) {
	tests := map[string]string{
		"/":                                  "/",
		"/projects":                          "/projects",
		"/projects/{project_id}":             "/projects/*",
		"/expressions/{expression_id}/bytes": "/expressions/*/bytes",
	}
	for in, want := range tests {
		if got := permissionPath(in); got != want {
			t.Errorf("permissionPath(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestHyphenate(t *testing.T) {
	tests := map[string]string{
		"expressions_id_bytes":              "expressions-id-bytes",
		"expressions/{expression_id}/bytes": "expressions-expression-id-bytes",
		"service-info":                      "service-info",
	}
	for in, want := range tests {
		if got := hyphenate(in); got != want {
			t.Errorf("hyphenate(%s) = %s, want %s", in, got, want)
		}
	}
}
