package orchestrator

import (
	"regexp"
	"testing"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]any
		want     string
	}{
		{"simple", "Deploy to ${env}", map[string]any{"env": "prod"}, "Deploy to prod"},
		{"missing", "Deploy to ${missing}", nil, "Deploy to ${missing}"},
		{"nil value", "Deploy to ${env}", map[string]any{"env": nil}, "Deploy to ${env}"},
		{"repeated", "${a}-${a}-${b}", map[string]any{"a": "x", "b": 2}, "x-x-2"},
		{"number", "replicas=${n}", map[string]any{"n": 3.0}, "replicas=3"},
		{"bool", "dry=${dry}", map[string]any{"dry": true}, "dry=true"},
		{"list", "files ${files}", map[string]any{"files": []any{"a.go", "b.go"}}, `files ["a.go","b.go"]`},
		{"map", "cfg ${cfg}", map[string]any{"cfg": map[string]any{"k": "v"}}, `cfg {"k":"v"}`},
		{"no placeholders", "plain text", map[string]any{"x": "y"}, "plain text"},
		{"unterminated", "broken ${env", map[string]any{"env": "prod"}, "broken ${env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.template, tt.vars); got != tt.want {
				t.Errorf("Substitute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		output  string
		want    any
	}{
		{"capture group", `version:\s*(\S+)`, "Build finished, version: 1.2.3", "1.2.3"},
		{"whole match", `v\d+`, "released v42 today", "v42"},
		{"no match", `version:\s*(\S+)`, "nothing here", nil},
		{"first group only", `(\w+)=(\w+)`, "key=value", "key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(regexp.MustCompile(tt.pattern), tt.output)
			if got != tt.want {
				t.Errorf("Extract() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{"prod", "prod", true},
		{"prod", "dev", false},
		{3.0, "3", true},
		{true, "true", true},
		{nil, nil, true},
		{nil, "", false},
		{"", nil, false},
	}
	for _, tt := range tests {
		if got := valuesEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("valuesEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVariableSetLayers(t *testing.T) {
	vs := newVariableSet(map[string]any{"env": "dev", "region": "eu"}, map[string]any{"env": "prod"})

	if v, _ := vs.Get("env"); v != "prod" {
		t.Errorf("env = %v, want prod", v)
	}
	if v, _ := vs.Get("region"); v != "eu" {
		t.Errorf("region = %v, want eu", v)
	}

	snap := vs.Snapshot()
	vs.Set("env", "staging")
	if snap["env"] != "prod" {
		t.Error("snapshot should not observe later writes")
	}
}
