package jsengine

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	engine := New()

	if engine == nil {
		t.Fatal("expected engine to be created")
	}
	if engine.runtime == nil {
		t.Fatal("expected runtime to be initialized")
	}
}

func TestEval(t *testing.T) {
	engine := New()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestEvalError(t *testing.T) {
	engine := New()

	_, err := engine.Eval("this is not javascript {{")
	if err == nil {
		t.Fatal("expected error for invalid script")
	}
	if !strings.Contains(err.Error(), "JS eval error") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestSetVariable(t *testing.T) {
	engine := New()

	engine.SetVariable("username", "john")
	engine.SetVariable("count", 42)

	result, err := engine.EvalString("username")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "john" {
		t.Errorf("expected john, got %s", result)
	}

	result, err = engine.EvalString("count + 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "43" {
		t.Errorf("expected 43, got %s", result)
	}
}

func TestSetVariables(t *testing.T) {
	engine := New()

	engine.SetVariables(map[string]interface{}{
		"first": "John",
		"last":  "Smith",
	})

	result, err := engine.EvalString("first + ' ' + last")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "John Smith" {
		t.Errorf("expected John Smith, got %s", result)
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()
	engine.SetVariables(map[string]interface{}{
		"value": "May",
		"year":  1995,
	})

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"no expressions", "//android.widget.EditText", "//android.widget.EditText"},
		{"single expression", "//*[@text='${value}']", "//*[@text='May']"},
		{"contains expression", "//*[contains(@text, '${value}')]", "//*[contains(@text, 'May')]"},
		{"number variable", "//*[@text='${year}']", "//*[@text='1995']"},
		{"multiple expressions", "${value}-${year}", "May-1995"},
		{"computed expression", "//*[@text='${value.toUpperCase()}']", "//*[@text='MAY']"},
		{"unmatched brace left alone", "prefix ${broken", "prefix ${broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.ExpandVariables(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestExpandVariablesFailedEvalLeftAlone(t *testing.T) {
	engine := New()

	result, err := engine.ExpandVariables("before ${not valid js {{} after")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "after") {
		t.Errorf("expected trailing text preserved, got %q", result)
	}
}

func TestDefineUndefinedIfMissing(t *testing.T) {
	engine := New()

	engine.DefineUndefinedIfMissing("maybe")

	result, err := engine.EvalString("maybe ?? 'fallback'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "fallback" {
		t.Errorf("expected fallback, got %s", result)
	}

	engine.SetVariable("maybe", "real")
	engine.DefineUndefinedIfMissing("maybe")

	result, err = engine.EvalString("maybe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "real" {
		t.Errorf("expected real, got %s", result)
	}
}
