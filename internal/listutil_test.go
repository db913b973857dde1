package internal

import (
	"net/http/httptest"
	"testing"
)

func TestParseListParamsDefaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/employees", nil)
	params := parseListParams(req)

	if params.limit != 50 {
		t.Errorf("Expected default limit 50, got %d", params.limit)
	}
	if params.offset != 0 {
		t.Errorf("Expected default offset 0, got %d", params.offset)
	}
}

func TestParseListParamsCapsLimit(t *testing.T) {
	req := httptest.NewRequest("GET", "/employees?limit=9999&offset=20&q=%20laptop%20", nil)
	params := parseListParams(req)

	if params.limit != 200 {
		t.Errorf("Expected limit capped at 200, got %d", params.limit)
	}
	if params.offset != 20 {
		t.Errorf("Expected offset 20, got %d", params.offset)
	}
	if params.q != "laptop" {
		t.Errorf("Expected trimmed q 'laptop', got %q", params.q)
	}
}

func TestParseListParamsIgnoresGarbage(t *testing.T) {
	req := httptest.NewRequest("GET", "/employees?limit=abc&offset=-5", nil)
	params := parseListParams(req)

	if params.limit != 50 || params.offset != 0 {
		t.Errorf("Expected defaults for garbage input, got limit=%d offset=%d", params.limit, params.offset)
	}
}

func TestBuildOrderBy(t *testing.T) {
	allowed := map[string]string{
		"id":         "id",
		"name":       "name",
		"created_at": "created_at",
	}

	tests := []struct {
		sort string
		want string
	}{
		{"", " ORDER BY id ASC"},
		{"name", " ORDER BY name ASC"},
		{"-created_at", " ORDER BY created_at DESC"},
		{"name,-created_at", " ORDER BY name ASC, created_at DESC"},
		{"password_hash", " ORDER BY id ASC"}, // not whitelisted
		{"-", " ORDER BY id ASC"},
	}

	for _, tt := range tests {
		if got := buildOrderBy(tt.sort, allowed); got != tt.want {
			t.Errorf("buildOrderBy(%q) = %q, want %q", tt.sort, got, tt.want)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, ok := parseID("42"); !ok || id != 42 {
		t.Errorf("Expected (42, true), got (%d, %v)", id, ok)
	}
	for _, bad := range []string{"", "0", "-3", "abc", "4.5"} {
		if _, ok := parseID(bad); ok {
			t.Errorf("Expected parseID(%q) to fail", bad)
		}
	}
}
