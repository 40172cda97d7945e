package text

import "testing"

func TestCatalogSprintf(t *testing.T) {
	tests := []struct {
		locale   string
		key      Key
		args     []any
		expected string
	}{
		{"", ShutdownTime, []any{"5 Minute(s)"}, "Server shutdown in 5 Minute(s)"},
		{"en-US", RestartCancelled, nil, "Server restart cancelled."},
		{"zh-CN", ShutdownTime, []any{"5 Minute(s)"}, "服务器将在 5 Minute(s) 后关闭"},
	}

	for _, test := range tests {
		c, err := NewCatalog(test.locale)
		if err != nil {
			t.Fatalf("NewCatalog(%s): %v", test.locale, err)
		}
		if result := c.Sprintf(test.key, test.args...); result != test.expected {
			t.Errorf("Sprintf(%s, %s): expected %q, got %q", test.locale, test.key, test.expected, result)
		}
	}
}

func TestNewCatalogInvalidLocale(t *testing.T) {
	if _, err := NewCatalog("not a locale!"); err == nil {
		t.Error("expected error for invalid locale")
	}
}
