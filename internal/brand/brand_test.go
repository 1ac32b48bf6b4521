package brand

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		key, name, email string
	}{
		{"innohedge", "InnoHedge", "support@innohedge.com"},
		{"InnoHed", "Innohed", "support@innohed.com"},
	}
	for _, tt := range tests {
		b, err := Lookup(tt.key)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.key, err)
		}
		s := b.DefaultSettings()
		if s.SiteTitle != tt.name || s.SupportEmail != tt.email {
			t.Errorf("Lookup(%q).DefaultSettings() = %+v", tt.key, s)
		}
	}

	if _, err := Lookup("acme"); err == nil {
		t.Error("expected error for unknown brand")
	}
}
