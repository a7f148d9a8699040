package ident

import (
	"reflect"
	"testing"
)

func TestIsValidName(t *testing.T) {
	valid := []string{
		"",
		"my-namespace",
		"objects/2024",
		"a:b+c_d~e#f",
		"ABC123",
	}
	for _, name := range valid {
		if !IsValidName(name) {
			t.Errorf("IsValidName(%q) = false, want true", name)
		}
	}

	invalid := []string{
		"has space",
		"semi;colon",
		"quote'name",
		"star*",
		"percent%",
		"comma,name",
	}
	for _, name := range invalid {
		if IsValidName(name) {
			t.Errorf("IsValidName(%q) = true, want false", name)
		}
	}
}

func TestIsValidSuffix(t *testing.T) {
	if !IsValidSuffix("a1b2c3") {
		t.Error("Expected a1b2c3 to be a valid suffix")
	}
	for _, s := range []string{"", "abc", "abcdefg", "ABCDEF", "a1b2c!", "a1b2c3d"} {
		if IsValidSuffix(s) {
			t.Errorf("IsValidSuffix(%q) = true, want false", s)
		}
	}
}

func TestNewObjectID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewObjectID()
		if id == "" {
			t.Fatal("NewObjectID returned empty string")
		}
		if seen[id] {
			t.Fatalf("NewObjectID returned duplicate %s", id)
		}
		seen[id] = true
	}
}

func TestNewSuffix(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, err := NewSuffix()
		if err != nil {
			t.Fatalf("NewSuffix failed: %v", err)
		}
		if !IsValidSuffix(s) {
			t.Errorf("NewSuffix returned %q, which is not a valid suffix", s)
		}
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"single", "alpha", []string{"alpha"}, false},
		{"comma separated", "alpha,beta", []string{"alpha", "beta"}, false},
		{"comma with spaces", " alpha , beta ", []string{"alpha", "beta"}, false},
		{"empty elements dropped", "alpha,,beta,", []string{"alpha", "beta"}, false},
		{"json array", `["alpha","beta"]`, []string{"alpha", "beta"}, false},
		{"json array single quotes", `['alpha','beta']`, []string{"alpha", "beta"}, false},
		{"unclosed bracket", `["alpha",`, nil, true}, // comma branch, bracket fails validation
		{"unparseable json", `[alpha]`, nil, true},
		{"invalid character", "alpha,bad tag", nil, true},
		{"invalid in json", `["alpha","bad tag"]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseList(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseList(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseList(%q) failed: %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseList(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
