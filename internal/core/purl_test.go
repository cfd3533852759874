package core

import (
	"testing"
)

func TestParsePURL(t *testing.T) {
	tests := []struct {
		input    string
		wantType string
		wantName string
		wantVer  string
		wantRepo string
		wantErr  bool
	}{
		{"pkg:pypi/requests", "pypi", "requests", "", "", false},
		{"pkg:pypi/flask@2.3.0", "pypi", "flask", "2.3.0", "", false},
		{"pkg:pypi/django@5.0rc1", "pypi", "django", "5.0rc1", "", false},
		{"pkg:pypi/flask-sqlalchemy@3.1.1", "pypi", "flask-sqlalchemy", "3.1.1", "", false},
		{"pkg:pypi/internal-lib@1.0?repository_url=https://pypi.example.com/simple", "pypi", "internal-lib", "1.0", "https://pypi.example.com/simple", false},

		// Errors
		{"pypi/requests", "", "", "", "", true}, // missing pkg: prefix
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			if p.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", p.Type, tt.wantType)
			}
			if p.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", p.Name, tt.wantName)
			}
			if p.Version != tt.wantVer {
				t.Errorf("Version = %q, want %q", p.Version, tt.wantVer)
			}
			if got := p.Qualifiers.Map()["repository_url"]; got != tt.wantRepo {
				t.Errorf("repository_url = %q, want %q", got, tt.wantRepo)
			}
		})
	}
}

func TestFullName(t *testing.T) {
	tests := []struct {
		namespace string
		name      string
		want      string
	}{
		{"", "flask", "flask"},
		{"acme", "tools", "acme/tools"},
	}

	for _, tt := range tests {
		p := PURL{}
		p.Namespace = tt.namespace
		p.Name = tt.name
		if got := p.FullName(); got != tt.want {
			t.Errorf("FullName() = %q, want %q", got, tt.want)
		}
	}
}
