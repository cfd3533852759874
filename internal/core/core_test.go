package core

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Flask", "flask"},
		{"Flask_SQLAlchemy", "flask-sqlalchemy"},
		{"zope.interface", "zope-interface"},
		{"some__weird--._name", "some-weird-name"},
		{"numpy", "numpy"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRequirementPinned(t *testing.T) {
	tests := []struct {
		name  string
		specs []Specifier
		want  string
		ok    bool
	}{
		{"exact", []Specifier{{OpEqual, "2.3.0"}}, "2.3.0", true},
		{"arbitrary", []Specifier{{OpArbitrary, "foobar"}}, "foobar", true},
		{"wildcard", []Specifier{{OpEqual, "2.3.*"}}, "", false},
		{"range", []Specifier{{OpGreaterEq, "2.0"}}, "", false},
		{"two clauses", []Specifier{{OpEqual, "2.0"}, {OpNotEqual, "2.1"}}, "", false},
		{"none", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Requirement{Name: "flask", Specifiers: tt.specs}
			got, ok := r.Pinned()
			if got != tt.want || ok != tt.ok {
				t.Errorf("Pinned() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRequirementString(t *testing.T) {
	tests := []struct {
		req  Requirement
		want string
	}{
		{Requirement{Name: "Flask", Specifiers: []Specifier{{OpGreaterEq, "2.3.0"}}}, "flask>=2.3.0"},
		{Requirement{Name: "requests", Extras: []string{"security", "socks"}, Specifiers: []Specifier{{OpGreaterEq, "2.0"}, {OpLess, "3"}}}, "requests[security,socks]>=2.0,<3"},
		{Requirement{Name: "pywin32", Marker: `sys_platform == "win32"`}, `pywin32 ; sys_platform == "win32"`},
		{Requirement{Name: "mylib", URL: "https://example.com/mylib.tar.gz"}, "mylib @ https://example.com/mylib.tar.gz"},
		{Requirement{Name: "six", Specifiers: []Specifier{{OpEqual, "1.16.0"}}, Hashes: []string{"sha256:abc"}}, "six==1.16.0 --hash=sha256:abc"},
	}
	for _, tt := range tests {
		if got := tt.req.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestManifestRequirementsIncludesLast(t *testing.T) {
	base := &Manifest{Path: "base.txt", Lines: []Line{
		{Number: 1, Kind: RequirementLine, Requirement: &Requirement{Name: "six"}},
	}}
	m := &Manifest{
		Path: "requirements.txt",
		Lines: []Line{
			{Number: 1, Kind: OptionLine, Option: &Option{Name: "-r", Value: "base.txt"}},
			{Number: 2, Kind: RequirementLine, Requirement: &Requirement{Name: "flask"}},
			{Number: 3, Kind: Invalid, Err: &SyntaxError{Line: 3, Msg: "bad"}},
		},
		Includes: []*Manifest{base},
	}

	reqs := m.Requirements()
	if len(reqs) != 2 || reqs[0].Name != "flask" || reqs[1].Name != "six" {
		t.Errorf("unexpected requirement order: %v", reqs)
	}
	if len(m.Invalid()) != 1 {
		t.Errorf("expected 1 invalid line, got %d", len(m.Invalid()))
	}
}

func TestLatestVersion(t *testing.T) {
	tests := []struct {
		name     string
		versions []Version
		want     string
	}{
		{"empty", nil, ""},
		{"pep440 order", []Version{{Number: "1.10.0"}, {Number: "1.9.0"}, {Number: "1.10.0.post1"}}, "1.10.0.post1"},
		{"skips yanked", []Version{{Number: "2.0.0", Status: StatusYanked}, {Number: "1.0.0"}}, "1.0.0"},
		{"prefers final", []Version{{Number: "2.0.0rc1"}, {Number: "1.5.0"}}, "1.5.0"},
		{"prerelease fallback", []Version{{Number: "0.1.0a1"}, {Number: "0.1.0b1"}}, "0.1.0b1"},
		{"skips invalid", []Version{{Number: "not-a-version"}, {Number: "0.1"}}, "0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LatestVersion(tt.versions)
			if tt.want == "" {
				if got != nil {
					t.Errorf("expected nil, got %q", got.Number)
				}
				return
			}
			if got == nil || got.Number != tt.want {
				t.Errorf("expected %q, got %v", tt.want, got)
			}
		})
	}
}

func TestRequirementPURL(t *testing.T) {
	tests := []struct {
		req  Requirement
		want string
	}{
		{Requirement{Name: "Flask_SQLAlchemy"}, "pkg:pypi/flask-sqlalchemy"},
		{Requirement{Name: "numpy", Specifiers: []Specifier{{OpEqual, "1.26.4"}}}, "pkg:pypi/numpy@1.26.4"},
		{Requirement{Name: "numpy", Specifiers: []Specifier{{OpGreaterEq, "1.26"}}}, "pkg:pypi/numpy"},
	}
	for _, tt := range tests {
		if got := RequirementPURL(&tt.req); got != tt.want {
			t.Errorf("RequirementPURL(%s) = %q, want %q", tt.req.Name, got, tt.want)
		}
	}
}

type fakeIndex struct {
	baseURL string
}

func (f *fakeIndex) Name() string { return "fake" }

func (f *fakeIndex) FetchPackage(ctx context.Context, name string) (*Package, error) {
	if name == "missing" {
		return nil, &NotFoundError{Index: "fake", Name: name}
	}
	return &Package{Name: name}, nil
}

func (f *fakeIndex) FetchVersions(ctx context.Context, name string) ([]Version, error) {
	return []Version{{Number: "1.0.0"}, {Number: "1.1.0"}}, nil
}

func (f *fakeIndex) URLs() URLBuilder { return &BaseURLs{} }

func init() {
	Register("fake", "https://fake.example", func(baseURL string, c *Client) Index {
		return &fakeIndex{baseURL: baseURL}
	})
}

func TestRegistry(t *testing.T) {
	if DefaultURL("fake") != "https://fake.example" {
		t.Errorf("unexpected default URL %q", DefaultURL("fake"))
	}
	if _, err := New("nope", "", nil); err == nil {
		t.Error("expected error for unknown index")
	}

	idx, err := New("fake", "", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if idx.(*fakeIndex).baseURL != "https://fake.example" {
		t.Errorf("expected default base URL, got %q", idx.(*fakeIndex).baseURL)
	}

	found := false
	for _, k := range SupportedIndexes() {
		if k == "fake" {
			found = true
		}
	}
	if !found {
		t.Error("expected fake in SupportedIndexes")
	}
}

func TestNewFromPURL(t *testing.T) {
	idx, name, version, err := NewFromPURL("pkg:pypi/flask@2.3.0?repository_url=https://mirror.example/simple", "fake", nil)
	if err != nil {
		t.Fatalf("NewFromPURL failed: %v", err)
	}
	if name != "flask" || version != "2.3.0" {
		t.Errorf("unexpected name/version %q %q", name, version)
	}
	if got := idx.(*fakeIndex).baseURL; got != "https://mirror.example/simple" {
		t.Errorf("expected repository_url base, got %q", got)
	}

	if _, _, _, err := NewFromPURL("pkg:npm/left-pad", "fake", nil); err == nil {
		t.Error("expected error for non-pypi PURL")
	}
}

func TestFetchFromPURL(t *testing.T) {
	ctx := context.Background()

	if _, err := FetchPackageFromPURL(ctx, "pkg:pypi/missing", "fake", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	v, err := FetchVersionFromPURL(ctx, "pkg:pypi/flask@1.1.0", "fake", nil)
	if err != nil {
		t.Fatalf("FetchVersionFromPURL failed: %v", err)
	}
	if v.Number != "1.1.0" {
		t.Errorf("expected 1.1.0, got %q", v.Number)
	}

	if _, err := FetchVersionFromPURL(ctx, "pkg:pypi/flask", "fake", nil); err == nil {
		t.Error("expected error for PURL without version")
	}

	latest, err := FetchLatestVersion(ctx, &fakeIndex{}, "flask")
	if err != nil || latest.Number != "1.1.0" {
		t.Errorf("FetchLatestVersion = %v, %v", latest, err)
	}
}

func TestBulkFetchPackages(t *testing.T) {
	got := BulkFetchPackagesWithConcurrency(context.Background(), &fakeIndex{}, []string{"flask", "missing", "numpy"}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(got))
	}
	if got["flask"] == nil || got["numpy"] == nil {
		t.Errorf("unexpected result %v", got)
	}
}

func TestSyntaxError(t *testing.T) {
	err := &SyntaxError{Line: 3, Column: 6, Msg: "invalid comparator"}
	if err.Error() == "" {
		t.Error("expected message")
	}
}
