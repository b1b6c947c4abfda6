package extract

import (
	"reflect"
	"testing"
)

func TestFiles(t *testing.T) {
	text := "Changed internal/auth/jwt.go and src/components/Login.tsx; see also README without extension and notes.txt"
	files := Files(text)
	want := []string{"internal/auth/jwt.go", "src/components/Login.tsx"}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
}

func TestFilesRequiresSeparator(t *testing.T) {
	// A bare filename has no path separator and is not extracted.
	if files := Files("edited main.go today"); files != nil {
		t.Fatalf("expected no files, got %v", files)
	}
}

func TestIdentifiers(t *testing.T) {
	text := "refreshToken rotation uses token_store and the maxRetries constant"
	ids := Identifiers(text)

	has := func(s string) bool {
		for _, id := range ids {
			if id == s {
				return true
			}
		}
		return false
	}
	if !has("refreshToken") || !has("maxRetries") || !has("token_store") {
		t.Fatalf("missing expected identifiers in %v", ids)
	}
}

func TestIdentifiersSkipsStopWords(t *testing.T) {
	for _, id := range Identifiers("theThing forThat") {
		if id == "the" || id == "for" {
			t.Fatalf("stop word leaked: %v", id)
		}
	}
}

func TestHasCausalLanguage(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"We chose JWT because sessions don't scale", true},
		{"Set a 15-minute expiry so that stolen tokens age out", true},
		{"因为数据库锁超时，改用重试", true},
		{"Renamed the package", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := HasCausalLanguage(tc.text); got != tc.want {
			t.Errorf("HasCausalLanguage(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestEnrichConcepts(t *testing.T) {
	got := EnrichConcepts([]string{"auth", "jwt"}, []string{"jwt", "refreshToken"})
	want := []string{"auth", "jwt", "refreshToken"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEnrichFilesCaseInsensitive(t *testing.T) {
	got := EnrichFiles([]string{"src/App.tsx"}, []string{"src/app.tsx", "src/api.ts"})
	want := []string{"src/App.tsx", "src/api.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAnalyze(t *testing.T) {
	e := Analyze("Fixed tokenRefresh in internal/auth/jwt.go because the clock skewed")
	if len(e.Files) != 1 || e.Files[0] != "internal/auth/jwt.go" {
		t.Fatalf("files = %v", e.Files)
	}
	if !e.HasCausalLanguage {
		t.Fatal("expected causal language")
	}
}
