package core

import (
	"reflect"
	"testing"
)

func TestMatchKeys(t *testing.T) {
	tests := []struct {
		name          string
		code          string
		prefix        string
		useArticleKey bool
		want          []string
	}{
		{
			name: "empty yields nil",
			code: "",
			want: nil,
		},
		{
			name: "whitespace only yields nil",
			code: "   ",
			want: nil,
		},
		{
			name: "raw code always lowered",
			code: "LY-12345",
			want: []string{"ly-12345"},
		},
		{
			name:          "prefix stripped when enabled",
			code:          "LY-12345",
			prefix:        "LY-",
			useArticleKey: true,
			want:          []string{"ly-12345", "12345"},
		},
		{
			name:          "prefix match is case-insensitive",
			code:          "ly-12345",
			prefix:        "LY-",
			useArticleKey: true,
			want:          []string{"ly-12345", "12345"},
		},
		{
			name:          "prefix not stripped when disabled",
			code:          "LY-12345",
			prefix:        "LY-",
			useArticleKey: false,
			want:          []string{"ly-12345"},
		},
		{
			name:          "non-matching prefix",
			code:          "AS-12345",
			prefix:        "LY-",
			useArticleKey: true,
			want:          []string{"as-12345"},
		},
		{
			name:          "code equal to prefix yields only raw key",
			code:          "LY-",
			prefix:        "LY-",
			useArticleKey: true,
			want:          []string{"ly-"},
		},
		{
			name:          "remainder trimmed",
			code:          "LY-  987 ",
			prefix:        "LY-",
			useArticleKey: true,
			want:          []string{"ly-  987", "987"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchKeys(tt.code, tt.prefix, tt.useArticleKey)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MatchKeys(%q, %q, %v) = %v, want %v",
					tt.code, tt.prefix, tt.useArticleKey, got, tt.want)
			}
		})
	}
}

func TestMatchIndex(t *testing.T) {
	idx := NewMatchIndex("LY-", true)
	idx.Add("LY-100")
	idx.Add("LY-200")
	idx.Add("PLAIN300")

	// Cross-system lookup: the other side carries a different prefix rule.
	tests := []struct {
		name   string
		code   string
		prefix string
		useKey bool
		want   string
		found  bool
	}{
		{name: "exact raw match", code: "LY-100", want: "LY-100", found: true},
		{name: "case-folded raw", code: "ly-200", want: "LY-200", found: true},
		{name: "stripped key from other prefix", code: "XX-100", prefix: "XX-", useKey: true, want: "LY-100", found: true},
		{name: "unprefixed code", code: "100", want: "LY-100", found: true},
		{name: "no match", code: "XX-999", prefix: "XX-", useKey: true, found: false},
		{name: "plain code", code: "plain300", want: "PLAIN300", found: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idx.Find(tt.code, tt.prefix, tt.useKey)
			if ok != tt.found {
				t.Fatalf("Find(%q) found = %v, want %v", tt.code, ok, tt.found)
			}
			if ok && got != tt.want {
				t.Errorf("Find(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestMatchIndex_FirstClaimWins(t *testing.T) {
	idx := NewMatchIndex("LY-", true)
	idx.Add("LY-100")
	idx.Add("100") // also derives key "100", already claimed

	got, ok := idx.Find("100", "", false)
	if !ok || got != "LY-100" {
		t.Errorf("Find(100) = %q, %v; want LY-100 claimed first", got, ok)
	}
}
