package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ReviewSubject
		wantErr bool
	}{
		{
			name: "with provider",
			raw:  "gitlab/acme/widgets#42",
			want: ReviewSubject{Provider: "gitlab", Repository: "acme/widgets", Number: 42},
		},
		{
			name: "provider defaults to github",
			raw:  "acme/widgets#7",
			want: ReviewSubject{Provider: "github", Repository: "acme/widgets", Number: 7},
		},
		{name: "missing number", raw: "acme/widgets", wantErr: true},
		{name: "bad number", raw: "acme/widgets#abc", wantErr: true},
		{name: "zero number", raw: "acme/widgets#0", wantErr: true},
		{name: "too few path segments", raw: "widgets#3", wantErr: true},
		{name: "too many path segments", raw: "a/b/c/d#3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSubject(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubjectKey(t *testing.T) {
	s := ReviewSubject{Provider: "github", Repository: "acme/widgets", Number: 42}
	assert.Equal(t, "github:acme/widgets:42", s.Key())
	assert.Equal(t, "github/acme/widgets#42", s.String())
}

func TestParseSubject_RoundTrip(t *testing.T) {
	s := ReviewSubject{Provider: "github", Repository: "acme/widgets", Number: 9}
	got, err := ParseSubject(s.String())
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
