package main

import (
	"testing"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceFlag(t *testing.T) {
	src, err := parseSourceFlag("")
	require.NoError(t, err)
	assert.Nil(t, src)

	src, err = parseSourceFlag(" flatpak ")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, types.SourceFlatpak, *src)

	_, err = parseSourceFlag("brew")
	assert.ErrorIs(t, err, types.ErrUnknownSource)
}

func TestParsePathDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		allowAll bool
		want     types.Domain
		wantErr  bool
	}{
		{name: "configs", input: "configs", want: types.DomainConfigs},
		{name: "filesystem", input: "filesystem", want: types.DomainFilesystem},
		{name: "empty allowed", input: "", allowAll: true, want: ""},
		{name: "empty required", input: "", wantErr: true},
		{name: "package domain", input: "packages", wantErr: true},
		{name: "unknown", input: "dotfiles", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePathDomain(tt.input, tt.allowAll)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantNil bool
		wantErr bool
	}{
		{name: "empty", input: "", wantNil: true},
		{name: "hours", input: "36h", want: now.Add(-36 * time.Hour)},
		{name: "days", input: "7d", want: time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)},
		{name: "date", input: "2026-01-02", want: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", input: "2026-01-02T03:04:05Z", want: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{name: "negative duration", input: "-5h", wantErr: true},
		{name: "garbage", input: "last tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSince(tt.input, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s, want %s", got, tt.want)
		})
	}
}
