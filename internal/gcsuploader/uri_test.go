package gcsuploader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		uri     string
		want    Location
		wantErr bool
	}{
		{uri: "gs://backups/2024/march.json", want: Location{Bucket: "backups", Object: "2024/march.json"}},
		{uri: "gs://backups/file.json", want: Location{Bucket: "backups", Object: "file.json"}},
		{uri: "gs://backups", wantErr: true},
		{uri: "gs://backups/", wantErr: true},
		{uri: "gs://backups/dir/", wantErr: true},
		{uri: "gs:///file.json", wantErr: true},
		{uri: "/tmp/backup.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseLocation(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.uri, got.String())
		})
	}
}

func TestLocationFilename(t *testing.T) {
	loc, err := ParseLocation("gs://backups/2024/march.json")
	require.NoError(t, err)
	assert.Equal(t, "march.json", loc.Filename())
}

func TestIsGCSURI(t *testing.T) {
	assert.True(t, IsGCSURI("gs://a/b"))
	assert.False(t, IsGCSURI("backup.json"))
}

func TestStorageServiceRejectsBadLocations(t *testing.T) {
	s := NewGCSStorageService()
	ctx := context.Background()

	assert.ErrorContains(t, s.Upload(ctx, "gs://bucket-only", []byte("{}")), "Upload")
	_, err := s.Fetch(ctx, "local.json")
	assert.ErrorContains(t, err, "Fetch")
	assert.NoError(t, s.Close())
}
