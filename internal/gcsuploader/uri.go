// Package gcsuploader moves backup documents to and from Cloud Storage.
package gcsuploader

import (
	"fmt"
	"path"
	"strings"
)

const scheme = "gs://"

// Location is a parsed gs://bucket/object address.
type Location struct {
	Bucket string
	Object string
}

// String renders the location back into gs:// form.
func (l Location) String() string {
	return scheme + l.Bucket + "/" + l.Object
}

// Filename is the last path element of the object, e.g. "2024-03-01.json".
func (l Location) Filename() string {
	return path.Base(l.Object)
}

// IsGCSURI reports whether s addresses Cloud Storage rather than a local path.
func IsGCSURI(s string) bool {
	return strings.HasPrefix(s, scheme)
}

// ParseLocation parses a gs:// URI. Both bucket and object must be non-empty.
func ParseLocation(uri string) (Location, error) {
	if !IsGCSURI(uri) {
		return Location{}, fmt.Errorf("ParseLocation: %q is not a gs:// location", uri)
	}
	bucket, object, _ := strings.Cut(strings.TrimPrefix(uri, scheme), "/")
	if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return Location{}, fmt.Errorf("ParseLocation: %q does not name an object", uri)
	}
	return Location{Bucket: bucket, Object: object}, nil
}
