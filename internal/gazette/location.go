package gazette

import (
	"fmt"
	"path"
	"strings"
)

// Location addresses an object as a bucket/key pair. It travels as a
// "bucket/key" string in JSON.
type Location struct {
	Bucket string
	Key    string
}

// ParseLocation parses "bucket/key", optionally prefixed with "s3://".
func ParseLocation(value string) (Location, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(trimmed, "s3://")
	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || strings.Trim(key, "/") == "" {
		return Location{}, fmt.Errorf("storage location %q: want bucket/key", value)
	}
	return Location{Bucket: bucket, Key: strings.TrimLeft(key, "/")}, nil
}

// IsZero reports whether the location is unset.
func (l Location) IsZero() bool {
	return l.Bucket == "" && l.Key == ""
}

// String renders the location as bucket/key.
func (l Location) String() string {
	if l.IsZero() {
		return ""
	}
	return l.Bucket + "/" + l.Key
}

// Base returns the final path element of the key.
func (l Location) Base() string {
	return path.Base(l.Key)
}

// Within reports whether the location lies in bucket under prefix.
func (l Location) Within(bucket, prefix string) bool {
	if l.Bucket != bucket {
		return false
	}
	return strings.HasPrefix(l.Key, prefix)
}

// MarshalText renders the location in bucket/key form for JSON payloads.
func (l Location) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts the bucket/key form. An empty value yields the zero location.
func (l *Location) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*l = Location{}
		return nil
	}
	parsed, err := ParseLocation(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
