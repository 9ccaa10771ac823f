package gazette

import (
	"fmt"
	"net/url"
	"strings"
)

// SourceKind discriminates the shapes a document reference can take.
type SourceKind string

const (
	SourceFile   SourceKind = "file"
	SourceObject SourceKind = "object"
	SourceURL    SourceKind = "url"
)

// Source is where the original bytes of a document came from. Exactly one
// of Path, Location or URL is set, matching Kind.
type Source struct {
	Kind     SourceKind `json:"kind"`
	Path     string     `json:"path,omitempty"`
	Location Location   `json:"location,omitzero"`
	URL      string     `json:"url,omitempty"`
}

// FileSource references a document on the local filesystem.
func FileSource(path string) Source {
	return Source{Kind: SourceFile, Path: path}
}

// ObjectSource references a document already in object storage.
func ObjectSource(loc Location) Source {
	return Source{Kind: SourceObject, Location: loc}
}

// URLSource references a document served over HTTP(S).
func URLSource(raw string) Source {
	return Source{Kind: SourceURL, URL: raw}
}

// ParseSource classifies a free-form reference: http(s) URLs are remote,
// s3:// references are storage locations, anything else is a local path.
func ParseSource(value string) (Source, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Source{}, fmt.Errorf("empty document reference")
	}
	switch {
	case strings.HasPrefix(value, "http://"), strings.HasPrefix(value, "https://"):
		parsed, err := url.Parse(value)
		if err != nil || parsed.Host == "" {
			return Source{}, fmt.Errorf("document url %q is not valid", value)
		}
		return URLSource(value), nil
	case strings.HasPrefix(value, "s3://"):
		loc, err := ParseLocation(value)
		if err != nil {
			return Source{}, err
		}
		return ObjectSource(loc), nil
	default:
		return FileSource(strings.TrimPrefix(value, "file://")), nil
	}
}

// Validate checks that the populated field matches Kind.
func (s Source) Validate() error {
	switch s.Kind {
	case SourceFile:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("file source requires a path")
		}
	case SourceObject:
		if s.Location.Bucket == "" || s.Location.Key == "" {
			return fmt.Errorf("object source requires bucket and key")
		}
	case SourceURL:
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("url source requires a url")
		}
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
	return nil
}

// String renders the reference in the form ParseSource accepts.
func (s Source) String() string {
	switch s.Kind {
	case SourceFile:
		return s.Path
	case SourceObject:
		return "s3://" + s.Location.String()
	case SourceURL:
		return s.URL
	default:
		return ""
	}
}
