package ckan

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Package is a CKAN dataset as returned by package_show and package_search.
type Package struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Title            string        `json:"title"`
	Notes            string        `json:"notes"`
	LicenseTitle     string        `json:"license_title"`
	Author           string        `json:"author"`
	Maintainer       string        `json:"maintainer"`
	MetadataModified string        `json:"metadata_modified"`
	NumResources     int           `json:"num_resources"`
	Organization     *Organization `json:"organization"`
	Tags             []Tag         `json:"tags"`
	Resources        []Resource    `json:"resources"`
}

// Resource is one file or endpoint attached to a Package.
type Resource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Format      string `json:"format"`
	Mimetype    string `json:"mimetype"`
	// URLType is "api" for API endpoints, empty for plain links and
	// "upload" for files stored by the catalog.
	URLType string `json:"url_type"`
	Size    Size   `json:"size"`
}

type Organization struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

type Tag struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// SearchResult is the result of package_search.
type SearchResult struct {
	Count   int       `json:"count"`
	Results []Package `json:"results"`
}

// AutocompleteResult is one entry returned by package_autocomplete.
type AutocompleteResult struct {
	Name           string `json:"name"`
	Title          string `json:"title"`
	MatchField     string `json:"match_field"`
	MatchDisplayed string `json:"match_displayed"`
}

// Size is a resource size as published by the catalog. Publishers send
// numbers, numeric strings, empty strings and free text; only the first
// two are understood.
type Size struct {
	bytes int64
	known bool
}

// KnownSize returns a Size holding n bytes.
func KnownSize(n int64) Size {
	return Size{bytes: n, known: true}
}

// Int64 returns the size in bytes, or -1 when unknown.
func (s Size) Int64() int64 {
	if !s.known {
		return -1
	}
	return s.bytes
}

// Known reports whether the catalog published a usable size.
func (s Size) Known() bool {
	return s.known
}

func (s *Size) UnmarshalJSON(data []byte) error {
	*s = Size{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil
		}
		raw = strings.TrimSpace(str)
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n >= 0 {
			*s = KnownSize(n)
		}
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= 0 {
		*s = KnownSize(int64(f))
	}
	return nil
}

func (s Size) MarshalJSON() ([]byte, error) {
	if !s.known {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(s.bytes, 10)), nil
}
