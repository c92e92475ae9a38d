package linkedin

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	companyPrefix = "https://www.linkedin.com/company/"
	host          = "linkedin.com"
)

// ErrNotCompanyURL 不是 LinkedIn 公司主页链接
var ErrNotCompanyURL = errors.New("not a linkedin company page url")

var (
	vanityPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-_.%]*$`)
	slugStrip     = regexp.MustCompile(`[^a-z0-9]+`)
)

// Validate reports whether raw is a LinkedIn company page URL.
func Validate(raw string) bool {
	_, err := Canonicalize(raw)
	return err == nil
}

// Canonicalize returns the canonical https://www.linkedin.com/company/{vanity}/ form of raw.
// Scheme-less input, any linkedin.com subdomain and trailing sub-paths (/about, /jobs) are accepted.
func Canonicalize(raw string) (string, error) {
	vanity, err := extractVanity(raw)
	if err != nil {
		return "", err
	}
	return companyPrefix + vanity + "/", nil
}

// VanityName returns the company slug of raw, or "" when raw is not a company page URL.
func VanityName(raw string) string {
	vanity, err := extractVanity(raw)
	if err != nil {
		return ""
	}
	return vanity
}

// Slugify turns a company name into a plausible vanity name.
func Slugify(term string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(term), "-")
	return strings.Trim(slug, "-")
}

// GuessURL builds an unverified company page URL from the company name.
func GuessURL(term string) string {
	slug := Slugify(term)
	if slug == "" {
		return ""
	}
	return companyPrefix + slug + "/"
}

func extractVanity(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNotCompanyURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotCompanyURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrNotCompanyURL
	}

	h := strings.ToLower(u.Hostname())
	if h != host && !strings.HasSuffix(h, "."+host) {
		return "", ErrNotCompanyURL
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || strings.ToLower(segments[0]) != "company" {
		return "", ErrNotCompanyURL
	}

	vanity := strings.ToLower(segments[1])
	if !vanityPattern.MatchString(vanity) {
		return "", ErrNotCompanyURL
	}
	return vanity, nil
}
