package config

import "maps"

// SiteConfig holds request and bound overrides for one host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty" json:"cookie,omitempty" toml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty" toml:"headers,omitempty"`

	// Depth overrides the crawl depth for this site. Nil keeps the global value;
	// a pointer is used because 0 is a meaningful depth.
	Depth *int `yaml:"depth,omitempty" json:"depth,omitempty" toml:"depth,omitempty"`

	// MaxPages overrides the page budget for this site. Zero keeps the global value.
	MaxPages int `yaml:"max_pages,omitempty" json:"max_pages,omitempty" toml:"max_pages,omitempty"`
}

// RequestHeaders returns Headers plus the Cookie header, if set.
func (sc SiteConfig) RequestHeaders() map[string]string {
	headers := make(map[string]string, len(sc.Headers)+1)
	maps.Copy(headers, sc.Headers)
	if sc.Cookie != "" {
		headers["Cookie"] = sc.Cookie
	}
	return headers
}

// File represents the structure of a Scoutly configuration file.
// Every field is optional. Scalar fields supply defaults for the matching
// CLI flags; a flag set on the command line always wins.
type File struct {
	Depth            *int     `yaml:"depth,omitempty" json:"depth,omitempty" toml:"depth,omitempty"`
	MaxPages         *int     `yaml:"max_pages,omitempty" json:"max_pages,omitempty" toml:"max_pages,omitempty"`
	Concurrency      *int     `yaml:"concurrency,omitempty" json:"concurrency,omitempty" toml:"concurrency,omitempty"`
	RateLimit        *float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty" toml:"rate_limit,omitempty"`
	FollowExternal   *bool    `yaml:"follow_external,omitempty" json:"follow_external,omitempty" toml:"follow_external,omitempty"`
	KeepFragments    *bool    `yaml:"keep_fragments,omitempty" json:"keep_fragments,omitempty" toml:"keep_fragments,omitempty"`
	IgnoreRedirects  *bool    `yaml:"ignore_redirects,omitempty" json:"ignore_redirects,omitempty" toml:"ignore_redirects,omitempty"`
	RespectRobotsTxt *bool    `yaml:"respect_robots_txt,omitempty" json:"respect_robots_txt,omitempty" toml:"respect_robots_txt,omitempty"`
	Output           *string  `yaml:"output,omitempty" json:"output,omitempty" toml:"output,omitempty"`
	Save             *string  `yaml:"save,omitempty" json:"save,omitempty" toml:"save,omitempty"`
	Batch            *int     `yaml:"batch,omitempty" json:"batch,omitempty" toml:"batch,omitempty"`
	UserAgent        *string  `yaml:"user_agent,omitempty" json:"user_agent,omitempty" toml:"user_agent,omitempty"`

	// Sites maps host names (with port when non-default) to their
	// site-specific configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty" json:"sites,omitempty" toml:"sites,omitempty"`

	// Defaults contains site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty" json:"defaults,omitempty" toml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	// Start with defaults, copying the header map so callers cannot
	// mutate the file's defaults
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != nil {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}

	return result
}
