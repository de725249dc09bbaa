package config

// SiteConfig holds per-site overrides for a single domain.
type SiteConfig struct {
	// SitemapURL pins the sitemap location for this site, skipping
	// discovery.
	SitemapURL string `yaml:"sitemapUrl,omitempty"`

	// StripParams are extra query parameters removed during URL
	// normalization for this site, on top of the built-in tracking
	// parameters.
	StripParams []string `yaml:"stripParams,omitempty"`

	// MaxPages overrides the global crawl page budget for this site.
	// If zero, the global value is used.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Workers overrides the global worker count for this site.
	// If zero, the global value is used.
	Workers int `yaml:"workers,omitempty"`

	// IgnorePatterns are URL substrings to skip during crawling, for
	// site sections that should never be compared (print views,
	// calendars).
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
}

// File represents the structure of the .sitemapdiff configuration file.
type File struct {
	// Sites maps domains to their overrides. Keys are bare domains
	// (e.g., "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains overrides applied to all sites unless the
	// site-specific configuration overrides them again.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a domain, merging the
// site-specific configuration over the defaults.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults

	if siteConfig, ok := cf.Sites[domain]; ok {
		if siteConfig.SitemapURL != "" {
			result.SitemapURL = siteConfig.SitemapURL
		}
		if len(siteConfig.StripParams) > 0 {
			result.StripParams = siteConfig.StripParams
		}
		if siteConfig.MaxPages != 0 {
			result.MaxPages = siteConfig.MaxPages
		}
		if siteConfig.Workers != 0 {
			result.Workers = siteConfig.Workers
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
	}

	return result
}
