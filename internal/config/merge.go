package config

// CLI flag names whose values can also come from a configuration file.
const (
	FlagDepth            = "depth"
	FlagMaxPages         = "max-pages"
	FlagConcurrency      = "concurrency"
	FlagRateLimit        = "rate-limit"
	FlagExternal         = "external"
	FlagKeepFragments    = "keep-fragments"
	FlagIgnoreRedirects  = "ignore-redirects"
	FlagRespectRobotsTxt = "respect-robots-txt"
	FlagOutput           = "output"
	FlagSave             = "save"
	FlagBatch            = "batch"
	FlagUserAgent        = "user-agent"
)

// FlagSet reports whether a flag was given on the command line.
// *pflag.FlagSet satisfies it.
type FlagSet interface {
	Changed(name string) bool
}

// ApplyFile copies values from a configuration file into c.
//
// A value is taken from the file only when the file sets it and the
// corresponding flag was not given on the command line, so the precedence
// is: explicit flag, then file, then default. A nil flags treats every
// flag as unset.
//
// Design decision: We ask the flag set whether a flag was changed instead
// of comparing the current value with its default. Otherwise an explicit
// "--depth 5" could not override "depth: 2" from the file.
func (c *Config) ApplyFile(f *File, flags FlagSet) {
	if f == nil {
		return
	}
	c.SiteConfigs = f

	use := func(name string) bool {
		return flags == nil || !flags.Changed(name)
	}

	if f.Depth != nil && use(FlagDepth) {
		c.MaxDepth = *f.Depth
	}
	if f.MaxPages != nil && use(FlagMaxPages) {
		c.MaxPages = *f.MaxPages
	}
	if f.Concurrency != nil && use(FlagConcurrency) {
		c.Concurrency = *f.Concurrency
	}
	if f.RateLimit != nil && use(FlagRateLimit) {
		c.RateLimit = *f.RateLimit
	}
	if f.FollowExternal != nil && use(FlagExternal) {
		c.FollowExternal = *f.FollowExternal
	}
	if f.KeepFragments != nil && use(FlagKeepFragments) {
		c.KeepFragments = *f.KeepFragments
	}
	if f.IgnoreRedirects != nil && use(FlagIgnoreRedirects) {
		c.IgnoreRedirects = *f.IgnoreRedirects
	}
	if f.RespectRobotsTxt != nil && use(FlagRespectRobotsTxt) {
		c.RespectRobotsTxt = *f.RespectRobotsTxt
	}
	if f.Output != nil && use(FlagOutput) {
		c.OutputFormat = *f.Output
	}
	if f.Save != nil && use(FlagSave) {
		c.SaveFile = *f.Save
	}
	if f.Batch != nil && use(FlagBatch) {
		c.BatchSize = *f.Batch
	}
	if f.UserAgent != nil && use(FlagUserAgent) {
		c.UserAgent = *f.UserAgent
	}
}
