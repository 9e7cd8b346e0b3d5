package overlay

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

const (
	defaultCSVURL   = "https://docs.google.com/spreadsheets/d/e/2PACX-1vQEPez3FU4CCVsxmAF6boHbI63wfKMYN9CBV7HBbk9rRRJ24jraxplDKsFDONlm7tlt8cK-Gaefixg9/pub?output=csv"
	defaultSheetURL = "https://docs.google.com/spreadsheets/d/1hbUl_KWH_6z5DXv7I9w1IeMRofU8Mok1qi1b3Dr6eJU/edit?usp=sharing"
)

// ObserveRoot names a candidate element for the presence watcher.
type ObserveRoot struct {
	Selector string `yaml:"selector"`
	// Parent observes the match's parent instead of the match itself.
	Parent bool `yaml:"parent"`
}

// HostProfile is the host application's markup contract: where identifiers
// live and which page shapes the widget can be injected into.
type HostProfile struct {
	Match []string `yaml:"match"`

	IDLabelSelector     string `yaml:"id_label_selector"`
	IDLabelPattern      string `yaml:"id_label_pattern"`
	PreviewLinkSelector string `yaml:"preview_link_selector"`
	PreviewLinkPattern  string `yaml:"preview_link_pattern"`
	LocationPattern     string `yaml:"location_pattern"`

	CoachSectionSelector string `yaml:"coach_section_selector"`
	CoachHeadingSelector string `yaml:"coach_heading_selector"`
	CoachHeadingText     string `yaml:"coach_heading_text"`
	FormFirstRowSelector string `yaml:"form_first_row_selector"`
	FormNextRowSelector  string `yaml:"form_next_row_selector"`

	ObserveRoots []ObserveRoot `yaml:"observe_roots"`
}

// LenusProfile is the Lenus admin markup.
func LenusProfile() HostProfile {
	return HostProfile{
		Match: []string{
			"https://*.lenus.io/admin/coaches/*/setup/settings",
			"https://*.lenus.io/admin/coaches/*/setup/forms/*",
			"https://*.lenus.io/admin/*/edit",
		},
		IDLabelSelector:      "p.MuiTypography-root",
		IDLabelPattern:       `(?i)ID:\s*([a-f0-9-]+)`,
		PreviewLinkSelector:  `a[data-testid="form-preview-link"]`,
		PreviewLinkPattern:   `lenus\.io/([^/]+)/`,
		LocationPattern:      `/([^/]+)/(?:setup/settings|edit)$`,
		CoachSectionSelector: ".css-1utqmw",
		CoachHeadingSelector: "h6.MuiTypography-root",
		CoachHeadingText:     "Slug",
		FormFirstRowSelector: ".row.form-group:nth-child(1)",
		FormNextRowSelector:  ".row.form-group:nth-child(2)",
		ObserveRoots: []ObserveRoot{
			{Selector: ".css-1iwoqsn", Parent: true},
			{Selector: ".row.form-group", Parent: true},
		},
	}
}

// Config holds the engine's constants. It is not modified after New.
type Config struct {
	CSVURL   string `yaml:"csv_url"`
	SheetURL string `yaml:"sheet_url"`
	IDColumn int    `yaml:"id_column"`

	SuccessInterval time.Duration `yaml:"success_interval"`
	ErrorInterval   time.Duration `yaml:"error_interval"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	SwapDelay       time.Duration `yaml:"swap_delay"`
	FadeInDelay     time.Duration `yaml:"fade_in_delay"`

	// StrictCSV parses the sheet as RFC 4180 instead of splitting on commas.
	StrictCSV bool `yaml:"strict_csv"`

	Profile HostProfile `yaml:"profile"`

	Logger *log.Logger `yaml:"-"`
	Clock  Clock       `yaml:"-"`
}

// DefaultConfig returns the built-in constants with environment overrides.
func DefaultConfig() Config {
	cfg := Config{
		CSVURL:          defaultCSVURL,
		SheetURL:        defaultSheetURL,
		IDColumn:        0,
		SuccessInterval: 60 * time.Second,
		ErrorInterval:   30 * time.Second,
		InitialDelay:    500 * time.Millisecond,
		SettleDelay:     2 * time.Second,
		RetryDelay:      500 * time.Millisecond,
		SwapDelay:       125 * time.Millisecond,
		FadeInDelay:     50 * time.Millisecond,
		Profile:         LenusProfile(),
		Logger:          log.Default(),
		Clock:           SystemClock(),
	}
	cfg.applyEnv()
	return cfg
}

// LoadConfig reads a YAML file over DefaultConfig. Environment variables win
// over the file. An empty path returns DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("overlay: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("overlay: parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("ABSTATUS_CSV_URL")); v != "" {
		c.CSVURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ABSTATUS_SHEET_URL")); v != "" {
		c.SheetURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ABSTATUS_ID_COLUMN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.IDColumn = n
		}
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ABSTATUS_STRICT_CSV"))) {
	case "1", "true", "yes", "on":
		c.StrictCSV = true
	case "0", "false", "no", "off":
		c.StrictCSV = false
	}
}

// Validate checks the fields that have no sensible fallback.
func (c Config) Validate() error {
	if strings.TrimSpace(c.CSVURL) == "" {
		return fmt.Errorf("overlay: csv_url is required")
	}
	if c.IDColumn < 0 {
		return fmt.Errorf("overlay: id_column must be >= 0, got %d", c.IDColumn)
	}
	if _, err := compileProfile(c.Profile); err != nil {
		return err
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CSVURL == "" {
		c.CSVURL = def.CSVURL
	}
	if c.SheetURL == "" {
		c.SheetURL = def.SheetURL
	}
	durations := []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&c.SuccessInterval, def.SuccessInterval},
		{&c.ErrorInterval, def.ErrorInterval},
		{&c.InitialDelay, def.InitialDelay},
		{&c.SettleDelay, def.SettleDelay},
		{&c.RetryDelay, def.RetryDelay},
		{&c.SwapDelay, def.SwapDelay},
		{&c.FadeInDelay, def.FadeInDelay},
	}
	for _, d := range durations {
		if *d.v <= 0 {
			*d.v = d.def
		}
	}
	if c.Profile.CoachSectionSelector == "" && c.Profile.FormFirstRowSelector == "" {
		c.Profile = def.Profile
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	return c
}

// compiledProfile is a HostProfile with selectors and patterns compiled.
type compiledProfile struct {
	match        []*regexp.Regexp
	idLabel      cascadia.Selector
	idPattern    *regexp.Regexp
	previewLink  cascadia.Selector
	previewPat   *regexp.Regexp
	locationPat  *regexp.Regexp
	coachSection cascadia.Selector
	coachHeading cascadia.Selector
	coachText    string
	formFirst    cascadia.Selector
	formNext     cascadia.Selector
	observe      []observeRoot
}

type observeRoot struct {
	sel    cascadia.Selector
	parent bool
}

func compileProfile(p HostProfile) (*compiledProfile, error) {
	cp := &compiledProfile{coachText: p.CoachHeadingText}
	sels := []struct {
		dst  *cascadia.Selector
		src  string
		name string
	}{
		{&cp.idLabel, p.IDLabelSelector, "id_label_selector"},
		{&cp.previewLink, p.PreviewLinkSelector, "preview_link_selector"},
		{&cp.coachSection, p.CoachSectionSelector, "coach_section_selector"},
		{&cp.coachHeading, p.CoachHeadingSelector, "coach_heading_selector"},
		{&cp.formFirst, p.FormFirstRowSelector, "form_first_row_selector"},
		{&cp.formNext, p.FormNextRowSelector, "form_next_row_selector"},
	}
	for _, s := range sels {
		if strings.TrimSpace(s.src) == "" {
			continue
		}
		compiled, err := cascadia.Compile(s.src)
		if err != nil {
			return nil, fmt.Errorf("overlay: profile %s %q: %w", s.name, s.src, err)
		}
		*s.dst = compiled
	}
	pats := []struct {
		dst  **regexp.Regexp
		src  string
		name string
	}{
		{&cp.idPattern, p.IDLabelPattern, "id_label_pattern"},
		{&cp.previewPat, p.PreviewLinkPattern, "preview_link_pattern"},
		{&cp.locationPat, p.LocationPattern, "location_pattern"},
	}
	for _, s := range pats {
		if strings.TrimSpace(s.src) == "" {
			continue
		}
		re, err := regexp.Compile(s.src)
		if err != nil {
			return nil, fmt.Errorf("overlay: profile %s: %w", s.name, err)
		}
		*s.dst = re
	}
	for _, m := range p.Match {
		re, err := globRegexp(m)
		if err != nil {
			return nil, fmt.Errorf("overlay: profile match %q: %w", m, err)
		}
		cp.match = append(cp.match, re)
	}
	for _, r := range p.ObserveRoots {
		sel, err := cascadia.Compile(r.Selector)
		if err != nil {
			return nil, fmt.Errorf("overlay: profile observe root %q: %w", r.Selector, err)
		}
		cp.observe = append(cp.observe, observeRoot{sel: sel, parent: r.Parent})
	}
	return cp, nil
}

// globRegexp turns a userscript @match pattern into an anchored regexp.
func globRegexp(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, "[^?#]*") + "$")
}

// Matches reports whether u is a page the profile applies to. A profile
// without match patterns applies everywhere.
func (p HostProfile) Matches(u string) bool {
	cp, err := compileProfile(p)
	if err != nil {
		return false
	}
	return cp.matches(u)
}

func (cp *compiledProfile) matches(u string) bool {
	if len(cp.match) == 0 {
		return true
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, re := range cp.match {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

var defaultProfile = mustCompileProfile(LenusProfile())

func mustCompileProfile(p HostProfile) *compiledProfile {
	cp, err := compileProfile(p)
	if err != nil {
		panic(err)
	}
	return cp
}
