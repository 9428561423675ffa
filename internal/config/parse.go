package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	"github.com/JonMunkholm/boqimport/internal/core"
)

var (
	// ErrProfilesDisabled is returned when a profile is requested but PARSE_PROFILE_DIR is unset.
	ErrProfilesDisabled = errors.New("parse profiles are not configured")

	// ErrUnknownProfile is returned for a profile name with no file behind it.
	ErrUnknownProfile = errors.New("unknown parse profile")
)

var profileNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Profile is one organization's file layout, stored as TOML:
//
//	name = "acme-civils"
//	header_row = 2
//	auto_detect_header = false
//	skip_rows = 1
//	strict = false
//	locale = "de"
//	delimiter = ";"
//	encoding = "windows-1252"
//
//	[columns]
//	"Bezeichnung" = "description"
//	"Menge" = "quantity"
//
// Keys left out keep the value of the configuration the profile is applied to.
type Profile struct {
	Name             string            `toml:"name"`
	HeaderRow        *int              `toml:"header_row"`
	AutoDetectHeader *bool             `toml:"auto_detect_header"`
	SkipRows         *int              `toml:"skip_rows"`
	Strict           *bool             `toml:"strict"`
	Locale           string            `toml:"locale"`
	Delimiter        string            `toml:"delimiter"`
	Encoding         string            `toml:"encoding"`
	MaxFileSize      *int64            `toml:"max_file_size"`
	Columns          map[string]string `toml:"columns"`
}

// DecodeProfile parses a TOML profile. Unknown keys are rejected so that a
// misspelt setting does not silently fall back to the default.
func DecodeProfile(data string) (Profile, error) {
	var p Profile
	md, err := toml.Decode(data, &p)
	if err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Profile{}, fmt.Errorf("decode profile: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadProfile reads and decodes the profile at path.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}
	p, err := DecodeProfile(string(data))
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

func (p Profile) validate() error {
	var errs []string

	if p.HeaderRow != nil && *p.HeaderRow < 0 {
		errs = append(errs, "header_row must be non-negative")
	}
	if p.SkipRows != nil && *p.SkipRows < 0 {
		errs = append(errs, "skip_rows must be non-negative")
	}
	if p.MaxFileSize != nil && *p.MaxFileSize <= 0 {
		errs = append(errs, "max_file_size must be positive")
	}
	if _, err := parseDelimiter(p.Delimiter); err != nil {
		errs = append(errs, "delimiter: "+err.Error())
	}
	if _, err := parseEncoding(p.Encoding); err != nil {
		errs = append(errs, "encoding: "+err.Error())
	}
	for label, field := range p.Columns {
		if field != "" && !core.IsTargetField(field) {
			errs = append(errs, fmt.Sprintf("columns.%q: unknown field %q", label, field))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid profile: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Partial converts the profile into a partial pipeline configuration.
func (p Profile) Partial() core.PartialConfig {
	partial := core.PartialConfig{
		HeaderRow:             p.HeaderRow,
		AutoDetectHeader:      p.AutoDetectHeader,
		RowsToSkipAfterHeader: p.SkipRows,
		StrictValidation:      p.Strict,
		MaxFileSize:           p.MaxFileSize,
		ColumnOverrides:       p.Columns,
	}
	if p.Locale != "" {
		loc := core.ParseLocale(p.Locale)
		partial.Locale = &loc
	}
	if p.Delimiter != "" {
		d, _ := parseDelimiter(p.Delimiter)
		partial.Delimiter = &d
	}
	if p.Encoding != "" {
		enc, _ := parseEncoding(p.Encoding)
		partial.Encoding = &enc
	}
	return partial
}

// Apply returns base with the profile's settings on top.
func (p Profile) Apply(base core.ParseConfig) core.ParseConfig {
	return p.Partial().Apply(base)
}

// ParseConfig builds the default pipeline configuration from the environment settings.
func (c *ParseDefaults) ParseConfig() (core.ParseConfig, error) {
	delim, err := parseDelimiter(c.Delimiter)
	if err != nil {
		return core.ParseConfig{}, fmt.Errorf("PARSE_DELIMITER: %w", err)
	}
	enc, err := parseEncoding(c.Encoding)
	if err != nil {
		return core.ParseConfig{}, fmt.Errorf("PARSE_ENCODING: %w", err)
	}

	cfg := core.DefaultParseConfig()
	cfg.HeaderRow = c.HeaderRow
	cfg.AutoDetectHeader = c.AutoDetectHeader
	cfg.RowsToSkipAfterHeader = c.SkipRows
	cfg.StrictValidation = c.StrictValidation
	cfg.Locale = core.ParseLocale(c.Locale)
	cfg.Delimiter = delim
	cfg.Encoding = enc
	if c.MaxFileSize > 0 {
		cfg.MaxFileSize = c.MaxFileSize
	}
	return cfg, nil
}

// ProfilePath resolves a profile name to its file under ProfileDir.
func (c *ParseDefaults) ProfilePath(name string) (string, error) {
	if c.ProfileDir == "" {
		return "", ErrProfilesDisabled
	}
	if !profileNameRegex.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	path := filepath.Join(c.ProfileDir, name+".toml")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrUnknownProfile, name)
		}
		return "", fmt.Errorf("stat profile: %w", err)
	}
	return path, nil
}

// LoadNamedProfile resolves name under ProfileDir and loads it.
func (c *ParseDefaults) LoadNamedProfile(name string) (Profile, error) {
	path, err := c.ProfilePath(name)
	if err != nil {
		return Profile{}, err
	}
	return LoadProfile(path)
}

// ProfileMatchThreshold is the minimum share of a profile's column labels a
// header must contain for the profile to be suggested.
const ProfileMatchThreshold = 0.5

// MatchProfiles scores every profile under ProfileDir against a file's
// header by its [columns] labels and returns the suggestions, best first.
// Profiles that fail to load are skipped.
func (c *ParseDefaults) MatchProfiles(header []string) ([]core.HeaderMatch, error) {
	if c.ProfileDir == "" {
		return nil, ErrProfilesDisabled
	}
	paths, err := filepath.Glob(filepath.Join(c.ProfileDir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	var matches []core.HeaderMatch
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".toml")
		if !profileNameRegex.MatchString(name) {
			continue
		}
		p, err := LoadProfile(path)
		if err != nil {
			slog.Warn("skipping invalid profile", "profile", name, "error", err)
			continue
		}
		labels := slices.Collect(maps.Keys(p.Columns))
		matches = append(matches, core.HeaderMatch{Name: name, Score: core.MatchHeaders(header, labels)})
	}
	return core.RankMatches(matches, ProfileMatchThreshold), nil
}

// parseDelimiter accepts a single character, or "tab". Empty means sniff.
func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%q must be a single character or \"tab\"", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("%q cannot be used as a delimiter", s)
	}
	return r, nil
}

func parseEncoding(s string) (core.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return core.EncodingAuto, nil
	case "utf-8", "utf8":
		return core.EncodingUTF8, nil
	case "windows-1252", "cp1252", "latin1", "iso-8859-1":
		return core.EncodingWindows1252, nil
	}
	return "", fmt.Errorf("%q must be one of: auto, utf-8, windows-1252", s)
}
