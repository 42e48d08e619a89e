package types

import (
	"strings"
	"time"
)

// Handle locates exactly one control on the live page (a CSS selector)
type Handle string

// EntityRef identifies one guild member row discovered on the page
type EntityRef struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Trigger Handle `json:"trigger"`
}

// Control is an interactive element with a visible label, e.g. a menu item
type Control struct {
	Label  string `json:"label"`
	Handle Handle `json:"handle"`
}

// Record holds the normalized contribution values extracted for one member
type Record struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

// Value returns the value stored for field, or "" when the field was absent
func (r Record) Value(field string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[field]
}

// EntryStatus is the outcome of one entity
type EntryStatus string

const (
	StatusSuccess EntryStatus = "success"
	StatusFailure EntryStatus = "failure"
)

// LogEntry is one line of the run's progress feed
type LogEntry struct {
	Time   time.Time   `json:"time"`
	Status EntryStatus `json:"status"`
	Entity string      `json:"entity"`
	Reason string      `json:"reason,omitempty"`
}

// String renders the entry the way the progress feed shows it
func (e LogEntry) String() string {
	if e.Status == StatusSuccess {
		return "OK   " + e.Entity
	}
	if e.Reason == "" {
		return "FAIL " + e.Entity
	}
	return "FAIL " + e.Entity + ": " + e.Reason
}

// RunSummary describes a finished (or aborted) run
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Discovered int       `json:"discovered"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Aborted    bool      `json:"aborted"`
}

// FieldSet is the fixed, ordered list of recognized contribution labels
type FieldSet []string

// DefaultFields are the contribution categories shown in the guild dialog
var DefaultFields = FieldSet{
	"Gold",
	"Mana Dust",
	"Elemental Shards",
	"Codex",
	"Fish",
	"Wood",
	"Iron",
	"Herbs",
}

// ParseFieldSet splits a comma-separated list of labels, dropping blanks
func ParseFieldSet(list string) FieldSet {
	var fields FieldSet
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// CleanLabel strips the decoration the dialog puts around labels ("[Wood]", "Wood:")
func CleanLabel(raw string) string {
	label := strings.TrimSpace(raw)
	label = strings.NewReplacer("[", "", "]", "").Replace(label)
	label = strings.TrimSpace(label)
	label = strings.TrimSuffix(label, ":")
	return strings.Join(strings.Fields(label), " ")
}

// Lookup returns the canonical field label for raw, if it names a known field
func (f FieldSet) Lookup(raw string) (string, bool) {
	label := CleanLabel(raw)
	if label == "" {
		return "", false
	}
	for _, field := range f {
		if strings.EqualFold(field, label) {
			return field, true
		}
	}
	return "", false
}

// Config holds the configuration for the extractor
type Config struct {
	TargetURL          string
	Domain             string
	RemoteURL          string
	ProfileDir         string
	UseHeadlessBrowser bool
	NativeInput        bool
	UserAgent          string

	Timeout      time.Duration // bound on a single browser round trip
	EntityDelay  time.Duration // pacing between successive members
	MenuTimeout  time.Duration
	PanelTimeout time.Duration
	PollInterval time.Duration
	Limit        int // 0 means every discovered member

	Action    string
	Fields    FieldSet
	Selectors Selectors
}

// Selectors describes the markup of the guild page
type Selectors struct {
	Row      string
	Trigger  string
	MenuItem string
	Panel    string
	Header   string
	Dismiss  string
}

// DefaultSelectors returns the selectors matching the guild page markup
func DefaultSelectors() Selectors {
	return Selectors{
		Row:      `tr[data-slot="table-row"]`,
		Trigger:  `span.cursor-pointer span`,
		MenuItem: `div[role="menuitem"]`,
		Panel:    `div[role="dialog"]`,
		Header:   `div[data-slot="dialog-header"]`,
		Dismiss:  `button`,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TargetURL:          "https://manarion.com/guild",
		Domain:             "manarion.com",
		UseHeadlessBrowser: false,
		UserAgent:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Timeout:            10 * time.Second,
		EntityDelay:        3 * time.Second,
		MenuTimeout:        2 * time.Second,
		PanelTimeout:       3 * time.Second,
		PollInterval:       100 * time.Millisecond,
		Action:             "Contributions",
		Fields:             append(FieldSet(nil), DefaultFields...),
		Selectors:          DefaultSelectors(),
	}
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
