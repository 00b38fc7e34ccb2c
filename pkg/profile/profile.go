// Package profile defines the named connection profiles a host
// application feeds into the session engine, mirroring the saved
// configurations of the interactive tool. The package only converts
// between bytes and profiles; where profiles live and when they are
// saved is entirely the host's concern.
package profile

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wsling/wsling/pkg/session"
	"github.com/wsling/wsling/pkg/vars"
)

// Header is one endpoint header. A list keeps the order the operator
// entered them in.
type Header struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Profile holds the connection settings for one endpoint. Boolean
// pointers distinguish "unset" from "false": verification and
// auto-reconnect default to on, everything else to off.
type Profile struct {
	URL           string   `yaml:"url"`
	Headers       []Header `yaml:"headers,omitempty"`
	SSLVerify     *bool    `yaml:"ssl_verify,omitempty"`
	AutoPing      bool     `yaml:"auto_ping,omitempty"`
	AutoReconnect *bool    `yaml:"auto_reconnect,omitempty"`
	TemplateURL   bool     `yaml:"template_url,omitempty"`
	TemplateData  bool     `yaml:"template_data,omitempty"`
	Context       string   `yaml:"context,omitempty"`

	// Timers are duration strings ("30s", "500ms"); empty means the
	// session default.
	DialTimeout       string `yaml:"dial_timeout,omitempty"`
	PingInterval      string `yaml:"ping_interval,omitempty"`
	ReconnectDelay    string `yaml:"reconnect_delay,omitempty"`
	MaxReconnectDelay string `yaml:"max_reconnect_delay,omitempty"`
	CloseTimeout      string `yaml:"close_timeout,omitempty"`
}

// Vars holds variable seeds: the global scope plus named contexts.
type Vars struct {
	Global   map[string]string            `yaml:"global,omitempty"`
	Contexts map[string]map[string]string `yaml:"contexts,omitempty"`
}

// Set is a collection of named profiles with an optional selection and
// shared variable seeds.
type Set struct {
	Selected string             `yaml:"selected,omitempty"`
	Profiles map[string]Profile `yaml:"profiles"`
	Vars     Vars               `yaml:"vars,omitempty"`
}

// Default returns the settings a fresh profile starts with.
func Default() Profile {
	on := true
	return Profile{
		SSLVerify:     &on,
		AutoReconnect: &on,
	}
}

// envRef is the ${env:NAME} form that pulls a value from the process
// environment at load time, so secrets never land in the file. The
// prefix keeps template placeholders like $token and ${host} out of
// its reach; those belong to the session and survive parsing verbatim.
var envRef = regexp.MustCompile(`\$\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)

// Parse decodes a profile set from YAML. ${env:NAME} references are
// expanded from the environment before decoding; unset names expand to
// the empty string. All other placeholders are left untouched and are
// resolved by the session at connect and send time, not at load time.
func Parse(data []byte) (Set, error) {
	data = envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := string(m[len("${env:") : len(m)-1])
		return []byte(os.Getenv(name))
	})

	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Set{}, fmt.Errorf("profile: parse: %w", err)
	}

	return s, nil
}

// Encode renders the set as YAML.
func (s Set) Encode() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("profile: encode: %w", err)
	}

	return data, nil
}

// Active returns the selected profile. With no selection it falls back
// to a profile named "default", then to the only profile present.
func (s Set) Active() (Profile, error) {
	if s.Selected != "" {
		p, ok := s.Profiles[s.Selected]
		if !ok {
			return Profile{}, fmt.Errorf("profile: selected profile %q not found", s.Selected)
		}
		return p, nil
	}

	if p, ok := s.Profiles["default"]; ok {
		return p, nil
	}

	if len(s.Profiles) == 1 {
		for _, p := range s.Profiles {
			return p, nil
		}
	}

	return Profile{}, errors.New("profile: no profile selected")
}

// Options converts the profile into session options.
func (p Profile) Options() (session.Options, error) {
	opts := session.Options{
		URL:           p.URL,
		SSLVerify:     p.SSLVerify == nil || *p.SSLVerify,
		AutoPing:      p.AutoPing,
		AutoReconnect: p.AutoReconnect == nil || *p.AutoReconnect,
		TemplateURL:   p.TemplateURL,
		TemplateData:  p.TemplateData,
		Context:       p.Context,
	}

	for _, h := range p.Headers {
		opts.Headers = append(opts.Headers, session.Header{Name: h.Name, Value: h.Value})
	}

	for _, d := range []struct {
		value string
		field string
		dst   *time.Duration
	}{
		{p.DialTimeout, "dial_timeout", &opts.DialTimeout},
		{p.PingInterval, "ping_interval", &opts.PingInterval},
		{p.ReconnectDelay, "reconnect_delay", &opts.ReconnectDelay},
		{p.MaxReconnectDelay, "max_reconnect_delay", &opts.MaxReconnectDelay},
		{p.CloseTimeout, "close_timeout", &opts.CloseTimeout},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return session.Options{}, fmt.Errorf("profile: %s: %w", d.field, err)
		}
		*d.dst = parsed
	}

	return opts, nil
}

// Seed applies the variable seeds to a store. Existing values with the
// same names are overwritten; everything else is left alone.
func (v Vars) Seed(store *vars.Store) error {
	for name, value := range v.Global {
		if err := store.SetGlobal(name, value); err != nil {
			return fmt.Errorf("profile: seed global %q: %w", name, err)
		}
	}

	for context, m := range v.Contexts {
		for name, value := range m {
			if err := store.SetContext(context, name, value); err != nil {
				return fmt.Errorf("profile: seed %s/%q: %w", context, name, err)
			}
		}
	}

	return nil
}
