// Copyright 2024 W3F Registrar Verifier Authors.
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"strings"
	"time"
)

// Config stores the configuration for the registrar-verifier process. For
// simplicity we lump every component's settings into one struct and use
// encoding/json to read it from a file.
//
// Note: no defaults are provided, except that the registrar-verifier
// entrypoint uses 0.85 when DisplayNameSimilarityLimit is zero or unset.
type Config struct {
	Verifier struct {
		ServiceConfig

		// DisplayNameSimilarityLimit is the Jaro-similarity threshold
		// above which two display names live on the same chain conflict.
		DisplayNameSimilarityLimit float64

		Matrix  MatrixConfig
		Email   EmailConfig
		Twitter TwitterConfig
		OnChain OnChainConfig
		Redis   RedisConfig
		RPCAddr string
	}

	Syslog SyslogConfig
}

// ServiceConfig contains config items common to every component.
type ServiceConfig struct {
	// DebugAddr is the address to run the /debug handlers (pprof and
	// Prometheus metrics) on.
	DebugAddr string
}

// MatrixConfig describes how to connect to the Matrix homeserver that
// exchanges challenge-response messages in verification rooms.
type MatrixConfig struct {
	HomeserverURL string
	UserID        string
	AccessToken   ConfigSecret
}

// EmailConfig describes the IMAP/SMTP account used to send and receive
// email challenge messages.
type EmailConfig struct {
	IMAPServer string
	SMTPServer string
	Username   string
	Password   ConfigSecret
	PollEvery  ConfigDuration
}

// TwitterConfig describes the Twitter API credentials used to send and
// poll for challenge-response direct messages.
type TwitterConfig struct {
	BearerToken ConfigSecret
	PollEvery   ConfigDuration
}

// OnChainConfig describes how to connect to a Substrate node's RPC
// endpoint in order to watch for remark extrinsics.
type OnChainConfig struct {
	NodeWebsocketURL string
}

// RedisConfig describes how to connect to the Redis instance backing the
// pending-identity store.
type RedisConfig struct {
	Addr     string
	Password ConfigSecret
	DB       int
}

// SyslogConfig defines logger construction options.
type SyslogConfig struct {
	// Development, when true, configures a human-readable logger instead
	// of the JSON logger used in production.
	Development bool
	StdoutLevel *int
}

// ConfigDuration is just an alias for time.Duration that allows
// serialization to YAML as well as JSON.
type ConfigDuration struct {
	time.Duration
}

// ErrDurationMustBeString is returned when a non-string value is
// presented to be deserialized as a ConfigDuration
var ErrDurationMustBeString = errors.New("cannot JSON unmarshal something other than a string into a ConfigDuration")

// UnmarshalJSON parses a string into a ConfigDuration using
// time.ParseDuration. If the input does not unmarshal as a
// string, then UnmarshalJSON returns ErrDurationMustBeString.
func (d *ConfigDuration) UnmarshalJSON(b []byte) error {
	s := ""
	err := json.Unmarshal(b, &s)
	if err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return ErrDurationMustBeString
		}
		return err
	}
	dd, err := time.ParseDuration(s)
	d.Duration = dd
	return err
}

// MarshalJSON returns the string form of the duration, as a byte array.
func (d ConfigDuration) MarshalJSON() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML uses the same format as JSON, but is called by the YAML
// parser (vs. the JSON parser).
func (d *ConfigDuration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// A ConfigSecret represents a string-valued config field. It may be
// specified directly in the config or, if it starts with the string
// "secret:", its contents are read from the filename that comes after
// "secret:", with trailing newlines removed.
type ConfigSecret string

var errSecretMustBeString = errors.New("cannot JSON unmarshal something other than a string into a ConfigSecret")

const secretPrefix = "secret:"

// UnmarshalJSON unmarshals a ConfigSecret.
func (d *ConfigSecret) UnmarshalJSON(b []byte) error {
	s := ""
	err := json.Unmarshal(b, &s)
	if err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return errSecretMustBeString
		}
		return err
	}
	if !strings.HasPrefix(s, secretPrefix) {
		*d = ConfigSecret(s)
		return nil
	}
	contents, err := ioutil.ReadFile(s[len(secretPrefix):])
	if err != nil {
		return err
	}
	*d = ConfigSecret(strings.TrimRight(string(contents), "\n"))
	return nil
}
