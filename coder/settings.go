package coder

import "strings"

// Settings keys understood by OptionsFromSettings.
const (
	SettingAllowNone   = "xmlrpc.allow_none"
	SettingUseDatetime = "xmlrpc.use_datetime"
	SettingCharset     = "xmlrpc.charset"
)

// OptionsFromSettings builds Options from application settings. Missing keys
// keep their zero value. Boolean settings are true for t, true, y, yes, on
// and 1 in any case, and false otherwise.
func OptionsFromSettings(settings map[string]string) Options {
	return Options{
		AllowNone:   AsBool(settings[SettingAllowNone]),
		UseDatetime: AsBool(settings[SettingUseDatetime]),
		Encoding:    strings.TrimSpace(settings[SettingCharset]),
	}
}

// AsBool reports whether s is one of the truthy setting strings.
func AsBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "y", "yes", "on", "1":
		return true
	}
	return false
}
