// Package settings holds the shared code generation flags that configure a
// target ISA.
package settings

import (
	"fmt"
	"sort"
	"strings"
)

// OptLevel is the optimization level applied during lowering
type OptLevel uint8

// Enumeration of optimization levels
const (
	OptNone OptLevel = iota
	OptSpeed
	OptSpeedAndSize
)

var optLevelNames = map[string]OptLevel{
	"none":           OptNone,
	"speed":          OptSpeed,
	"speed_and_size": OptSpeedAndSize,
}

func (o OptLevel) String() string {
	for name, lvl := range optLevelNames {
		if lvl == o {
			return name
		}
	}

	return "unknown"
}

// ParseOptLevel converts a setting value into an OptLevel
func ParseOptLevel(name string) (OptLevel, error) {
	if lvl, ok := optLevelNames[name]; ok {
		return lvl, nil
	}

	return OptNone, fmt.Errorf("unknown opt_level `%s`", name)
}

// Builder collects settings before they are frozen into Flags
type Builder struct {
	isPIC    bool
	optLevel OptLevel
}

// NewBuilder creates a builder holding the default settings: not position
// independent, no optimization.
func NewBuilder() *Builder {
	return &Builder{}
}

// boolSettings are the settings that may be toggled with Enable
var boolSettings = map[string]func(b *Builder, v bool){
	"is_pic": func(b *Builder, v bool) { b.isPIC = v },
}

// Enable turns on a boolean setting
func (b *Builder) Enable(name string) error {
	if apply, ok := boolSettings[name]; ok {
		apply(b, true)
		return nil
	}

	return fmt.Errorf("unknown boolean setting `%s` (have: %s)", name, settingNames())
}

// Set assigns a setting from its string value
func (b *Builder) Set(name, value string) error {
	switch name {
	case "opt_level":
		lvl, err := ParseOptLevel(value)
		if err != nil {
			return err
		}

		b.optLevel = lvl
		return nil
	}

	if apply, ok := boolSettings[name]; ok {
		switch value {
		case "true":
			apply(b, true)
		case "false":
			apply(b, false)
		default:
			return fmt.Errorf("setting `%s` expects true or false, got `%s`", name, value)
		}

		return nil
	}

	return fmt.Errorf("unknown setting `%s` (have: %s)", name, settingNames())
}

// Flags is an immutable snapshot of settings
type Flags struct {
	isPIC    bool
	optLevel OptLevel
}

// NewFlags freezes the settings of a builder
func NewFlags(b *Builder) Flags {
	return Flags{isPIC: b.isPIC, optLevel: b.optLevel}
}

// IsPIC indicates whether position independent code should be generated
func (f Flags) IsPIC() bool { return f.isPIC }

// OptLevel returns the optimization level
func (f Flags) OptLevel() OptLevel { return f.optLevel }

func (f Flags) String() string {
	return fmt.Sprintf("is_pic=%t opt_level=%s", f.isPIC, f.optLevel)
}

func settingNames() string {
	names := []string{"opt_level"}
	for name := range boolSettings {
		names = append(names, name)
	}

	sort.Strings(names)
	return strings.Join(names, ", ")
}
