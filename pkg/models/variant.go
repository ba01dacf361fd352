package models

import (
	"fmt"
	"strings"
)

// BuildVariant identifies a release channel
type BuildVariant string

const (
	Stable   BuildVariant = "Stable"
	Snapshot BuildVariant = "Snapshot"
)

// Variants is the priority order in which channels are checked. The first
// outdated variant wins, so stable must come first.
var Variants = []BuildVariant{Stable, Snapshot}

func (v BuildVariant) String() string {
	return string(v)
}

// Lower is the form used in baseline file names and the buildType input
func (v BuildVariant) Lower() string {
	return strings.ToLower(string(v))
}

// ParseBuildVariant accepts any letter case of a known variant name
func ParseBuildVariant(name string) (BuildVariant, error) {
	for _, v := range Variants {
		if strings.EqualFold(string(v), name) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown build variant %q", name)
}
