package config

import (
	"fmt"
	"slices"
	"strings"
)

// CurrentConfigVersion is written by Default and accepted by every release.
const CurrentConfigVersion = "1"

var SupportedConfigVersions = []string{CurrentConfigVersion}

func IsSupportedConfigVersion(v string) bool {
	return slices.Contains(SupportedConfigVersions, v)
}

func SupportedConfigVersionsCSV() string {
	return strings.Join(SupportedConfigVersions, ", ")
}

// CheckVersion rejects config versions this build cannot read.
func CheckVersion(v string) error {
	if !IsSupportedConfigVersion(v) {
		return fmt.Errorf("unsupported configVersion: %q (supported: %s)", v, SupportedConfigVersionsCSV())
	}
	return nil
}
