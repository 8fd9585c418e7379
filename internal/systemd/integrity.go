package systemd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// RecordUnitHash writes the SHA-256 of the unit file at unitPath to hashPath.
// Called after installing the unit to record the baseline.
func RecordUnitHash(unitPath, hashPath string) error {
	data, err := os.ReadFile(unitPath)
	if err != nil {
		return fmt.Errorf("systemd: read unit: %w", err)
	}
	return os.WriteFile(hashPath, []byte(hashHex(data)+"\n"), 0600)
}

// CheckUnitHash compares the unit file against its recorded hash.
// Returns a warning when the unit has changed since installation, or ""
// when it matches or there is nothing to compare against.
func CheckUnitHash(unitPath, hashPath string) string {
	stored, err := os.ReadFile(hashPath)
	if err != nil {
		return ""
	}
	expected := strings.TrimSpace(string(stored))
	if len(expected) != 64 {
		return ""
	}

	data, err := os.ReadFile(unitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("unit file %s recorded at install is missing", unitPath)
		}
		return fmt.Sprintf("cannot read unit file %s: %v", unitPath, err)
	}
	actual := hashHex(data)
	if actual == expected {
		return ""
	}
	return fmt.Sprintf("unit file %s has been modified since installation (expected %s, got %s)",
		unitPath, expected[:16], actual[:16])
}

func hashHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
