package props

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile holds the identifiers baked into an app build. They are sent
// verbatim to the content backend with every fetch.
type Profile struct {
	BundleID          string `yaml:"bundleId"`
	StoreID           string `yaml:"storeId"`
	OS                string `yaml:"os"`
	FirebaseProjectID string `yaml:"firebaseProjectId"`
}

// Load reads the base profile at path, then an optional
// "<name>.<ENV>.yaml" overlay next to it, then env overrides.
// A missing base file is not an error; defaults are used instead.
func Load(path string) (Profile, error) {
	p := Profile{}
	if err := loadYAML(path, &p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Profile{}, err
	}

	env := strings.ToLower(os.Getenv("ENV"))
	if env == "" {
		env = "dev"
	}
	ext := filepath.Ext(path)
	overlay := strings.TrimSuffix(path, ext) + "." + env + ext
	if _, err := os.Stat(overlay); err == nil {
		if err := loadYAML(overlay, &p); err != nil {
			return Profile{}, err
		}
	}

	applyEnvOverrides(&p)
	applyDefaults(&p)
	return p, nil
}

func loadYAML(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(out); err != nil {
		return fmt.Errorf("failed to decode profile %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(p *Profile) {
	if v := os.Getenv("PROFILE_BUNDLE_ID"); v != "" {
		p.BundleID = v
	}
	if v := os.Getenv("PROFILE_STORE_ID"); v != "" {
		p.StoreID = v
	}
	if v := os.Getenv("PROFILE_OS"); v != "" {
		p.OS = v
	}
	if v := os.Getenv("PROFILE_FIREBASE_PROJECT_ID"); v != "" {
		p.FirebaseProjectID = v
	}
}

func applyDefaults(p *Profile) {
	if p.BundleID == "" {
		p.BundleID = "com.relaxationapp.relaxsleep"
	}
	// store id mirrors the bundle id unless set explicitly
	if p.StoreID == "" {
		p.StoreID = p.BundleID
	}
	if p.OS == "" {
		p.OS = "Android"
	}
}
