package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"content-gate/internal/storage"
)

type Theme string

const (
	ThemeNight  Theme = "NIGHT"
	ThemeSunset Theme = "SUNSET"
	ThemeOcean  Theme = "OCEAN"
)

type Sound string

const (
	SoundRain    Sound = "RAIN"
	SoundOcean   Sound = "OCEAN"
	SoundFire    Sound = "FIRE"
	SoundWind    Sound = "WIND"
	SoundSilence Sound = "SILENCE"
	SoundLullaby Sound = "LULLABY"
)

var (
	themes = []Theme{ThemeNight, ThemeSunset, ThemeOcean}
	sounds = []Sound{SoundRain, SoundOcean, SoundFire, SoundWind, SoundSilence, SoundLullaby}
)

// Settings are the user preferences of the relaxation app.
// SelectedSound is empty when no sound was picked.
type Settings struct {
	OnboardingDone       bool    `json:"onboarding_done"`
	SleepReminderEnabled bool    `json:"sleep_reminder"`
	VibrationEnabled     bool    `json:"vibration"`
	AutoBreathing        bool    `json:"auto_breathing"`
	AppTheme             Theme   `json:"app_theme"`
	Volume               float64 `json:"volume"`
	SelectedSound        Sound   `json:"selected_sound"`
	SleepDurationMin     int     `json:"sleep_duration_min"`
}

func Defaults() Settings {
	return Settings{
		VibrationEnabled: true,
		AppTheme:         ThemeNight,
		Volume:           0.7,
		SleepDurationMin: 30,
	}
}

const (
	keyOnboardingDone = "onboarding_done"
	keySleepReminder  = "sleep_reminder"
	keyVibration      = "vibration"
	keyAutoBreathing  = "auto_breathing"
	keyAppTheme       = "app_theme"
	keyVolume         = "volume"
	keySelectedSound  = "selected_sound"
	keySleepDuration  = "sleep_duration_min"
)

type Repository struct {
	b storage.Backend
}

func NewRepository(b storage.Backend) *Repository { return &Repository{b: b} }

// Load reads all settings. Missing or unparsable values fall back to defaults.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	s := Defaults()
	get := func(key string) (string, bool, error) { return r.b.Get(ctx, key) }

	for key, dst := range map[string]*bool{
		keyOnboardingDone: &s.OnboardingDone,
		keySleepReminder:  &s.SleepReminderEnabled,
		keyVibration:      &s.VibrationEnabled,
		keyAutoBreathing:  &s.AutoBreathing,
	} {
		v, ok, err := get(key)
		if err != nil {
			return Settings{}, fmt.Errorf("load %s: %w", key, err)
		}
		if b, perr := strconv.ParseBool(v); ok && perr == nil {
			*dst = b
		}
	}

	if v, ok, err := get(keyAppTheme); err != nil {
		return Settings{}, fmt.Errorf("load %s: %w", keyAppTheme, err)
	} else if ok {
		s.AppTheme = ParseTheme(v)
	}
	if v, ok, err := get(keyVolume); err != nil {
		return Settings{}, fmt.Errorf("load %s: %w", keyVolume, err)
	} else if f, perr := strconv.ParseFloat(v, 64); ok && perr == nil {
		s.Volume = clampVolume(f)
	}
	if v, ok, err := get(keySelectedSound); err != nil {
		return Settings{}, fmt.Errorf("load %s: %w", keySelectedSound, err)
	} else if ok {
		s.SelectedSound = ParseSound(v)
	}
	if v, ok, err := get(keySleepDuration); err != nil {
		return Settings{}, fmt.Errorf("load %s: %w", keySleepDuration, err)
	} else if n, perr := strconv.Atoi(v); ok && perr == nil && n > 0 {
		s.SleepDurationMin = n
	}
	return s, nil
}

// Save normalises s and writes every field.
func (r *Repository) Save(ctx context.Context, s Settings) (Settings, error) {
	s = Normalize(s)
	err := r.b.PutMany(ctx, map[string]string{
		keyOnboardingDone: strconv.FormatBool(s.OnboardingDone),
		keySleepReminder:  strconv.FormatBool(s.SleepReminderEnabled),
		keyVibration:      strconv.FormatBool(s.VibrationEnabled),
		keyAutoBreathing:  strconv.FormatBool(s.AutoBreathing),
		keyAppTheme:       string(s.AppTheme),
		keyVolume:         strconv.FormatFloat(s.Volume, 'f', -1, 64),
		keySelectedSound:  string(s.SelectedSound),
		keySleepDuration:  strconv.Itoa(s.SleepDurationMin),
	})
	if err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return s, nil
}

func Normalize(s Settings) Settings {
	s.AppTheme = ParseTheme(string(s.AppTheme))
	s.SelectedSound = ParseSound(string(s.SelectedSound))
	s.Volume = clampVolume(s.Volume)
	if s.SleepDurationMin <= 0 {
		s.SleepDurationMin = Defaults().SleepDurationMin
	}
	return s
}

// ParseTheme falls back to NIGHT for unknown names.
func ParseTheme(v string) Theme {
	v = strings.ToUpper(strings.TrimSpace(v))
	for _, t := range themes {
		if string(t) == v {
			return t
		}
	}
	return ThemeNight
}

// ParseSound returns "" for unknown names.
func ParseSound(v string) Sound {
	v = strings.ToUpper(strings.TrimSpace(v))
	for _, s := range sounds {
		if string(s) == v {
			return s
		}
	}
	return ""
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
