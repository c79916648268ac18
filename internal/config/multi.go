package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultLabel = "Default"

var ErrNoConfig = errors.New("no config selected")

// Store keeps named profiles as <Root>/configs/<label>.yaml, with the active
// label in <Root>/current_config.
type Store struct {
	Root string
}

// DefaultStore lives in the platform config dir.
func DefaultStore() *Store {
	return &Store{Root: ConfigRoot()}
}

func ConfigRoot() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "comickd")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "comickd")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "comickd")
}

func (s *Store) ConfigsDir() string {
	return filepath.Join(s.Root, "configs")
}

func (s *Store) currentLabelFile() string {
	return filepath.Join(s.Root, "current_config")
}

func (s *Store) Path(label string) string {
	return filepath.Join(s.ConfigsDir(), label+".yaml")
}

func (s *Store) ensureDirs() error {
	return os.MkdirAll(s.ConfigsDir(), 0755)
}

func (s *Store) CurrentLabel() (string, error) {
	b, err := os.ReadFile(s.currentLabelFile())
	if os.IsNotExist(err) {
		return "", ErrNoConfig
	}
	if err != nil {
		return "", err
	}

	label := strings.TrimSpace(string(b))
	if label == "" {
		return "", ErrNoConfig
	}
	return label, nil
}

func (s *Store) ActivePath() (string, error) {
	label, err := s.CurrentLabel()
	if err != nil {
		return "", err
	}
	return s.Path(label), nil
}

type ConfigInfo struct {
	Label  string
	Path   string
	Active bool
}

func (s *Store) List() ([]ConfigInfo, error) {
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.ConfigsDir())
	if err != nil {
		return nil, err
	}

	active, _ := s.CurrentLabel()
	var out []ConfigInfo

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		label := strings.TrimSuffix(name, ".yaml")
		out = append(out, ConfigInfo{
			Label:  label,
			Path:   filepath.Join(s.ConfigsDir(), name),
			Active: label == active,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (s *Store) Switch(label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label cannot be empty")
	}
	if err := s.ensureDirs(); err != nil {
		return err
	}

	if _, err := os.Stat(s.Path(label)); err != nil {
		return fmt.Errorf("config %q does not exist", label)
	}

	return os.WriteFile(s.currentLabelFile(), []byte(label), 0644)
}

// Create writes a profile with default values.
func (s *Store) Create(label string) (string, error) {
	if strings.TrimSpace(label) == "" {
		return "", errors.New("label cannot be empty")
	}
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	path := s.Path(label)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config %q already exists", label)
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	return path, nil
}

// Remove deletes a profile. Removing the active one falls back to Default.
func (s *Store) Remove(label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label cannot be empty")
	}
	if label == DefaultLabel {
		return errors.New("cannot remove the Default config")
	}

	path := s.Path(label)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config %q does not exist", label)
	}

	if active, _ := s.CurrentLabel(); active == label {
		if err := s.Switch(DefaultLabel); err != nil {
			return fmt.Errorf("failed switching to Default: %w", err)
		}
	}

	return os.Remove(path)
}

// InitDefault creates Default.yaml if needed and makes it active. It returns
// os.ErrExist alongside the path when the file was already there.
func (s *Store) InitDefault() (string, error) {
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	path := s.Path(DefaultLabel)
	existed := false
	if _, err := os.Stat(path); err == nil {
		existed = true
	} else if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	if err := s.Switch(DefaultLabel); err != nil {
		return "", err
	}

	if existed {
		return path, os.ErrExist
	}
	return path, nil
}

// Reset overwrites the active profile with default values, recreating it if
// the file went missing, and returns its path.
func (s *Store) Reset() (string, error) {
	label, err := s.CurrentLabel()
	if err != nil {
		return "", err
	}
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	path := s.Path(label)
	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", fmt.Errorf("failed to reset %q: %w", label, err)
	}
	return path, nil
}
