package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pretgo/internal/database"
	"pretgo/internal/domain"
	"pretgo/internal/models"
	"pretgo/internal/overdue"
	"pretgo/internal/security"

	"github.com/rs/zerolog"
)

// Scanner modes.
var scannerModes = map[string]bool{"webcam": true, "douchette": true, "les_deux": true}

// Label delivery methods.
var printMethods = map[string]bool{"serial": true, "http": true, "tcp": true}

// keys never exposed nor writable through Update
var secretSettings = map[string]bool{
	models.SettingAdminPassword:    true,
	models.SettingRecoveryCodeHash: true,
	models.SettingPasswordChanged:  true,
}

var numericSettings = map[string]bool{
	models.SettingLabelWidth:       true,
	models.SettingLabelHeight:      true,
	models.SettingLabelColumns:     true,
	models.SettingLabelRows:        true,
	models.SettingLabelBarcodeSize: true,
	models.SettingLabelTextSize:    true,
	models.SettingLabelSubtextSize: true,
}

// SettingsService validates installation settings and owns the admin password.
type SettingsService struct {
	repo         domain.SettingsRepository
	recoveryPath string
	logger       *zerolog.Logger
}

// NewSettingsService writes recovery codes to recoveryPath; empty disables the file.
func NewSettingsService(repo domain.SettingsRepository, recoveryPath string, logger *zerolog.Logger) *SettingsService {
	return &SettingsService{
		repo:         repo,
		recoveryPath: recoveryPath,
		logger:       logger,
	}
}

// Policy snapshots the settings the overdue calculator needs. A stored value
// that no longer parses falls back to its own default: the duration and unit
// as a pair, the cutoff on its own.
func (s *SettingsService) Policy(ctx context.Context) (overdue.Policy, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return overdue.Policy{}, err
	}
	policy := overdue.DefaultPolicy()

	if p, err := overdue.ParsePolicy(settings[models.SettingDefaultDuration], settings[models.SettingDefaultUnit], ""); err != nil {
		s.logger.Warn().Err(err).Msg("Stored default duration is invalid, using default")
	} else {
		policy.Duration, policy.Unit = p.Duration, p.Unit
	}

	if raw := settings[models.SettingEndOfDay]; strings.TrimSpace(raw) != "" {
		if c, err := overdue.ParseCutoff(raw); err != nil {
			s.logger.Warn().Err(err).Msg("Stored end of day cutoff is invalid, using default")
		} else {
			policy.Cutoff = c
		}
	}
	return policy, nil
}

// Public returns every setting except credentials.
func (s *SettingsService) Public(ctx context.Context) (map[string]string, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	for key := range secretSettings {
		delete(settings, key)
	}
	return settings, nil
}

func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	v, err := s.repo.GetSetting(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return database.DefaultSettings[key], nil
	}
	return v, err
}

// Update validates and stores several settings at once. Nothing is written
// when one value is rejected.
func (s *SettingsService) Update(ctx context.Context, values map[string]string) error {
	clean := make(map[string]string, len(values))
	for key, raw := range values {
		v, err := normalizeSetting(key, raw)
		if err != nil {
			return err
		}
		clean[key] = v
	}
	if len(clean) == 0 {
		return nil
	}
	if err := s.repo.SetSettings(ctx, clean); err != nil {
		return err
	}
	s.logger.Info().Int("count", len(clean)).Msg("Settings updated")
	return nil
}

// UpdateAlertPolicy changes the default loan duration.
func (s *SettingsService) UpdateAlertPolicy(ctx context.Context, durationRaw, unitRaw string) error {
	return s.Update(ctx, map[string]string{
		models.SettingDefaultDuration: durationRaw,
		models.SettingDefaultUnit:     unitRaw,
	})
}

// UpdateEndOfDay changes the end-of-day cutoff. Loans already resolved keep
// their stored hours.
func (s *SettingsService) UpdateEndOfDay(ctx context.Context, raw string) error {
	return s.Update(ctx, map[string]string{models.SettingEndOfDay: raw})
}

func normalizeSetting(key, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	switch {
	case secretSettings[key]:
		return "", fmt.Errorf("%w: %s cannot be set directly", ErrValidation, key)
	case key == models.SettingDefaultDuration:
		if _, err := overdue.ParsePolicy(v, "", ""); err != nil {
			return "", fmt.Errorf("%w: %v", ErrValidation, err)
		}
	case key == models.SettingDefaultUnit:
		if v != string(overdue.UnitHours) && v != string(overdue.UnitDays) {
			return "", fmt.Errorf("%w: unit must be heures or jours", ErrValidation)
		}
	case key == models.SettingEndOfDay:
		c, err := overdue.ParseCutoff(v)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrValidation, err)
		}
		v = c.String()
	case key == models.SettingScannerMode:
		if !scannerModes[v] {
			return "", fmt.Errorf("%w: unknown scanner mode %q", ErrValidation, v)
		}
	case key == models.SettingZebraEnabled:
		switch strings.ToLower(v) {
		case "1", "true", "on":
			v = "1"
		default:
			v = "0"
		}
	case key == models.SettingZebraMethod:
		if !printMethods[v] {
			return "", fmt.Errorf("%w: unknown print method %q", ErrValidation, v)
		}
	case key == models.SettingZebraBaud:
		if n, err := strconv.Atoi(v); err != nil || n <= 0 {
			return "", fmt.Errorf("%w: invalid baud rate %q", ErrValidation, v)
		}
	case numericSettings[key]:
		if n, err := strconv.ParseFloat(v, 64); err != nil || n <= 0 {
			return "", fmt.Errorf("%w: %s must be a positive number", ErrValidation, key)
		}
	case key == models.SettingZPLTemplate:
		if v == "" {
			v = models.DefaultZPLTemplate
		}
	case key == models.SettingSchoolName, strings.HasPrefix(key, "impression_"):
	default:
		return "", fmt.Errorf("%w: unknown setting %q", ErrValidation, key)
	}
	return v, nil
}

// Admin password

// Login checks the admin password and upgrades legacy hashes. setupRequired
// is true while the default password has not been replaced.
func (s *SettingsService) Login(ctx context.Context, password string) (setupRequired bool, err error) {
	stored, err := s.repo.GetSetting(ctx, models.SettingAdminPassword)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return false, err
	}
	if stored == "" || !security.VerifyPassword(password, stored) {
		return false, ErrInvalidPassword
	}

	if security.NeedsRehash(stored) {
		if hash, err := security.HashPassword(password); err == nil {
			if err := s.repo.SetSetting(ctx, models.SettingAdminPassword, hash); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to upgrade admin password hash")
			}
		}
	}

	changed, err := s.Get(ctx, models.SettingPasswordChanged)
	if err != nil {
		return false, err
	}
	return changed != "1", nil
}

// SetupRequired reports whether the default password is still in use.
func (s *SettingsService) SetupRequired(ctx context.Context) (bool, error) {
	changed, err := s.Get(ctx, models.SettingPasswordChanged)
	return changed != "1", err
}

func validateNewPassword(password, confirm string) error {
	if len(password) < models.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, models.MinPasswordLength)
	}
	if password != confirm {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	return nil
}

// SetupPassword replaces the default password on first login and returns
// the new recovery code.
func (s *SettingsService) SetupPassword(ctx context.Context, password, confirm string) (string, error) {
	required, err := s.SetupRequired(ctx)
	if err != nil {
		return "", err
	}
	if !required {
		return "", ErrAlreadyConfigured
	}
	if err := validateNewPassword(password, confirm); err != nil {
		return "", err
	}
	return s.storePassword(ctx, password, true)
}

// ChangePassword requires the current password and returns a fresh recovery code.
func (s *SettingsService) ChangePassword(ctx context.Context, current, password, confirm string) (string, error) {
	stored, err := s.repo.GetSetting(ctx, models.SettingAdminPassword)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return "", err
	}
	if !security.VerifyPassword(current, stored) {
		return "", ErrInvalidPassword
	}
	if err := validateNewPassword(password, confirm); err != nil {
		return "", err
	}
	return s.storePassword(ctx, password, false)
}

// VerifyRecoveryCode checks a recovery code without consuming it.
func (s *SettingsService) VerifyRecoveryCode(ctx context.Context, code string) error {
	stored, err := s.repo.GetSetting(ctx, models.SettingRecoveryCodeHash)
	if errors.Is(err, database.ErrNotFound) {
		return ErrInvalidRecovery
	}
	if err != nil {
		return err
	}
	if !security.VerifyPassword(strings.ToUpper(strings.TrimSpace(code)), stored) {
		return ErrInvalidRecovery
	}
	return nil
}

// ResetPassword sets a new password with a recovery code. The code is
// replaced by a new one, which is returned.
func (s *SettingsService) ResetPassword(ctx context.Context, code, password, confirm string) (string, error) {
	if err := s.VerifyRecoveryCode(ctx, code); err != nil {
		return "", err
	}
	if err := validateNewPassword(password, confirm); err != nil {
		return "", err
	}
	return s.storePassword(ctx, password, false)
}

func (s *SettingsService) storePassword(ctx context.Context, password string, markChanged bool) (string, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return "", err
	}
	code, err := security.GenerateRecoveryCode()
	if err != nil {
		return "", err
	}
	codeHash, err := security.HashPassword(code)
	if err != nil {
		return "", err
	}

	values := map[string]string{
		models.SettingAdminPassword:    hash,
		models.SettingRecoveryCodeHash: codeHash,
	}
	if markChanged {
		values[models.SettingPasswordChanged] = "1"
	}
	if err := s.repo.SetSettings(ctx, values); err != nil {
		return "", err
	}

	if s.recoveryPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.recoveryPath), 0o755); err != nil {
			return "", fmt.Errorf("failed to create recovery directory: %w", err)
		}
		if err := os.WriteFile(s.recoveryPath, []byte(security.RecoveryFile(code)), 0o600); err != nil {
			return "", fmt.Errorf("failed to write recovery code: %w", err)
		}
	}
	s.logger.Info().Msg("Admin password updated, new recovery code generated")
	return code, nil
}
