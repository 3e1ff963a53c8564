package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"archweaver/internal/structures"
)

// ErrConfigNotFound возвращается, если файл конфигурации отсутствует
var ErrConfigNotFound = errors.New("config file not found")

// LoadConfig загружает конфигурацию из YAML-файла в указанную структуру
func LoadConfig(path string, config interface{}) error {
	// Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	return nil
}

// LoadInstallConfig загружает сохранённую конфигурацию установки.
// Пароли в файле хранятся только в виде хэша, поэтому после загрузки
// поля паролей пусты и должны быть введены заново.
func LoadInstallConfig(path string) (*structures.InstallConfig, error) {
	var cfg structures.InstallConfig
	if err := LoadConfig(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	confirmPlaintext(&cfg)
	return &cfg, nil
}

// confirmPlaintext - пароль, записанный в файл вручную, считается
// подтверждённым
func confirmPlaintext(cfg *structures.InstallConfig) {
	cfg.System.RootConfirm = cfg.System.RootPassword
	cfg.DiskEncryption.Confirm = cfg.DiskEncryption.Password
	for i := range cfg.Users {
		cfg.Users[i].Confirm = cfg.Users[i].Password
	}
}

// SaveInstallConfig сохраняет конфигурацию, заменяя пароли bcrypt-хэшами.
// Исходная структура не изменяется.
func SaveInstallConfig(path string, cfg *structures.InstallConfig) error {
	out, err := withHashedPasswords(cfg)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Файл содержит хэши паролей
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// applyDefaults заполняет значения, которые пользователь мог не указать
func applyDefaults(cfg *structures.InstallConfig) {
	if cfg.Locales.Language == "" {
		cfg.Locales.Language = "en_US.UTF-8"
	}
	if cfg.Locales.Encoding == "" {
		cfg.Locales.Encoding = "UTF-8"
	}
	if cfg.Locales.KeyboardLayout == "" {
		cfg.Locales.KeyboardLayout = "us"
	}
	if cfg.Disks.Mode == "" {
		cfg.Disks.Mode = "best_effort"
	}
	if cfg.Disks.Label == "" {
		cfg.Disks.Label = "gpt"
	}
	if cfg.Disks.Align == "" {
		cfg.Disks.Align = "optimal"
	}
	if cfg.DiskEncryption.Type == "" {
		cfg.DiskEncryption.Type = "none"
	}
	if cfg.Swap.Size == "" {
		cfg.Swap.Size = "4GiB"
	}
	if cfg.Bootloader.Kind == "" {
		cfg.Bootloader.Kind = "systemd-boot"
	}
	if cfg.System.Timezone == "" {
		cfg.System.Timezone = "UTC"
	}
	if len(cfg.System.Kernels) == 0 {
		cfg.System.Kernels = []string{"linux"}
	}
	if cfg.System.Network == "" {
		cfg.System.Network = "networkmanager"
	}
	if cfg.System.Experience.Mode == "" {
		cfg.System.Experience.Mode = "minimal"
	}
}
