package structures

// TargetConfig содержит настройки исполнителя плана на целевой машине
type TargetConfig struct {
	MountRoot   string   `yaml:"mount_root"`
	Shell       string   `yaml:"shell"`
	Environment []string `yaml:"environment"`
	LogPath     string   `yaml:"log_path"`
	Debug       bool     `yaml:"debug"`
	// Устройство dm-crypt, которое нужно закрыть после размонтирования
	CryptMapping string `yaml:"crypt_mapping"`
}

// DefaultTargetConfig возвращает настройки для установки в /mnt
func DefaultTargetConfig() TargetConfig {
	return TargetConfig{
		MountRoot: "/mnt",
		Shell:     "/bin/bash",
		LogPath:   "/var/log/archweaver/install.log",
	}
}
