package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"archweaver/internal/structures"
)

// Переменные окружения для неинтерактивного ввода паролей после загрузки
const (
	EnvRootPassword = "ARCHWEAVER_ROOT_PASSWORD"
	EnvLuksPassword = "ARCHWEAVER_LUKS_PASSWORD"
	EnvUserPrefix   = "ARCHWEAVER_USER_PASSWORD_"
)

func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// PasswordMatches проверяет пароль по сохранённому хэшу
func PasswordMatches(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// withHashedPasswords возвращает копию конфигурации без открытых паролей
func withHashedPasswords(cfg *structures.InstallConfig) (*structures.InstallConfig, error) {
	out := *cfg
	out.Users = make([]structures.User, len(cfg.Users))
	copy(out.Users, cfg.Users)

	if out.System.RootPassword != "" {
		hash, err := hashPassword(out.System.RootPassword)
		if err != nil {
			return nil, err
		}
		out.System.RootPasswordHash = hash
	}
	out.System.RootPassword = ""
	out.System.RootConfirm = ""

	if out.DiskEncryption.Password != "" {
		hash, err := hashPassword(out.DiskEncryption.Password)
		if err != nil {
			return nil, err
		}
		out.DiskEncryption.PasswordHash = hash
	}
	out.DiskEncryption.Password = ""
	out.DiskEncryption.Confirm = ""

	for i := range out.Users {
		if out.Users[i].Password != "" {
			hash, err := hashPassword(out.Users[i].Password)
			if err != nil {
				return nil, err
			}
			out.Users[i].PasswordHash = hash
		}
		out.Users[i].Password = ""
		out.Users[i].Confirm = ""
	}
	return &out, nil
}

// PasswordsPending перечисляет пароли, которые нужно ввести заново
func PasswordsPending(cfg *structures.InstallConfig) []string {
	var pending []string
	if cfg.System.RootPassword == "" {
		pending = append(pending, "root")
	}
	if cfg.DiskEncryption.Type == "luks" && cfg.DiskEncryption.Password == "" {
		pending = append(pending, "disk_encryption")
	}
	for _, u := range cfg.Users {
		if u.Password == "" {
			pending = append(pending, "user:"+u.Name)
		}
	}
	return pending
}

// FillPasswordsFromEnv подставляет пароли из окружения. Если в файле есть
// хэш, введённый пароль обязан ему соответствовать.
func FillPasswordsFromEnv(cfg *structures.InstallConfig) error {
	fill := func(label, env, hash string, plain, confirm *string) error {
		value, ok := os.LookupEnv(env)
		if !ok || *plain != "" {
			return nil
		}
		if hash != "" && !PasswordMatches(hash, value) {
			return fmt.Errorf("%s password from %s does not match saved hash", label, env)
		}
		*plain = value
		*confirm = value
		return nil
	}

	if err := fill("root", EnvRootPassword, cfg.System.RootPasswordHash,
		&cfg.System.RootPassword, &cfg.System.RootConfirm); err != nil {
		return err
	}
	if err := fill("disk encryption", EnvLuksPassword, cfg.DiskEncryption.PasswordHash,
		&cfg.DiskEncryption.Password, &cfg.DiskEncryption.Confirm); err != nil {
		return err
	}
	for i := range cfg.Users {
		u := &cfg.Users[i]
		env := EnvUserPrefix + strings.ToUpper(u.Name)
		if err := fill("user "+u.Name, env, u.PasswordHash, &u.Password, &u.Confirm); err != nil {
			return err
		}
	}
	return nil
}
