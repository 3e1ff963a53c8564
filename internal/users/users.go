// Package users строит шаги создания пользователей и настройки их окружения.
package users

import (
	"fmt"
	"sort"
	"strings"

	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

// defaultLoginManagers - менеджер входа по умолчанию для окружения
var defaultLoginManagers = map[string]string{
	"kde plasma": "sddm",
	"plasma":     "sddm",
	"lxqt":       "sddm",
	"gnome":      "gdm",
	"xfce":       "lightdm",
	"cinnamon":   "lightdm",
	"mate":       "lightdm",
	"budgie":     "lightdm",
	"hyprland":   "sddm",
}

// keyboardConfigs - окружения, раскладка которых задаётся в файле
// пользователя, а не через localectl
var keyboardConfigs = map[string]keyboardConfig{
	"hyprland": {
		path:    ".config/hypr/hyprland.conf",
		pattern: `^\s*kb_layout\s*=.*`,
		line:    "kb_layout = %s",
		create:  "input {\n    kb_layout = %s\n}",
	},
	"sway": {
		path:    ".config/sway/config",
		pattern: `^\s*xkb_layout\s.*`,
		line:    "    xkb_layout %s",
		create:  "input * {\n    xkb_layout %s\n}",
	},
}

type keyboardConfig struct {
	path    string
	pattern string // ERE для sed -E
	line    string
	create  string
}

// layoutAliases - консольные раскладки и их XKB-эквиваленты
var layoutAliases = map[string]string{
	"de_ch-latin1": "ch",
	"sg":           "ch",
	"sg-latin1":    "ch",
	"fr_ch":        "ch",
	"fr_ch-latin1": "ch",
	"de-latin1":    "de",
	"de":           "de",
	"uk":           "gb",
	"sv-latin1":    "se",
	"fi":           "fi",
	"no-latin1":    "no",
	"dk-latin1":    "dk",
	"fr-latin9":    "fr",
	"fr":           "fr",
	"es":           "es",
	"it":           "it",
	"us":           "us",
	"ru":           "ru",
	"pl2":          "pl",
}

// NormalizeLayout переводит имя консольной раскладки в двухбуквенный код
// XKB. Неизвестные значения возвращаются без изменений.
func NormalizeLayout(layout string) string {
	key := strings.ToLower(strings.TrimSpace(layout))
	if key == "" {
		return "us"
	}
	if v, ok := layoutAliases[key]; ok {
		return v
	}
	return layout
}

// Plan строит шаги для всех пользователей, затем общие шаги sudo и
// менеджера входа
func Plan(s *snapshot.Snapshot) []plan.Step {
	var steps []plan.Step
	for _, u := range s.Users {
		steps = append(steps, userSteps(s, u)...)
	}
	if s.HasUserSudo() {
		steps = append(steps, sudoers())
	}
	if lm := LoginManager(s); lm != "" {
		steps = append(steps, plan.ChrootStep("Enable login manager "+lm, "systemctl enable "+lm))
	}
	return steps
}

func userSteps(s *snapshot.Snapshot, u snapshot.User) []plan.Step {
	name := u.Name
	steps := []plan.Step{
		plan.ChrootStep(
			"Create user "+name,
			fmt.Sprintf("id -u %[1]s >/dev/null 2>&1 || useradd -m -s /bin/bash %[1]s", name),
		),
	}
	if u.Sudo {
		steps = append(steps, plan.ChrootStep("Add "+name+" to wheel", "usermod -aG wheel "+name))
	}
	if u.Password != "" && u.Password == u.Confirm {
		steps = append(steps, plan.ChrootStep(
			"Set password for "+name,
			"echo '"+name+":"+plan.SecretMarker+"' | chpasswd",
		).WithSecret(u.Password))
	}
	steps = append(steps, keyboardSteps(s, name)...)
	return steps
}

// sudoers раскомментирует правила wheel и sudo; повторный запуск ничего
// не меняет
func sudoers() plan.Step {
	return plan.ChrootStep(
		"Allow wheel and sudo groups in sudoers",
		`sed -i -E 's/^#\s*(%(wheel|sudo)\s+ALL=\(ALL(:ALL)?\)\s+ALL)/\1/' /etc/sudoers`,
	)
}

// LoginManager - явно выбранный менеджер входа или менеджер по умолчанию
// для первого окружения, у которого он есть
func LoginManager(s *snapshot.Snapshot) string {
	if lm := strings.TrimSpace(s.LoginManager); lm != "" && lm != "none" {
		return lm
	}
	if s.LoginManager == "none" || !s.IsDesktop() {
		return ""
	}
	for _, env := range s.DesktopEnvs {
		if lm, ok := defaultLoginManagers[strings.ToLower(env)]; ok {
			return lm
		}
	}
	return ""
}

// keyboardSteps переписывает строку раскладки в файле окружения
// пользователя или создаёт файл, если его нет
func keyboardSteps(s *snapshot.Snapshot, name string) []plan.Step {
	if !s.IsDesktop() {
		return nil
	}
	layout := NormalizeLayout(s.KeyboardLayout)

	envs := make([]string, 0, len(s.DesktopEnvs))
	for _, env := range s.DesktopEnvs {
		if _, ok := keyboardConfigs[strings.ToLower(env)]; ok {
			envs = append(envs, strings.ToLower(env))
		}
	}
	sort.Strings(envs)

	var steps []plan.Step
	for _, env := range envs {
		kc := keyboardConfigs[env]
		file := "/home/" + name + "/" + kc.path
		dir := file[:strings.LastIndex(file, "/")]
		line := fmt.Sprintf(kc.line, layout)
		body := strings.Join([]string{
			"mkdir -p " + dir,
			fmt.Sprintf("if [ -f %s ] && grep -Eq %s %s; then", file, plan.Quote(kc.pattern), file),
			fmt.Sprintf("    sed -i -E %s %s", plan.Quote("s|"+kc.pattern+"|"+line+"|"), file),
			"else",
			fmt.Sprintf("    printf '%%s\\n' %s >> %s", quoteLines(fmt.Sprintf(kc.create, layout)), file),
			"fi",
			fmt.Sprintf("chown -R %[1]s:%[1]s /home/%[1]s/.config", name),
		}, "\n")
		steps = append(steps, plan.ChrootStep(fmt.Sprintf("Set %s keyboard layout %s for %s", env, layout, name), body))
	}
	return steps
}

func quoteLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = plan.Quote(l)
	}
	return strings.Join(lines, " ")
}
