// Package plan описывает шаги установки и их текстовое представление.
package plan

import (
	"strings"
)

// Context - где выполняется шаг: в живой системе или внутри целевого корня
type Context int

const (
	Host Context = iota
	Chroot
)

func (c Context) String() string {
	if c == Chroot {
		return "chroot"
	}
	return "host"
}

// Criticality определяет, прерывает ли ошибка шага весь план
type Criticality int

const (
	Fatal Criticality = iota
	BestEffort
)

func (c Criticality) String() string {
	if c == BestEffort {
		return "best-effort"
	}
	return "fatal"
}

const (
	// ChrootRoot - точка монтирования целевой системы
	ChrootRoot = "/mnt"
	// SecretMarker заменяется секретом при выполнении и заглушкой при показе
	SecretMarker = "{{SECRET}}"
	// Placeholder - то, что видно в логах вместо секрета
	Placeholder = "********"
)

// Step - одна единица привилегированной работы. Значение неизменяемо:
// методы-модификаторы возвращают копию.
type Step struct {
	Phase       Phase
	Description string
	Template    string
	Context     Context
	Criticality Criticality
	Redact      bool

	secret string
}

// HostStep создаёт фатальный шаг для живой системы
func HostStep(description, command string) Step {
	return Step{Description: description, Template: command, Context: Host}
}

// ChrootStep создаёт фатальный шаг внутри /mnt
func ChrootStep(description, command string) Step {
	return Step{Description: description, Template: command, Context: Chroot}
}

// Tolerant помечает шаг как необязательный (|| true)
func (s Step) Tolerant() Step {
	s.Criticality = BestEffort
	return s
}

// WithSecret привязывает секрет к маркеру {{SECRET}} в шаблоне.
// Секрет подставляется внутрь одинарных кавычек шаблона.
func (s Step) WithSecret(secret string) Step {
	s.secret = secret
	s.Redact = true
	return s
}

// InPhase возвращает копию шага, отнесённую к фазе
func (s Step) InPhase(p Phase) Step {
	s.Phase = p
	return s
}

// Command - внутренняя команда с подставленным секретом, без обёртки chroot
func (s Step) Command() string {
	return strings.ReplaceAll(s.Template, SecretMarker, EscapeSingleQuoted(s.secret))
}

// Render возвращает текст для выполнения
func (s Step) Render() string {
	return s.render(s.Command())
}

// Display возвращает текст для показа и логов. Секрет заменяется заглушкой,
// имя пользователя и сама команда остаются видимыми.
func (s Step) Display() string {
	inner := s.Template
	if s.Redact {
		inner = strings.ReplaceAll(inner, SecretMarker, Placeholder)
	}
	return Redact(s.render(inner))
}

func (s Step) render(inner string) string {
	cmd := inner
	if s.Context == Chroot {
		cmd = WrapChroot(inner)
	}
	if s.Criticality == BestEffort {
		cmd = tolerate(cmd, s.Context == Chroot)
	}
	return cmd
}

func tolerate(cmd string, wrapped bool) string {
	if wrapped || !strings.ContainsAny(cmd, "\n;&|") {
		return cmd + " || true"
	}
	return "{ " + cmd + "\n} || true"
}

// WrapChroot оборачивает команду для выполнения в целевом корне
func WrapChroot(cmd string) string {
	return "arch-chroot " + ChrootRoot + " bash -lc " + Quote(cmd)
}

// EscapeSingleQuoted готовит строку к вставке внутрь одинарных кавычек
func EscapeSingleQuoted(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}

// Quote заключает строку в одинарные кавычки для shell
func Quote(s string) string {
	return "'" + EscapeSingleQuoted(s) + "'"
}
