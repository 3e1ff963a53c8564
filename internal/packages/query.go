package packages

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotFound - пакета с таким точным именем нет в базе
var ErrNotFound = errors.New("package not found")

// Info - сведения о пакете из синхронизированной базы
type Info struct {
	Repository  string
	Name        string
	Version     string
	Description string
}

// Query проверяет существование пакета. Совпадение имени точное и
// чувствительное к регистру.
type Query interface {
	Lookup(ctx context.Context, name string) (Info, error)
}

// Runner выполняет команду и возвращает её stdout
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// PacmanQuery ищет пакеты через pacman -Si, а группы через pacman -Sg
type PacmanQuery struct {
	Run Runner
}

// NewPacmanQuery создаёт запрос к pacman живой системы
func NewPacmanQuery() *PacmanQuery {
	return &PacmanQuery{Run: execRunner}
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (q *PacmanQuery) Lookup(ctx context.Context, name string) (Info, error) {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\n") {
		return Info{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}

	out, err := q.Run(ctx, "pacman", "-Si", "--", name)
	if err == nil {
		for _, info := range ParseSyncInfo(out) {
			if info.Name == name {
				return info, nil
			}
		}
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		return Info{}, ctxErr
	}

	// не пакет - возможно, группа
	out, err = q.Run(ctx, "pacman", "-Sg", "--", name)
	if err == nil && isGroup(out, name) {
		return Info{Repository: "group", Name: name}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Info{}, ctxErr
	}
	return Info{}, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// ParseSyncInfo разбирает вывод pacman -Si. Вывод может содержать
// несколько записей, разделённых пустой строкой.
func ParseSyncInfo(out []byte) []Info {
	var infos []Info
	var cur Info
	flush := func() {
		if cur.Name != "" {
			infos = append(infos, cur)
		}
		cur = Info{}
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Repository":
			cur.Repository = value
		case "Name":
			cur.Name = value
		case "Version":
			cur.Version = value
		case "Description":
			cur.Description = value
		}
	}
	flush()
	return infos
}

func isGroup(out []byte, name string) bool {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if group, _, ok := strings.Cut(sc.Text(), " "); ok && group == name {
			return true
		}
	}
	return false
}
