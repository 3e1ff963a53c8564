// Package executor выполняет скомпилированный план на живой системе.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"archweaver/internal/plan"
	"archweaver/internal/structures"
)

// ErrAlreadyRunning - план уже выполняется; два плана одновременно
// не запускаются
var ErrAlreadyRunning = errors.New("an installation is already running")

// StepError - фатальный шаг завершился с ошибкой. Command содержит
// текст команды после скрытия секретов.
type StepError struct {
	Index   int
	Command string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d failed: %s: %v", e.Index+1, e.Command, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner запускает служебную команду (umount, cryptsetup) при очистке
type Runner func(name string, args ...string) error

type Executor struct {
	config    structures.TargetConfig
	running   bool
	mutex     sync.Mutex
	logWriter io.Writer
	logger    *slog.Logger

	// Для тестов
	mountsFile string
	run        Runner
}

// New создаёт исполнитель для целевой системы
func New(cfg structures.TargetConfig) *Executor {
	def := structures.DefaultTargetConfig()
	if cfg.MountRoot == "" {
		cfg.MountRoot = def.MountRoot
	}
	if cfg.Shell == "" {
		cfg.Shell = def.Shell
	}
	return &Executor{
		config:     cfg,
		logWriter:  io.Discard,
		logger:     slog.Default(),
		mountsFile: "/proc/mounts",
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// SetLogWriter устанавливает writer для вывода команд и их stdout/stderr
func (e *Executor) SetLogWriter(writer io.Writer) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.logWriter = writer
}

// SetLogger устанавливает структурированный логгер
func (e *Executor) SetLogger(logger *slog.Logger) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.logger = logger
}

// IsRunning сообщает, выполняется ли план
func (e *Executor) IsRunning() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.running
}

func (e *Executor) begin() (io.Writer, *slog.Logger, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.running {
		return nil, nil, ErrAlreadyRunning
	}
	e.running = true
	return e.logWriter, e.logger, nil
}

func (e *Executor) finish() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.running = false
}

// Run выполняет план по порядку и отправляет события в events.
// Выполнение останавливается на первом фатальном шаге с ошибкой
// *StepError; уже сделанные изменения не откатываются. Отмена ctx
// проверяется между шагами: начатый шаг всегда доводится до конца.
// Канал events закрывается по завершении.
func (e *Executor) Run(ctx context.Context, p *plan.Plan, events chan<- Event) error {
	if events != nil {
		defer close(events)
	}

	logWriter, logger, err := e.begin()
	if err != nil {
		return err
	}
	defer e.finish()

	logFile, err := e.openLog()
	if err != nil {
		logger.Warn("install log unavailable", "path", e.config.LogPath, "error", err)
	} else if logFile != nil {
		defer logFile.Close()
		logWriter = io.MultiWriter(logWriter, logFile)
	}

	total := len(p.Steps)
	runErr := func() error {
		for _, sec := range p.Sections() {
			emit(events, Event{Kind: SectionStart, Phase: sec.Phase, Index: sec.Start, Total: total})
			for i, step := range sec.Steps {
				index := sec.Start + i
				if err := ctx.Err(); err != nil {
					return err
				}
				display := step.Display()
				emit(events, Event{Kind: StepStart, Phase: sec.Phase, Index: index, Total: total, Text: step.Description})
				fmt.Fprintf(logWriter, "[%d/%d] %s\n", index+1, total, display)
				logger.Debug("running step", "index", index, "phase", sec.Phase.String(), "context", step.Context.String())

				err := e.execute(step.Render(), logWriter, func(line string) {
					emit(events, Event{Kind: Output, Phase: sec.Phase, Index: index, Total: total, Text: line})
				})
				if err != nil {
					if step.Criticality == plan.BestEffort {
						logger.Warn("best-effort step failed", "index", index, "error", err)
						emit(events, Event{Kind: StepWarning, Phase: sec.Phase, Index: index, Total: total, Text: err.Error()})
						continue
					}
					emit(events, Event{Kind: StepFailed, Phase: sec.Phase, Index: index, Total: total, Text: display})
					return &StepError{Index: index, Command: display, Err: err}
				}
			}
			emit(events, Event{Kind: SectionDone, Phase: sec.Phase, Index: sec.Start + len(sec.Steps) - 1, Total: total})
		}
		return nil
	}()

	if e.config.Debug {
		if err := e.copyLogToTarget(); err != nil {
			logger.Warn("could not copy install log to target", "error", err)
		}
	}
	if runErr != nil {
		logger.Error("installation stopped", "error", runErr)
		return runErr
	}
	emit(events, Event{Kind: Finished, Index: total - 1, Total: total})
	return nil
}

// execute запускает одну команду через shell и построчно передаёт её
// вывод; каждая строка проходит через скрытие секретов
func (e *Executor) execute(command string, logWriter io.Writer, onLine func(string)) error {
	cmd := exec.Command(e.config.Shell, "-c", command)
	cmd.Env = append(os.Environ(), e.config.Environment...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	var outputMutex sync.Mutex
	processOutput := func(reader io.Reader, prefix string) {
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := plan.Redact(scanner.Text())

			outputMutex.Lock()
			fmt.Fprintf(logWriter, "%s: %s\n", prefix, line)
			onLine(line)
			outputMutex.Unlock()
		}
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processOutput(stdoutPipe, "stdout")
	}()
	go func() {
		defer wg.Done()
		processOutput(stderrPipe, "stderr")
	}()

	// Wait закрывает пайпы, поэтому сначала дочитываем вывод
	wg.Wait()
	return cmd.Wait()
}

func (e *Executor) openLog() (*os.File, error) {
	if e.config.LogPath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(e.config.LogPath), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(e.config.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// copyLogToTarget кладёт журнал установки в ту же позицию внутри
// целевой системы
func (e *Executor) copyLogToTarget() error {
	if e.config.LogPath == "" {
		return nil
	}
	data, err := os.ReadFile(e.config.LogPath)
	if err != nil {
		return err
	}
	dst := filepath.Join(e.config.MountRoot, e.config.LogPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

// DryRun ничего не выполняет: показывает план через те же события,
// с уже скрытыми секретами
func DryRun(p *plan.Plan, events chan<- Event) {
	if events == nil {
		return
	}
	defer close(events)

	total := len(p.Steps)
	for _, sec := range p.Sections() {
		events <- Event{Kind: SectionStart, Phase: sec.Phase, Index: sec.Start, Total: total}
		for i, step := range sec.Steps {
			events <- Event{Kind: StepStart, Phase: sec.Phase, Index: sec.Start + i, Total: total, Text: step.Description, DryRun: true}
			events <- Event{Kind: Output, Phase: sec.Phase, Index: sec.Start + i, Total: total, Text: step.Display(), DryRun: true}
		}
		events <- Event{Kind: SectionDone, Phase: sec.Phase, Index: sec.Start + len(sec.Steps) - 1, Total: total}
	}
	events <- Event{Kind: Finished, Index: total - 1, Total: total, DryRun: true}
}

func emit(events chan<- Event, ev Event) {
	if events != nil {
		events <- ev
	}
}

// Release размонтирует всё под корнем установки и закрывает
// отображение dm-crypt
func (e *Executor) Release() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}

	fmt.Fprintf(e.logWriter, "Cleaning up %s...\n", e.config.MountRoot)

	mounts, err := findMountsInPath(e.mountsFile, e.config.MountRoot)
	if err != nil {
		return fmt.Errorf("failed to read mount table: %w", err)
	}

	var failed []string
	for _, m := range mounts {
		fmt.Fprintf(e.logWriter, "Unmounting %s...\n", m)
		if !e.unmount(m) {
			fmt.Fprintf(e.logWriter, "Warning: failed to unmount %s after all attempts\n", m)
			failed = append(failed, m)
		}
	}

	if e.config.CryptMapping != "" {
		if err := e.run("cryptsetup", "close", e.config.CryptMapping); err != nil {
			fmt.Fprintf(e.logWriter, "Warning: failed to close %s: %v\n", e.config.CryptMapping, err)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to unmount %s", strings.Join(failed, ", "))
	}
	return nil
}

// unmount пробует umount, затем umount -l, затем umount -f
func (e *Executor) unmount(target string) bool {
	attempts := [][]string{
		{target},
		{"-l", target},
		{"-f", target},
	}
	for _, args := range attempts {
		if err := e.run("umount", args...); err == nil {
			return true
		}
	}
	return false
}
