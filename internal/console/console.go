// Package console — интерактивная оболочка над сессией RWS: обзор
// контроллера, команды чтения/записи и управление подпиской.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"github.com/EgorLis/rwsclient/internal/config"
	"github.com/EgorLis/rwsclient/internal/monitor"
	"github.com/EgorLis/rwsclient/internal/rws"
)

// API — методы *rws.Client, которыми пользуется консоль.
type API interface {
	ControllerInfo(ctx context.Context) ([]rws.ControllerInfo, error)
	SystemProperties(ctx context.Context) ([]rws.SystemProperties, error)
	Signal(ctx context.Context, name string) (*rws.IOSignal, error)
	SetSignal(ctx context.Context, name string, value int) error
	Signals(ctx context.Context, limit, start int) ([]rws.IOSignal, error)
	ExecutionState(ctx context.Context) (*rws.ExecutionState, error)
	StartProgram(ctx context.Context) error
	StopProgram(ctx context.Context, task string) error
	ResetProgram(ctx context.Context, task string) error
	TaskState(ctx context.Context, task string) (*rws.TaskState, error)
	Tasks(ctx context.Context) ([]rws.RapidTask, error)
	Variable(ctx context.Context, task, module, name string) (*rws.RapidVariable, error)
	SetVariable(ctx context.Context, task, module, name, value string) error
	Files(ctx context.Context, dir string) ([]rws.FileItem, error)
}

// Subscriber — методы *monitor.Monitor для команды sub.
type Subscriber interface {
	Start(ctx context.Context, resources []rws.Resource) error
	Stop(timeout time.Duration) monitor.StopResult
	State() monitor.State
	ChannelURL() string
}

type Options struct {
	Resources   []rws.Resource
	Overview    config.Overview
	StopTimeout time.Duration
}

type Console struct {
	api  API
	sub  Subscriber
	opts Options

	mu     sync.Mutex // события приходят из горутины монитора
	out    io.Writer
	styles styles
	now    func() time.Time
}

type styles struct {
	head  lipgloss.Style
	event lipgloss.Style
	err   lipgloss.Style
	ok    lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		head:  r.NewStyle().Bold(true),
		event: r.NewStyle().Faint(true),
		err:   r.NewStyle().Foreground(lipgloss.Color("9")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

func New(api API, sub Subscriber, out io.Writer, opts Options) *Console {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = monitor.DefaultStopTimeout
	}
	return &Console{
		api:    api,
		sub:    sub,
		opts:   opts,
		out:    out,
		styles: newStyles(out),
		now:    time.Now,
	}
}

// SetOutput переключает вывод, например на rl.Stdout() после запуска readline.
func (c *Console) SetOutput(out io.Writer) {
	c.mu.Lock()
	c.out = out
	c.styles = newStyles(out)
	c.mu.Unlock()
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	c.println(fmt.Sprintf(format, args...))
}

func (c *Console) heading(s string) {
	c.println("\n" + c.styles.head.Render(s))
}

func (c *Console) Error(err error) {
	c.println(c.styles.err.Render("error: " + err.Error()))
}

// Event печатает сводку события; подходит как monitor.Options.OnEvent.
func (c *Console) Event(summary string) {
	c.println(c.styles.event.Render(fmt.Sprintf("[event %s] %s", c.now().Format("15:04:05"), summary)))
}

// Run — цикл readline до quit, EOF или отмены ctx.
// При отмене ctx rl закрывается здесь же; повторный Close у вызывающего безопасен.
func (c *Console) Run(ctx context.Context, rl *readline.Instance) {
	c.SetOutput(rl.Stdout())
	c.help()

	// отмена ctx прерывает блокирующий Readline
	stop := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer stop()

	for {
		if ctx.Err() != nil {
			return
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			c.println("exiting...")
			return
		}

		quit, err := c.Handle(ctx, line)
		if err != nil {
			c.Error(err)
		}
		if quit {
			c.println("exiting...")
			return
		}
	}
}

// Await печатает события, пока ctx не отменён: режим без терминала.
func (c *Console) Await(ctx context.Context) {
	c.printf("subscription %s, waiting for events (Ctrl+C to stop)", c.sub.State())
	<-ctx.Done()
}
