package console

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// сплит с поддержкой кавычек: setvar MainModule sText "hello world"
var reArg = regexp.MustCompile(`"([^"]*)"|(\S+)`)

var helpLines = []string{
	"help                                  this list",
	"ctrl | system                         controller and system info",
	"signal <name>                         read IO signal",
	"set <name> <value>                    write IO signal",
	"signals [limit]                       list all signals",
	"tasks | task [name]                   RAPID tasks",
	"exec                                  RAPID execution state",
	"var <module> <name> [task]            read RAPID variable",
	"setvar <module> <name> <value> [task] write RAPID variable",
	"start | stop [task] | reset [task]    RAPID program control",
	"files [dir]                           file service listing",
	"sub status|start|stop                 event subscription",
	"quit                                  exit",
}

func (c *Console) help() {
	c.heading("commands")
	for _, l := range helpLines {
		c.println("  " + l)
	}
}

// Handle выполняет одну команду. quit=true — пользователь попросил выйти.
func (c *Console) Handle(ctx context.Context, line string) (quit bool, err error) {
	fields := splitArgs(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		c.help()

	case "ctrl":
		return false, c.controller(ctx)

	case "system":
		return false, c.system(ctx)

	case "signal":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: signal <name>")
		}
		sig, err := c.api.Signal(ctx, args[0])
		if err != nil {
			return false, err
		}
		c.printf("%s: value=%s, state=%s", sig.Name, sig.Value, sig.State)

	case "set":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: set <name> <value>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return false, fmt.Errorf("bad value %q: %w", args[1], err)
		}
		if err := c.api.SetSignal(ctx, args[0], v); err != nil {
			return false, err
		}
		c.ok(fmt.Sprintf("%s set to %d", args[0], v))

	case "signals":
		limit := 0
		if len(args) >= 1 {
			if limit, err = strconv.Atoi(args[0]); err != nil || limit <= 0 {
				return false, fmt.Errorf("usage: signals [limit>0]")
			}
		}
		sigs, err := c.api.Signals(ctx, limit, 0)
		if err != nil {
			return false, err
		}
		for _, s := range sigs {
			c.printf("  %-24s %-3s %s", s.Name, s.Type, s.Value)
		}
		c.printf("total: %d", len(sigs))

	case "tasks":
		tasks, err := c.api.Tasks(ctx)
		if err != nil {
			return false, err
		}
		for _, t := range tasks {
			c.printf("  %s: state=%s, active=%s", t.Name, t.State, t.Active)
		}
		c.printf("total: %d", len(tasks))

	case "task":
		task := c.task(args, 0)
		st, err := c.api.TaskState(ctx, task)
		if err != nil {
			return false, err
		}
		c.printf("%s: state=%s, exec=%s, mode=%s", task, st.TaskState, st.ExcState, st.ExecMode)

	case "exec":
		st, err := c.api.ExecutionState(ctx)
		if err != nil {
			return false, err
		}
		c.printf("execution: %s, cycle=%s", st.ControllerState, st.Cycle)

	case "var":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: var <module> <name> [task]")
		}
		v, err := c.api.Variable(ctx, c.task(args, 2), args[0], args[1])
		if err != nil {
			return false, err
		}
		c.printf("%s = %s (%s)", args[1], v.Value, v.Type)

	case "setvar":
		if len(args) < 3 {
			return false, fmt.Errorf("usage: setvar <module> <name> <value> [task]")
		}
		if err := c.api.SetVariable(ctx, c.task(args, 3), args[0], args[1], args[2]); err != nil {
			return false, err
		}
		c.ok(fmt.Sprintf("%s set to %s", args[1], args[2]))

	case "start":
		if err := c.api.StartProgram(ctx); err != nil {
			return false, err
		}
		c.ok("program started")

	case "stop":
		if err := c.api.StopProgram(ctx, c.task(args, 0)); err != nil {
			return false, err
		}
		c.ok("program stopped")

	case "reset":
		if err := c.api.ResetProgram(ctx, c.task(args, 0)); err != nil {
			return false, err
		}
		c.ok("program pointer reset to main")

	case "files":
		dir := c.opts.Overview.Files
		if len(args) >= 1 {
			dir = args[0]
		}
		return false, c.files(ctx, dir, 0)

	case "sub":
		return false, c.subscription(ctx, args)

	case "quit", "exit", "q":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

func (c *Console) subscription(ctx context.Context, args []string) error {
	sub := "status"
	if len(args) >= 1 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "status":
		line := "subscription: " + c.sub.State().String()
		if u := c.sub.ChannelURL(); u != "" {
			line += " (" + u + ")"
		}
		c.println(line)
	case "start":
		if err := c.sub.Start(ctx, c.opts.Resources); err != nil {
			return err
		}
		c.ok(fmt.Sprintf("subscription started: %d resources", len(c.opts.Resources)))
	case "stop":
		c.printf("subscription stop: %s", c.sub.Stop(c.opts.StopTimeout))
	default:
		return fmt.Errorf("usage: sub status|start|stop")
	}
	return nil
}

func (c *Console) ok(s string) {
	c.println(c.styles.ok.Render(s))
}

// task — аргумент с индексом i или задача по умолчанию из конфига.
func (c *Console) task(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return c.opts.Overview.Task
}

func splitArgs(s string) []string {
	var out []string
	for _, m := range reArg.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else {
			out = append(out, m[2])
		}
	}
	return out
}
