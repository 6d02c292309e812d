package console

import (
	"context"
	"errors"
	"fmt"
)

const (
	overviewTasks   = 3
	overviewFiles   = 5
	overviewOptions = 5
)

// Overview печатает сводку по контроллеру. Ошибка раздела выводится
// строкой и не прерывает остальные.
func (c *Console) Overview(ctx context.Context) {
	o := c.opts.Overview

	c.heading("controller")
	c.report(c.controller(ctx))

	c.heading("io signals")
	if sig, err := c.api.Signal(ctx, o.Signal); err != nil {
		c.Error(err)
	} else {
		c.printf("  signal %s: value=%s, state=%s", sig.Name, sig.Value, sig.State)
	}
	if sigs, err := c.api.Signals(ctx, 0, 0); err != nil {
		c.Error(err)
	} else {
		c.printf("  total signals: %d", len(sigs))
	}

	c.heading("rapid")
	if st, err := c.api.TaskState(ctx, o.Task); err != nil {
		c.Error(err)
	} else {
		c.printf("  state of %s: %s", o.Task, st.TaskState)
	}
	if st, err := c.api.ExecutionState(ctx); err != nil {
		c.Error(err)
	} else {
		c.printf("  execution state: %s", st.ControllerState)
	}
	if tasks, err := c.api.Tasks(ctx); err != nil {
		c.Error(err)
	} else {
		c.printf("  found tasks: %d", len(tasks))
		for _, t := range tasks[:min(len(tasks), overviewTasks)] {
			c.printf("  task: %s, state: %s, active: %s", t.Name, t.State, t.Active)
		}
	}
	if v, err := c.api.Variable(ctx, o.Task, o.Module, o.Variable); err != nil {
		c.Error(err)
	} else {
		c.printf("  variable %s: %s, type: %s", o.Variable, v.Value, v.Type)
	}

	c.heading("files")
	c.report(c.files(ctx, o.Files, overviewFiles))

	c.heading("system")
	c.report(c.system(ctx))
}

// DemoWrites — пишущие шаги обзора: DO1=1, переменная=100, старт программы.
func (c *Console) DemoWrites(ctx context.Context) {
	o := c.opts.Overview
	c.heading("writes")
	c.result("set signal DO1 to 1", c.api.SetSignal(ctx, "DO1", 1))
	c.result(fmt.Sprintf("set variable %s to 100", o.Variable), c.api.SetVariable(ctx, o.Task, o.Module, o.Variable, "100"))
	c.result("start program", c.api.StartProgram(ctx))
}

func (c *Console) result(what string, err error) {
	if err != nil {
		c.Error(fmt.Errorf("%s: %w", what, err))
		return
	}
	c.ok("  " + what + ": ok")
}

func (c *Console) report(err error) {
	if err != nil {
		c.Error(err)
	}
}

func (c *Console) controller(ctx context.Context) error {
	infos, err := c.api.ControllerInfo(ctx)
	if err != nil {
		return err
	}
	for _, ci := range infos {
		if ci.Name != "" {
			c.printf("  name: %s, type: %s, time: %s", ci.Name, ci.CtrlType, ci.Datetime)
			return nil
		}
	}
	return errors.New("controller name not reported")
}

func (c *Console) system(ctx context.Context) error {
	props, err := c.api.SystemProperties(ctx)
	if err != nil {
		return err
	}
	for _, p := range props {
		switch p.Title {
		case "system":
			c.printf("  system name: %s", p.Name)
			c.printf("  robotware version: %s", p.RWVersion)
		case "options":
			c.printf("  system options (%d):", len(p.Options))
			for _, opt := range p.Options[:min(len(p.Options), overviewOptions)] {
				c.printf("    %s", opt.Option)
			}
		}
	}
	return nil
}

// files выводит каталог; limit 0 — без ограничения.
func (c *Console) files(ctx context.Context, dir string, limit int) error {
	items, err := c.api.Files(ctx, dir)
	if err != nil {
		return err
	}
	c.printf("  files in %s: %d", dir, len(items))
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	for _, f := range items[:limit] {
		c.printf("  %s (%s, %s bytes)", f.Title, f.Type, f.Size)
	}
	return nil
}
