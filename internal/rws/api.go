package rws

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ========================= high-level API =========================

// DefaultTask — задача RAPID по умолчанию у однороботных систем.
const DefaultTask = "T_ROB1"

// withJSON добавляет json=1 к пути с учётом уже имеющегося query.
func withJSON(path string) string {
	if strings.Contains(path, "?") {
		return path + "&json=1"
	}
	return path + "?json=1"
}

func taskOrDefault(task string) string {
	if task == "" {
		return DefaultTask
	}
	return task
}

func (c *Client) ControllerInfo(ctx context.Context) ([]ControllerInfo, error) {
	raw, err := c.get(ctx, withJSON("/ctrl"))
	if err != nil {
		return nil, err
	}
	return DecodeMany[ControllerInfo](raw)
}

func (c *Client) SystemProperties(ctx context.Context) ([]SystemProperties, error) {
	raw, err := c.get(ctx, withJSON("/rw/system"))
	if err != nil {
		return nil, err
	}
	return DecodeMany[SystemProperties](raw)
}

// Signal читает один сигнал; name — имя или полный путь (Local/DRV_1/DI1).
func (c *Client) Signal(ctx context.Context, name string) (*IOSignal, error) {
	raw, err := c.get(ctx, withJSON("/rw/iosystem/signals/"+strings.TrimLeft(name, "/")))
	if err != nil {
		return nil, err
	}
	sig, err := DecodeOne[IOSignal](raw)
	if err != nil {
		return nil, fmt.Errorf("signal %s: %w", name, err)
	}
	return &sig, nil
}

func (c *Client) SetSignal(ctx context.Context, name string, value int) error {
	form := url.Values{"lvalue": {strconv.Itoa(value)}}
	return c.post(ctx, "/rw/iosystem/signals/"+strings.TrimLeft(name, "/")+"?action=set", form)
}

// Signals — все сигналы, постранично (limit <= 0 — DefaultPageLimit).
func (c *Client) Signals(ctx context.Context, limit, start int) ([]IOSignal, error) {
	return Paginate[IOSignal](ctx, start, limit, func(ctx context.Context, start, limit int) ([]IOSignal, error) {
		raw, err := c.get(ctx, fmt.Sprintf("/rw/iosystem/signals?json=1&limit=%d&start=%d", limit, start))
		if err != nil {
			return nil, err
		}
		return DecodeMany[IOSignal](raw)
	})
}

func (c *Client) ExecutionState(ctx context.Context) (*ExecutionState, error) {
	raw, err := c.get(ctx, withJSON("/rw/rapid/execution"))
	if err != nil {
		return nil, err
	}
	st, err := DecodeOne[ExecutionState](raw)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// StartProgram запускает RAPID с параметрами как у FlexPendant: continue/forever.
func (c *Client) StartProgram(ctx context.Context) error {
	form := url.Values{
		"regain":       {"continue"},
		"execmode":     {"continue"},
		"cycle":        {"forever"},
		"condition":    {"none"},
		"stopatbp":     {"disabled"},
		"alltaskbytsp": {"false"},
	}
	return c.post(ctx, "/rw/rapid/execution?action=start", form)
}

func (c *Client) StopProgram(ctx context.Context, task string) error {
	return c.post(ctx, "/rw/rapid/tasks/"+taskOrDefault(task)+"/execution?action=stop", nil)
}

// ResetProgram ставит указатель программы на main.
func (c *Client) ResetProgram(ctx context.Context, task string) error {
	return c.post(ctx, "/rw/rapid/tasks/"+taskOrDefault(task)+"/execution?action=resetpp", nil)
}

func (c *Client) TaskState(ctx context.Context, task string) (*TaskState, error) {
	task = taskOrDefault(task)
	raw, err := c.get(ctx, withJSON("/rw/rapid/tasks/"+task))
	if err != nil {
		return nil, err
	}
	st, err := DecodeOne[TaskState](raw)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task, err)
	}
	return &st, nil
}

func (c *Client) Tasks(ctx context.Context) ([]RapidTask, error) {
	raw, err := c.get(ctx, withJSON("/rw/rapid/tasks"))
	if err != nil {
		return nil, err
	}
	return DecodeMany[RapidTask](raw)
}

func symbolPath(task, module, name string) string {
	return "/rw/rapid/symbol/data/RAPID/" + taskOrDefault(task) + "/" + module + "/" + name
}

func (c *Client) Variable(ctx context.Context, task, module, name string) (*RapidVariable, error) {
	raw, err := c.get(ctx, withJSON(symbolPath(task, module, name)))
	if err != nil {
		return nil, err
	}
	v, err := DecodeOne[RapidVariable](raw)
	if err != nil {
		return nil, fmt.Errorf("variable %s/%s: %w", module, name, err)
	}
	return &v, nil
}

// SetVariable пишет значение в синтаксисе RAPID ("100", "TRUE", "[1,2,3]").
func (c *Client) SetVariable(ctx context.Context, task, module, name, value string) error {
	form := url.Values{"value": {value}}
	return c.post(ctx, symbolPath(task, module, name)+"?action=set", form)
}

// Files — содержимое каталога файловой службы ("$home", "$temp/logs").
func (c *Client) Files(ctx context.Context, dir string) ([]FileItem, error) {
	raw, err := c.get(ctx, withJSON("/fileservice/"+strings.TrimLeft(dir, "/")))
	if err != nil {
		return nil, err
	}
	return DecodeMany[FileItem](raw)
}
