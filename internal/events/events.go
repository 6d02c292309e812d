// Package events разбирает XHTML-кадры канала подписки RWS.
//
// Кадр содержит список <li class="...-ev">; значения лежат в <span class="...">.
package events

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	ClassSignalState = "ios-signalstate-ev"
	ClassExecState   = "rap-ctrlexecstate-ev"

	notAvailable = "N/A"
)

var ErrEmptyFrame = errors.New("events: empty frame")

// Event — один элемент списка событий.
type Event struct {
	Class string
	Title string
	Href  string

	Fields map[string]string
	order  []string
}

// Field возвращает значение span по классу или "N/A".
func (e Event) Field(class string) string {
	if v, ok := e.Fields[class]; ok && v != "" {
		return v
	}
	return notAvailable
}

func (e Event) String() string {
	switch e.Class {
	case ClassSignalState:
		return fmt.Sprintf("%s: value=%s, state=%s", e.name(), e.Field("lvalue"), e.Field("lstate"))
	case ClassExecState:
		return "execution: " + e.Field("ctrlexecstate")
	}

	parts := make([]string, 0, len(e.order))
	for _, k := range e.order {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s): %s", e.name(), e.Class, strings.Join(parts, ", "))
}

func (e Event) name() string {
	if e.Title != "" {
		return e.Title
	}
	if e.Href != "" {
		return e.Href
	}
	return notAvailable
}

// Parse возвращает события кадра в порядке следования.
func Parse(frame string) ([]Event, error) {
	if strings.TrimSpace(frame) == "" {
		return nil, ErrEmptyFrame
	}
	doc, err := html.Parse(strings.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("events: parse: %w", err)
	}

	var out []Event
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Li {
			if cls := attr(n, "class"); strings.HasSuffix(cls, "-ev") {
				out = append(out, newEvent(n, cls))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

// Summarize — декодер для монитора: одна строка на кадр.
func Summarize(frame string) (string, error) {
	evs, err := Parse(frame)
	if err != nil {
		return "", err
	}
	if len(evs) == 0 {
		return "unknown event", nil
	}
	parts := make([]string, len(evs))
	for i, ev := range evs {
		parts[i] = ev.String()
	}
	return strings.Join(parts, "; "), nil
}

func newEvent(li *html.Node, class string) Event {
	ev := Event{
		Class:  class,
		Title:  attr(li, "title"),
		Fields: make(map[string]string),
	}

	// парсер HTML не знает самозакрытых <a/>, поэтому span ищем среди всех потомков
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.A:
				if ev.Href == "" && attr(n, "rel") == "self" {
					ev.Href = attr(n, "href")
				}
			case atom.Span:
				if k := attr(n, "class"); k != "" {
					if _, seen := ev.Fields[k]; !seen {
						ev.order = append(ev.order, k)
					}
					ev.Fields[k] = text(n)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(li)
	return ev
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
