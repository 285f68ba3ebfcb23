package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"

	"routesim/server/logging"
)

// Console renders one human readable line per event, optionally colored by severity.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	useColor bool
}

func NewConsole(w io.Writer, cfg logging.ConsoleConfig) *Console {
	return &Console{w: w, useColor: cfg.UseColor}
}

func (s *Console) Write(event logging.Event) error {
	if s.w == nil {
		return nil
	}
	var b strings.Builder
	b.WriteString(event.Time.Format(time.DateTime))
	b.WriteByte(' ')
	b.WriteString(s.severity(event.Severity))
	fmt.Fprintf(&b, " [%s] actor=%s", event.Type, formatEntity(event.Actor))
	if event.Tick > 0 {
		fmt.Fprintf(&b, " tick=%d", event.Tick)
	}
	if len(event.Targets) > 0 {
		parts := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			parts = append(parts, formatEntity(target))
		}
		fmt.Fprintf(&b, " targets=%s", strings.Join(parts, ","))
	}
	if event.Payload != nil {
		if data, err := json.Marshal(event.Payload); err == nil {
			fmt.Fprintf(&b, " payload=%s", data)
		} else {
			fmt.Fprintf(&b, " payload=%v", event.Payload)
		}
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *Console) Close(context.Context) error {
	return nil
}

func (s *Console) severity(sev logging.Severity) string {
	label := strings.ToUpper(sev.String())
	if !s.useColor {
		return label
	}
	switch sev {
	case logging.SeverityDebug:
		return color.Gray.Sprint(label)
	case logging.SeverityWarn:
		return color.Yellow.Sprint(label)
	case logging.SeverityError:
		return color.Red.Sprint(label)
	default:
		return color.Green.Sprint(label)
	}
}

func formatEntity(ref logging.EntityRef) string {
	switch {
	case ref.ID == "":
		return string(ref.Kind)
	case ref.Kind == "":
		return ref.ID
	default:
		return string(ref.Kind) + ":" + ref.ID
	}
}
