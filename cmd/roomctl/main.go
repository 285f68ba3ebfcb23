// Command roomctl inspects a running playback server: stored routes, live
// rooms, and operator start/pause/reset commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"routesim/server/internal/net/proto"
	"routesim/server/internal/routes"
)

type Config struct {
	Addr    string        `envconfig:"ROOMCTL_ADDR" default:"http://localhost:8080"`
	Colours bool          `envconfig:"ROOMCTL_COLOR" default:"true"`
	Timeout time.Duration `envconfig:"ROOMCTL_TIMEOUT" default:"5s"`
}

const usage = `usage: roomctl <command> [args]

commands:
  routes [query]             list stored routes, optionally filtered by name
  rooms                      list live rooms
  start|pause|reset <route>  drive a live room as operator
`

var errUsage = errors.New("invalid arguments")

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "roomctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	c := newClient(cfg.Addr)
	p := printer{out: out, colours: cfg.Colours}

	switch cmd := args[0]; cmd {
	case "routes":
		list, err := c.routes(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		p.routes(list)
	case "rooms":
		rooms, err := c.rooms(ctx)
		if err != nil {
			return err
		}
		p.rooms(rooms)
	case "start", "pause", "reset":
		if len(args) != 2 {
			return errUsage
		}
		state, err := c.control(ctx, args[1], cmd)
		if err != nil {
			return err
		}
		p.state(state)
	default:
		return errUsage
	}
	return nil
}

type printer struct {
	out     io.Writer
	colours bool
}

func (p printer) table(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(p.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func (p printer) routes(list []routes.Route) {
	if len(list) == 0 {
		fmt.Fprintln(p.out, "no routes")
		return
	}
	table := p.table([]string{"ID", "Name", "Points", "Distance km", "Updated"})
	for _, route := range list {
		table.Append([]string{
			route.ID,
			route.Name,
			strconv.Itoa(len(route.Coordinates)),
			strconv.FormatFloat(route.Distance, 'f', 2, 64),
			route.UpdatedAt.Format(time.DateTime),
		})
	}
	table.Render()
}

func (p printer) rooms(rooms []proto.RoomSummary) {
	if len(rooms) == 0 {
		fmt.Fprintln(p.out, "no active rooms")
		return
	}
	table := p.table([]string{"Route", "Subscribers", "Status", "Index"})
	for _, room := range rooms {
		table.Append([]string{
			room.RouteID,
			strconv.Itoa(room.SubscriberCount),
			p.status(room.Playing),
			strconv.Itoa(room.Index),
		})
	}
	table.Render()
}

func (p printer) state(s roomState) {
	fmt.Fprintf(p.out, "%s %s index=%d speed=%.1f subscribers=%d position=[%.6f, %.6f]\n",
		s.RouteID, p.status(s.Playing), s.Index, s.Speed, s.SubscriberCount, s.Position.Lon, s.Position.Lat)
}

func (p printer) status(playing bool) string {
	label, style := "paused", color.New(color.FgYellow)
	if playing {
		label, style = "playing", color.New(color.FgGreen, color.OpBold)
	}
	if !p.colours {
		return label
	}
	return style.Render(label)
}
