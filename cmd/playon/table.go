package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/shapedtime/playon/internal/files"
)

func newTable(out io.Writer, headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		tw.SetStyle(table.StyleLight)
		tw.Style().Color = table.ColorOptions{}
	}
	tw.AppendHeader(table.Row(headers))
	return tw
}

func alignRight(tw table.Writer, columns ...int) {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{
			Number:      n,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
}

func orDash[T any](v *T) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

// sizeCell renders a listing entry's size, "-" for directories.
func sizeCell(it files.Item) string {
	if it.IsDir || it.Size == nil {
		return "-"
	}
	return humanize.IBytes(uint64(*it.Size))
}
