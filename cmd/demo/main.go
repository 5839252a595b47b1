// Demo replays the tail of a log file through the renderer at a steady pace.
// Used for recording README demos.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/clarabennett2626/logtrail/internal/parser"
	"github.com/clarabennett2626/logtrail/internal/source"
	"github.com/clarabennett2626/logtrail/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: demo <logfile>\n")
		os.Exit(1)
	}

	records, err := source.ReadTail(context.Background(), os.Args[1], source.DefaultFileConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = rec.Raw
	}
	fmt.Printf("Detected format: %s (%d records)\n\n", parser.DetectFormat(lines), len(records))

	renderer := tui.NewRenderer(tui.RenderConfig{
		TimestampFormat: tui.TimestampRelative,
		Theme:           tui.ThemeDark,
		TerminalWidth:   120,
		WrapMode:        tui.WrapTruncate,
		ShowAllFields:   true,
		ANSIMode:        tui.ANSIStrip,
	})
	for _, rec := range records {
		fmt.Println(renderer.RenderRecord(rec))
		time.Sleep(80 * time.Millisecond)
	}
}
