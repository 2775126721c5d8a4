package ui

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/doridoridoriand/wifiwatch/internal/bus"
	"github.com/doridoridoriand/wifiwatch/internal/config"
	"github.com/doridoridoriand/wifiwatch/internal/scan"
	"github.com/doridoridoriand/wifiwatch/internal/signal"
	"github.com/doridoridoriand/wifiwatch/internal/state"
)

const (
	uiRefreshInterval = time.Second
	minBoxHeight      = 3
	sparkWidth        = 16
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// UI renders a TUI view of the latest snapshot received from the bus.
type UI struct {
	cfg  config.GlobalOptions
	sub  bus.Subscription
	snap state.Snapshot
	seen bool
}

// New returns a UI that draws every snapshot delivered on sub.
func New(cfg config.GlobalOptions, sub bus.Subscription) *UI {
	return &UI{cfg: cfg, sub: sub}
}

// Run blocks until the context is cancelled or the user quits.
func (u *UI) Run(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	screen.HideCursor()
	defer screen.Fini()

	eventCh := make(chan tcell.Event, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(uiRefreshInterval)
	defer ticker.Stop()

	u.render(screen, time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					return context.Canceled
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case msg, ok := <-u.sub:
			if !ok {
				return nil
			}
			if snap, ok := msg.(state.Snapshot); ok {
				u.snap, u.seen = snap, true
				u.render(screen, time.Now())
			}
		case now := <-ticker.C:
			u.render(screen, now)
		}
	}
}

func (u *UI) render(screen tcell.Screen, now time.Time) {
	screen.Clear()
	width, height := screen.Size()
	if width < 20 || height < 5 {
		screen.Show()
		return
	}

	header := fmt.Sprintf(" wifiwatch  %s  (q to quit)", now.Format("2006-01-02 15:04:05"))
	drawText(screen, 0, 0, width, header, tcell.StyleDefault.Bold(true))
	drawText(screen, 0, 1, width, formatConfigInfo(u.cfg), tcell.StyleDefault.Foreground(tcell.ColorGray))

	if !u.seen {
		drawText(screen, 1, 3, width-1, "waiting for first scan...", tcell.StyleDefault.Foreground(tcell.ColorGray))
		screen.Show()
		return
	}

	drawStyledText(screen, 0, 2, width, formatStatusLine(width, u.snap, now))

	y := 3
	if height-y >= minBoxHeight {
		drawBox(screen, 0, y, width, 3)
		drawText(screen, 2, y, width-4, " Connected ", tcell.StyleDefault.Bold(true))
		drawStyledText(screen, 1, y+1, width-2, formatConnection(width-2, u.snap))
		y += 3
	}

	networks := visibleNetworks(u.snap.Networks, u.cfg.UIMaxNetworks)
	if height-y >= minBoxHeight {
		boxHeight := len(networks) + 2
		if boxHeight < minBoxHeight {
			boxHeight = minBoxHeight
		}
		if boxHeight > height-y {
			boxHeight = height - y
		}
		title := fmt.Sprintf(" Networks (%d/%d) ", len(networks), len(u.snap.Networks))
		drawBox(screen, 0, y, width, boxHeight)
		drawText(screen, 2, y, width-4, title, tcell.StyleDefault.Bold(true))
		for i := 0; i < len(networks) && i < boxHeight-2; i++ {
			line := formatNetworkLine(width-2, networks[i], u.snap)
			drawStyledText(screen, 1, y+1+i, width-2, line)
		}
	}

	screen.Show()
}

func visibleNetworks(networks []state.NetworkSeries, limit int) []state.NetworkSeries {
	if limit > 0 && len(networks) > limit {
		return networks[:limit]
	}
	return networks
}

func formatStatusLine(width int, snap state.Snapshot, now time.Time) []styledRune {
	age := now.Sub(snap.Time)
	if age < 0 {
		age = 0
	}
	parts := []styledText{
		{text: fmt.Sprintf(" #%d  %s ago  found=%d  ", snap.Seq, formatDuration(age), snap.Found), style: tcell.StyleDefault},
		{text: "list:" + snap.ListStatus, style: scanStatusStyle(snap.ListStatus)},
		{text: "  ", style: tcell.StyleDefault},
		{text: "status:" + snap.InterfaceStatus, style: scanStatusStyle(snap.InterfaceStatus)},
	}
	if snap.Malformed > 0 {
		parts = append(parts, styledText{
			text:  fmt.Sprintf("  malformed=%d", snap.Malformed),
			style: tcell.StyleDefault.Foreground(tcell.ColorYellow),
		})
	}
	return flattenStyledText(parts, width)
}

func formatConnection(width int, snap state.Snapshot) []styledRune {
	conn := snap.Connection
	if !conn.Connected() {
		return flattenStyledText([]styledText{
			{text: "not connected", style: tcell.StyleDefault.Foreground(tcell.ColorGray)},
		}, width)
	}
	parts := []styledText{
		{text: padOrTrim(conn.Identifier, minInt(24, width)), style: tcell.StyleDefault.Bold(true)},
		{text: " ", style: tcell.StyleDefault},
	}
	if conn.Level == nil {
		parts = append(parts, styledText{text: "level unknown", style: tcell.StyleDefault.Foreground(tcell.ColorGray)})
		return flattenStyledText(parts, width)
	}
	quality := signal.QualityOf(snap.Unit, *conn.Level)
	style := qualityStyle(quality)
	parts = append(parts,
		styledText{text: padOrTrim(formatLevel(*conn.Level, snap.Unit), 9), style: style},
		styledText{text: " ", style: tcell.StyleDefault},
		styledText{text: padOrTrim(string(quality), 10), style: style},
	)
	return flattenStyledText(parts, width)
}

func formatNetworkLine(width int, series state.NetworkSeries, snap state.Snapshot) []styledRune {
	latest, _ := series.Latest()
	quality := signal.QualityOf(snap.Unit, latest.Level)
	style := qualityStyle(quality)

	marker := " "
	if series.Identifier == snap.Connection.Identifier {
		marker = "*"
	}
	stale := !latest.Time.Equal(snap.Time)
	nameStyle := tcell.StyleDefault
	if stale {
		nameStyle = nameStyle.Foreground(tcell.ColorGray)
	}

	spread := "-"
	if series.Estimated {
		spread = fmt.Sprintf("%s±%s", formatNumber(series.Estimate.Mean), formatNumber(series.Estimate.StdDev))
	}

	parts := []styledText{
		{text: marker, style: tcell.StyleDefault.Bold(true)},
		{text: padOrTrim(series.Identifier, minInt(20, width)), style: nameStyle},
		{text: " ", style: tcell.StyleDefault},
		{text: padOrTrim(formatChannel(series.Channel), 5), style: tcell.StyleDefault},
		{text: " ", style: tcell.StyleDefault},
		{text: padOrTrim(formatLevel(latest.Level, snap.Unit), 9), style: style},
		{text: " ", style: tcell.StyleDefault},
		{text: padOrTrim(spread, 13), style: tcell.StyleDefault},
		{text: " ", style: tcell.StyleDefault},
		{text: padOrTrim(string(quality), 10), style: style},
		{text: " ", style: tcell.StyleDefault},
		{text: sparkline(series.Levels(), snap.Unit, sparkWidth), style: style},
		{text: " ", style: tcell.StyleDefault},
	}

	used := 0
	for _, p := range parts {
		used += len([]rune(p.text))
	}
	if barWidth := width - used; barWidth > 0 {
		parts = append(parts, styledText{text: buildBar(latest.Level, snap.Unit, barWidth), style: style})
	}
	return flattenStyledText(parts, width)
}

// buildBar fills width proportionally to level within the unit's range.
func buildBar(level float64, unit signal.Unit, width int) string {
	if width <= 0 {
		return ""
	}
	units := int(math.Round(fraction(level, unit) * float64(width)))
	return strings.Repeat("#", units) + strings.Repeat(" ", width-units)
}

// sparkline renders the last width levels, oldest first, padded on the left.
func sparkline(levels []float64, unit signal.Unit, width int) string {
	if width <= 0 {
		return ""
	}
	if len(levels) > width {
		levels = levels[len(levels)-width:]
	}
	out := make([]rune, 0, width)
	for i := len(levels); i < width; i++ {
		out = append(out, ' ')
	}
	top := len(sparkRunes) - 1
	for _, level := range levels {
		out = append(out, sparkRunes[int(math.Round(fraction(level, unit)*float64(top)))])
	}
	return string(out)
}

func fraction(level float64, unit signal.Unit) float64 {
	lo, hi := unit.Range()
	f := (level - lo) / (hi - lo)
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func drawBox(screen tcell.Screen, x, y, width, height int) {
	if width < 2 || height < 2 {
		return
	}
	right := x + width - 1
	bottom := y + height - 1

	setCell(screen, x, y, '+', tcell.StyleDefault)
	setCell(screen, right, y, '+', tcell.StyleDefault)
	setCell(screen, x, bottom, '+', tcell.StyleDefault)
	setCell(screen, right, bottom, '+', tcell.StyleDefault)

	for col := x + 1; col < right; col++ {
		setCell(screen, col, y, '-', tcell.StyleDefault)
		setCell(screen, col, bottom, '-', tcell.StyleDefault)
	}
	for row := y + 1; row < bottom; row++ {
		setCell(screen, x, row, '|', tcell.StyleDefault)
		setCell(screen, right, row, '|', tcell.StyleDefault)
	}
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	drawStyledText(screen, x, y, width, []styledRune{{r: []rune(text), style: style}})
}

type styledText struct {
	text  string
	style tcell.Style
}

type styledRune struct {
	r     []rune
	style tcell.Style
}

func drawStyledText(screen tcell.Screen, x, y, width int, parts []styledRune) {
	if width <= 0 {
		return
	}
	col := x
	for _, part := range parts {
		for _, r := range part.r {
			if col >= x+width {
				return
			}
			setCell(screen, col, y, r, part.style)
			col++
		}
	}
	for col < x+width {
		setCell(screen, col, y, ' ', tcell.StyleDefault)
		col++
	}
}

func flattenStyledText(parts []styledText, width int) []styledRune {
	result := make([]styledRune, 0, len(parts))
	used := 0
	for _, part := range parts {
		runes := []rune(part.text)
		if used+len(runes) > width {
			runes = runes[:maxInt(0, width-used)]
		}
		result = append(result, styledRune{r: runes, style: part.style})
		used += len(runes)
		if used >= width {
			break
		}
	}
	return result
}

func setCell(screen tcell.Screen, x, y int, r rune, style tcell.Style) {
	screen.SetContent(x, y, r, nil, style)
}

func padOrTrim(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) > width {
		return string(runes[:width])
	}
	if len(runes) < width {
		return value + strings.Repeat(" ", width-len(runes))
	}
	return value
}

func formatLevel(level float64, unit signal.Unit) string {
	if unit == signal.UnitDBm {
		return formatNumber(level) + " dBm"
	}
	return formatNumber(level) + "%"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func formatChannel(channel int) string {
	if channel <= 0 {
		return "ch -"
	}
	return "ch " + strconv.Itoa(channel)
}

func qualityStyle(q signal.Quality) tcell.Style {
	switch q {
	case signal.QualityPerfect, signal.QualityExcellent, signal.QualityVeryGood:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case signal.QualityGood, signal.QualityFair:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case signal.QualityWeak, signal.QualityVeryWeak:
		return tcell.StyleDefault.Foreground(tcell.ColorOrange)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	}
}

func scanStatusStyle(status string) tcell.Style {
	if status == scan.StatusOK {
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	}
	return tcell.StyleDefault.Foreground(tcell.ColorRed)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func formatConfigInfo(cfg config.GlobalOptions) string {
	return fmt.Sprintf(" interval=%s  list_timeout=%s  unit=%s  window=%d",
		formatDuration(cfg.Interval), formatDuration(cfg.ListTimeout), cfg.Unit, cfg.WindowCap)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
