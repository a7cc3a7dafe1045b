package progress

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Renderer draws a single-line progress bar from tracker snapshots. It runs
// outside the engine; stopping it never stalls a download.
type Renderer struct {
	tracker *Tracker
	out     io.Writer
}

func NewRenderer(t *Tracker, out io.Writer) *Renderer {
	return &Renderer{tracker: t, out: out}
}

// Run redraws the bar every second until done is closed, then draws the
// final state with average speed.
func (r *Renderer) Run(done <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var lastBytes uint64

	for {
		select {
		case <-ticker.C:
			snap := r.tracker.Snapshot()
			delta := snap.BytesDone - lastBytes
			lastBytes = snap.BytesDone

			speedMbps := float64(delta) * 8 / (1024 * 1024)
			r.render(snap, speedMbps, false)
		case <-done:
			r.render(r.tracker.Snapshot(), 0, true)
			fmt.Fprintln(r.out)
			return
		}
	}
}

func (r *Renderer) render(snap Snapshot, speedMbps float64, final bool) {
	total := snap.TotalBytes
	if total <= 0 {
		// Unknown total: show bytes only.
		fmt.Fprintf(r.out, "\rDownloaded %d MB      ", snap.BytesDone/1024/1024)
		return
	}

	elapsed := time.Since(snap.StartedAt)
	percent := float64(snap.BytesDone) / float64(total) * 100

	displaySpeed := speedMbps
	etaStr := "calc..."

	if final {
		percent = 100.0

		seconds := elapsed.Seconds()
		if seconds < 0.1 {
			seconds = 0.1
		}

		avgBytesPerSec := float64(snap.BytesDone) / seconds
		displaySpeed = (avgBytesPerSec * 8) / (1024 * 1024)
		if snap.BytesDone == 0 {
			displaySpeed = 0
		}
	} else if elapsed.Seconds() > 0 {
		avgBytesPerSec := float64(snap.BytesDone) / elapsed.Seconds()
		if avgBytesPerSec > 0 {
			remaining := total - int64(snap.BytesDone)
			etaSeconds := int(float64(remaining) / avgBytesPerSec)
			etaStr = (time.Duration(etaSeconds) * time.Second).String()
		}
	}

	const barWidth = 20
	completedWidth := int(percent / 100 * barWidth)
	if completedWidth > barWidth {
		completedWidth = barWidth
	}
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	speedLabel := "Speed"
	timeLabel := "ETA"
	if final {
		speedLabel = "Avg"
		timeLabel = "Time"
		etaStr = elapsed.Truncate(time.Second).String()
	}

	fmt.Fprintf(r.out, "\r[%s] %5.1f%% | %s: %6.2f Mbps | %s: %-7s | %d/%d MB      ",
		bar, percent, speedLabel, displaySpeed, timeLabel, etaStr,
		snap.BytesDone/1024/1024, uint64(total)/1024/1024)
}
