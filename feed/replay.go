package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"sniperflow/market"
)

// Replay streams snapshots back from a JSONL recording. With
// Speed > 0 it sleeps to honor the recorded inter-snapshot gaps
// scaled by 1/Speed; with Speed == 0 it replays as fast as the
// consumer drains the channel.
type Replay struct {
	path  string
	speed float64
}

// NewReplay creates a replay source for path. Files ending in .xz
// are decompressed transparently.
func NewReplay(path string, speed float64) *Replay {
	return &Replay{path: path, speed: speed}
}

// Stream implements Source.
func (r *Replay) Stream(ctx context.Context) (<-chan market.Snapshot, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	var src io.Reader = file
	if strings.HasSuffix(r.path, ".xz") {
		xr, err := xz.NewReader(bufio.NewReader(file))
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		src = xr
	}

	out := make(chan market.Snapshot)
	go r.run(ctx, file, src, out)
	return out, nil
}

func (r *Replay) run(ctx context.Context, file *os.File, src io.Reader, out chan<- market.Snapshot) {
	defer close(out)
	defer file.Close()

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var prev time.Time
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var w wireSnapshot
		if err := json.Unmarshal(line, &w); err != nil {
			log.Printf("[replay] skipping bad line: %v", err)
			continue
		}
		snap := w.toSnapshot()

		if r.speed > 0 && !prev.IsZero() {
			gap := snap.Time.Sub(prev)
			if gap > 0 {
				wait := time.Duration(float64(gap) / r.speed)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
		prev = snap.Time

		select {
		case out <- snap:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[replay] read error: %v", err)
	}
}
