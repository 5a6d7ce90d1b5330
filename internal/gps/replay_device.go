package gps

import (
	"context"
	"io"
	"log"

	"fleettrack/internal/replay"
)

// replayDevice feeds a capture file through a pipe with its recorded timing.
// The reader sees io.EOF once the file is exhausted.
type replayDevice struct {
	r      *io.PipeReader
	cancel context.CancelFunc
}

func openReplay(path string, speed float64) (*replayDevice, error) {
	recs, err := replay.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if speed <= 0 {
		speed = 1
	}

	r, w := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		err := replay.Play(ctx, recs, speed, false, nil, func(line string) error {
			_, err := io.WriteString(w, line+"\r\n")
			return err
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("gps replay path=%s: %v", path, err)
			_ = w.CloseWithError(err)
			return
		}
		_ = w.Close()
	}()
	return &replayDevice{r: r, cancel: cancel}, nil
}

func (d *replayDevice) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *replayDevice) Close() error {
	d.cancel()
	return d.r.Close()
}
