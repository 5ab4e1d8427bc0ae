package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/moffa90/go-mtkboot/bootloader"
)

// progressReporter renders upload progress as a bar on a terminal and as
// log lines otherwise.
type progressReporter struct {
	tty   bool
	bar   *progressbar.ProgressBar
	phase string
}

func newProgressReporter() *progressReporter {
	fd := os.Stderr.Fd()
	return &progressReporter{
		tty: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

func (r *progressReporter) report(p bootloader.Progress) {
	if p.Phase != r.phase {
		r.phase = p.Phase
		if r.bar != nil {
			_ = r.bar.Finish()
			fmt.Fprintln(os.Stderr)
			r.bar = nil
		}
		log.Info().Str("phase", p.Phase).Msg("progress")
	}

	if p.Phase != bootloader.PhaseUploading || p.TotalBytes <= 0 {
		return
	}

	if !r.tty {
		if p.CurrentPacket > 0 && (p.CurrentPacket == p.TotalPackets || p.CurrentPacket%16 == 0) {
			log.Info().
				Int64("packet", p.CurrentPacket).
				Int64("of", p.TotalPackets).
				Str("percent", fmt.Sprintf("%.1f", p.Percentage)).
				Msg("uploading")
		}
		return
	}

	if r.bar == nil {
		r.bar = progressbar.NewOptions64(p.TotalBytes,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Uploading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
		)
	}
	_ = r.bar.Set64(p.BytesWritten)
}
