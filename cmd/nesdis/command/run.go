package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nesdis/internal/cartridge"
	"nesdis/internal/instance"
	"nesdis/internal/system"
)

func runCommand() *cobra.Command {
	var romPath string
	var frames int
	var screenshotDir string
	var screenshotFrames []int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a ROM headlessly for a fixed number of frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := loggerFromContext(cmd)
			romPath = resolveROMPath(configFromContext(cmd), romPath)

			cart, err := cartridge.LoadFile(romPath)
			if err != nil {
				return fmt.Errorf("loading rom: %w", err)
			}
			sys := system.New(cart)
			in := instance.New(sys, log)
			in.Reset()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-stop
				log.Info("interrupt received, pausing")
				in.RequestPause()
			}()

			shots := make(map[int]bool, len(screenshotFrames))
			for _, f := range screenshotFrames {
				shots[f] = true
			}

			in.RequestRun()
			done := make(chan struct{})
			go func() {
				in.Run()
				close(done)
			}()

			for {
				frame := int(in.PPU.FrameCount())
				if shots[frame] {
					delete(shots, frame)
					if err := dumpFramebuffer(screenshotDir, frame, in.PPU.Framebuffer()); err != nil {
						log.Warn("screenshot failed", zap.Int("frame", frame), zap.Error(err))
					}
				}
				if frame >= frames || in.State() == instance.StateCrashed {
					in.RequestPause()
					break
				}
				time.Sleep(time.Millisecond)
			}
			<-done

			if in.State() == instance.StateCrashed {
				return fmt.Errorf("cpu crashed after %d frames", in.PPU.FrameCount())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ran %d frames\n", in.PPU.FrameCount())
			return nil
		},
	}

	addROMFlag(cmd.Flags(), &romPath)
	cmd.Flags().IntVar(&frames, "frames", 60, "number of frames to run before pausing")
	cmd.Flags().StringVar(&screenshotDir, "screenshot-dir", ".", "directory to write --screenshot-frame PPM dumps to")
	cmd.Flags().IntSliceVar(&screenshotFrames, "screenshot-frame", nil, "frame number to dump as a PPM screenshot (repeatable)")
	_ = cmd.MarkFlagRequired("rom")
	return cmd
}

// dumpFramebuffer writes buf as a binary PPM, the same format gones' own
// headless mode dumps for its frame-content sanity checks.
func dumpFramebuffer(dir string, frame int, buf *[256 * 256]uint32) error {
	path := fmt.Sprintf("%s/frame_%03d.ppm", dir, frame)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "P6\n256 240\n255\n")
	row := make([]byte, 256*3)
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			pixel := buf[y*256+x]
			row[x*3] = byte(pixel >> 16)
			row[x*3+1] = byte(pixel >> 8)
			row[x*3+2] = byte(pixel)
		}
		if _, err := f.Write(row); err != nil {
			return err
		}
	}
	return nil
}
