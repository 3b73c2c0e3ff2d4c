// Command nesdis is the headless operator CLI over the disassembler and
// emulator core: load a ROM, walk its code with the disassembly worker,
// print the resulting listing, or run it for a fixed number of frames.
// Grounded on gones/cmd/gones's flag-driven entry point, rebuilt on cobra
// the way the rest of the retrieval pack's CLI tools are structured rather
// than gones' own stdlib flag package, since this tool's surface (several
// verbs, each with its own flags) is exactly cobra's sweet spot.
package main

import (
	"fmt"
	"os"

	"nesdis/cmd/nesdis/command"
)

func main() {
	if err := command.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
