package command

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nesdis/internal/cartridge"
	"nesdis/internal/db"
	"nesdis/internal/disasm"
	"nesdis/internal/system"
)

func disasmCommand() *cobra.Command {
	var romPath string
	var seedAddress uint16
	var seedBank uint16
	var useResetVector bool

	cmd := &cobra.Command{
		Use:   "disasm",
		Short: "Load a ROM, walk its code from a seed address, and print the listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := loggerFromContext(cmd)
			romPath = resolveROMPath(configFromContext(cmd), romPath)

			cart, err := cartridge.LoadFile(romPath)
			if err != nil {
				return fmt.Errorf("loading rom: %w", err)
			}
			sys := system.New(cart)
			log.Info("loaded cartridge", zap.String("rom", romPath), zap.Int("prg_banks", len(sys.PRGBanks)))

			if useResetVector {
				seedBank, seedAddress, err = resetVectorTarget(sys)
				if err != nil {
					return err
				}
			}

			log.Info("seeding disassembly", zap.Uint16("bank", seedBank), zap.Uint16("address", seedAddress))
			sys.DisassembleFrom(seedBank, seedAddress)
			<-sys.DisassemblyStopped

			for i, bank := range sys.PRGBanks {
				fmt.Fprintf(cmd.OutOrStdout(), "; Bank %d ($%04X-$%04X)\n", i, bank.Base, int(bank.Base)+bank.Size-1)
				if err := printListing(cmd, bank); err != nil {
					return err
				}
			}
			return nil
		},
	}

	addROMFlag(cmd.Flags(), &romPath)
	cmd.Flags().Uint16Var(&seedBank, "bank", 0, "PRG bank index to seed disassembly from")
	cmd.Flags().Uint16Var(&seedAddress, "address", 0, "address within --bank to seed disassembly from")
	cmd.Flags().BoolVar(&useResetVector, "from-reset", true, "seed disassembly from the cartridge's reset vector instead of --bank/--address")
	_ = cmd.MarkFlagRequired("rom")
	return cmd
}

// resetVectorTarget reads the RESET vector out of the last PRG bank (where
// System.New always places the interrupt vectors) and resolves it to the
// bank that actually maps the target address.
func resetVectorTarget(sys *system.System) (bank uint16, address uint16, err error) {
	lastBank := uint16(len(sys.PRGBanks) - 1)
	region := sys.PRGBanks[lastBank]
	offset := int(0xFFFC - region.Base)
	lo, err := region.ReadByte(offset)
	if err != nil {
		return 0, 0, fmt.Errorf("reading reset vector: %w", err)
	}
	hi, err := region.ReadByte(offset + 1)
	if err != nil {
		return 0, 0, fmt.Errorf("reading reset vector: %w", err)
	}
	target := uint16(hi)<<8 | uint16(lo)
	if _, _, ok := sys.BankForAddress(lastBank, target); ok {
		return lastBank, target, nil
	}
	for i := range sys.PRGBanks {
		if _, _, ok := sys.BankForAddress(uint16(i), target); ok {
			return uint16(i), target, nil
		}
	}
	return lastBank, target, nil
}

// printListing renders one bank's cached listing rows: labels get their own
// line, code rows get a disassembled mnemonic, everything else prints as a
// byte/word/string/enum declaration.
func printListing(cmd *cobra.Command, region *db.MemoryRegion) error {
	it, err := region.Iterate(0)
	if err != nil {
		return fmt.Errorf("iterating listing: %w", err)
	}
	out := cmd.OutOrStdout()
	for {
		obj, item, ok := it.Next()
		if !ok {
			break
		}
		switch item.Kind {
		case db.ListingLabel:
			if item.LabelIdx < len(obj.Labels) {
				fmt.Fprintf(out, "%s:\n", obj.Labels[item.LabelIdx].Name)
			}
		case db.ListingPreComment:
			if obj.PreComment != nil {
				fmt.Fprintf(out, "; %s\n", obj.PreComment.FullText())
			}
		case db.ListingPostComment:
			if obj.PostComment != nil {
				fmt.Fprintf(out, "; %s\n", obj.PostComment.FullText())
			}
		case db.ListingData:
			fmt.Fprintf(out, "    %s\n", formatObject(region, obj))
		}
	}
	return nil
}

func formatObject(region *db.MemoryRegion, obj *db.MemoryObject) string {
	addrStr := fmt.Sprintf("$%04X", int(region.Base)+obj.BaseOffset)
	switch obj.Type {
	case db.Code:
		opcodeByte, err := region.ReadByte(obj.BaseOffset)
		if err != nil {
			return fmt.Sprintf("%s ???", addrStr)
		}
		op := disasm.Table[opcodeByte]
		value, _ := readOperandValue(region, obj.BaseOffset, op)
		return fmt.Sprintf("%s %s", addrStr, disasm.FormatInstruction(op, value))
	case db.Word:
		lo, _ := region.ReadByte(obj.BaseOffset)
		hi, _ := region.ReadByte(obj.BaseOffset + 1)
		return fmt.Sprintf("%s .word $%04X", addrStr, uint16(hi)<<8|uint16(lo))
	case db.String:
		return fmt.Sprintf("%s .string (%d bytes)", addrStr, obj.Size)
	case db.EnumType:
		return fmt.Sprintf("%s .enum", addrStr)
	default:
		b, _ := region.ReadByte(obj.BaseOffset)
		return fmt.Sprintf("%s .byte $%02X", addrStr, b)
	}
}

func readOperandValue(region *db.MemoryRegion, offset int, op disasm.Opcode) (int64, error) {
	switch op.Size() {
	case 1:
		return 0, nil
	case 2:
		b, err := region.ReadByte(offset + 1)
		return int64(b), err
	case 3:
		lo, err := region.ReadByte(offset + 1)
		if err != nil {
			return 0, err
		}
		hi, err := region.ReadByte(offset + 2)
		return int64(uint16(hi)<<8 | uint16(lo)), err
	default:
		return 0, nil
	}
}
