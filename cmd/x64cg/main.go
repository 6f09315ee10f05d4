// Command x64cg drives the CFG-normalization -> event-lowering ->
// register-allocation -> encoding pipeline from the command line, the
// same cobra.Command-tree shape cmd/z80opt uses for its own subcommands.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ohmu-lang/x64backend/pkg/cfg"
	"github.com/ohmu-lang/x64backend/pkg/codegen"
	"github.com/ohmu-lang/x64backend/pkg/events"
	"github.com/ohmu-lang/x64backend/pkg/lower"
	"github.com/ohmu-lang/x64backend/pkg/regalloc"
	"github.com/ohmu-lang/x64backend/pkg/x86"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "x64cg",
		Short: "x64backend code generator — TIL event stream to x86-64 machine code",
	}

	// compile command
	var compileOutput string
	var relaxed bool

	compileCmd := &cobra.Command{
		Use:   "compile [program.json]",
		Short: "Compile a JSON SSA-CFG program to x86-64 machine code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tm, err := buildModule(data)
			if err != nil {
				return fmt.Errorf("build module: %w", err)
			}

			m := cfg.BuildModule(tm)
			cfg.Normalize(m)
			stream := lower.Lower(m)
			events.Normalize(stream)
			regalloc.Allocate(stream)

			out, err := codegen.Generate(stream, relaxed)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			fmt.Printf("%d events, %d bytes\n", stream.Len(), len(out))
			if compileOutput != "" {
				if err := os.WriteFile(compileOutput, out, 0o644); err != nil {
					return err
				}
				fmt.Printf("Written to %s\n", compileOutput)
				return nil
			}
			fmt.Println(hex.EncodeToString(out))
			return nil
		},
	}
	compileCmd.Flags().StringVar(&compileOutput, "output", "", "Output binary file path (default: print hex to stdout)")
	compileCmd.Flags().BoolVar(&relaxed, "relaxed", false, "Use iterative jump relaxation (spec §4.7) instead of the single backward-only pass")

	// asm command
	var asmOutput string
	asmCmd := &cobra.Command{
		Use:   "asm [instructions]",
		Short: "Assemble a colon-separated list of straight-line x86-64 instructions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := x86.NewBuilder()
			for _, part := range strings.Split(strings.Join(args, " "), ":") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				ins, err := assembleLine(part)
				if err != nil {
					return err
				}
				b.Emit(ins)
			}
			out, err := b.Encode()
			if err != nil {
				return err
			}
			if asmOutput != "" {
				if err := os.WriteFile(asmOutput, out, 0o644); err != nil {
					return err
				}
				fmt.Printf("Written to %s\n", asmOutput)
				return nil
			}
			fmt.Println(hex.EncodeToString(out))
			return nil
		},
	}
	asmCmd.Flags().StringVar(&asmOutput, "output", "", "Output binary file path (default: print hex to stdout)")

	// disasm command
	disasmCmd := &cobra.Command{
		Use:   "disasm [hex-bytes]",
		Short: "Decode a hex byte string as a sequence of x86-64 instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}
			if len(raw) == 0 {
				return fmt.Errorf("no bytes to decode")
			}
			for i := 0; i < len(raw); {
				d := x86.Decode(raw[i:])
				if d.Len == 0 {
					return fmt.Errorf("decode stalled at offset %d", i)
				}
				fmt.Printf("%4d: %s %s\n", i, d.Mnemonic, operandString(d))
				i += d.Len
			}
			return nil
		},
	}

	// dump-opcodes command
	dumpCmd := &cobra.Command{
		Use:   "dump-opcodes",
		Short: "Print the mnemonic table this encoder supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, row := range opcodeTable {
				fmt.Printf("  %-6s %s\n", row.mnemonic, row.desc)
			}
			return nil
		},
	}

	rootCmd.AddCommand(compileCmd, asmCmd, disasmCmd, dumpCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
