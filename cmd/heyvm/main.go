// Command heyvm is the CLI harness surrounding the VM core: spec.md §6's
// "surrounding program," kept thin and intentionally excluded from the
// core's own public API (spec SPEC_FULL.md §4.11). It loads a config.yaml,
// loads an IREP image, registers the Kernel/plugin classes, and runs one
// task to completion or the first uncaught exception — the same shape as
// wudi-hey/cmd/hey's file-mode execution path, narrowed from a PHP source
// pipeline to a prebuilt bytecode image.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/embedvm/corevm/class"
	"github.com/embedvm/corevm/config"
	"github.com/embedvm/corevm/hostio"
	"github.com/embedvm/corevm/irep"
	"github.com/embedvm/corevm/kernel"
	"github.com/embedvm/corevm/mem"
	"github.com/embedvm/corevm/symbol"
	"github.com/embedvm/corevm/vm"
)

func main() {
	app := &cli.Command{
		Name:  "heyvm",
		Usage: "run a compiled embeddable-VM bytecode image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to config.yaml"},
			&cli.BoolFlag{Name: "a", Usage: "run an interactive stepper REPL instead of running to completion"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			imagePath := cmd.Args().First()
			if imagePath == "" {
				return fmt.Errorf("heyvm: an image path argument is required")
			}
			cfg := config.Default()
			if p := cmd.String("config"); p != "" {
				loaded, err := config.Load(p)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			colorize := isatty.IsTerminal(os.Stdout.Fd())
			color.NoColor = !colorize

			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("heyvm: read image: %w", err)
			}
			root, err := irep.Load(data)
			if err != nil {
				return fmt.Errorf("heyvm: load image: %w", err)
			}

			syms := symbol.New(0)
			arena := mem.NewArena(cfg.Arena.SizeBytes)
			rt := class.NewRuntime(syms)
			sink := hostio.StdSink{}
			kernel.Register(rt, func(s string) { sink.Write(1, []byte(s)) })

			task := vm.New(rt, arena, syms, 0, hostio.WriterFor(sink, 1))
			task.Load(root)

			if cmd.Bool("a") {
				return runStepper(task)
			}

			if err := task.Run(-1); err != nil {
				printFailure(task, err)
				return cli.Exit("", 1)
			}
			if task.Pending().Truthy() {
				fmt.Fprintln(os.Stderr, color.RedString("uncaught exception"))
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "heyvm: %v\n", err)
		os.Exit(1)
	}
}
