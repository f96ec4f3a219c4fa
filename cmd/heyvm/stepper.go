package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/olekukonko/tablewriter"

	"github.com/embedvm/corevm/vm"
)

// runStepper drives an interactive single-instruction REPL over task:
// step, regs, bt, continue — the teacher's cmd/hey `-a` interactive-shell
// flag, narrowed from a line-buffered source REPL to an instruction
// stepper (SPEC_FULL.md §4.11).
func runStepper(task *vm.VM) error {
	rl, err := readline.New(color.CyanString("heyvm> "))
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		cmdline := strings.TrimSpace(line)
		switch {
		case cmdline == "" || cmdline == "step" || cmdline == "s":
			if task.Preempted() {
				fmt.Println(color.YellowString("task already stopped"))
				continue
			}
			if err := task.Run(1); err != nil {
				printFailure(task, err)
				continue
			}
			fmt.Printf("ip=%d depth=%d\n", task.IP(), task.Depth())
		case cmdline == "regs" || cmdline == "r":
			printRegisters(task)
		case cmdline == "bt":
			for i, frame := range task.Backtrace() {
				fmt.Printf("#%d %s\n", i, frame)
			}
		case cmdline == "continue" || cmdline == "c":
			if err := task.Run(-1); err != nil {
				printFailure(task, err)
				continue
			}
			fmt.Println(color.GreenString("stopped"))
		case cmdline == "quit" || cmdline == "q":
			return nil
		default:
			fmt.Println("commands: step|s, regs|r, bt, continue|c, quit|q")
		}
	}
}

func printRegisters(task *vm.VM) {
	window := task.Window(16)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"reg", "value"})
	for i, v := range window {
		table.Append([]string{fmt.Sprintf("r%d", i), v.GoString()})
	}
	table.Render()
}

// printFailure renders a crash report via go-spew so a register-window
// dump is legible without attaching a debugger (SPEC_FULL.md §4.6). The
// trailing Go call stack is that of the printFailure call itself; panics
// are not recovered, so every report comes from an error returned by Run.
func printFailure(task *vm.VM, err error) {
	fmt.Fprintln(os.Stderr, color.RedString("vm error: %v", err))
	fmt.Fprintf(os.Stderr, "ip=%d depth=%d\n", task.IP(), task.Depth())
	spew.Fdump(os.Stderr, task.Window(8))
	fmt.Fprintln(os.Stderr, "go call stack:")
	fmt.Fprintln(os.Stderr, stack.Trace().TrimRuntime())
}
