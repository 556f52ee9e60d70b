package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/urfave/cli.v1"

	"jargon/examples"
	"jargon/vm"
)

func main() {
	app := cli.NewApp()
	app.Name = "jargon"
	app.Usage = "compile and run Slang programs on the Jargon VM"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "stack-max", Value: 4096, Usage: "maximum stack cells"},
		cli.IntFlag{Name: "heap-max", Value: 4096, Usage: "maximum heap cells"},
		cli.BoolFlag{Name: "verbose", Usage: "trace every executed instruction"},
		cli.BoolFlag{Name: "debug", Usage: "single-step through the program, printing each instruction and the resulting state (does not wait for input between steps)"},
		cli.BoolFlag{Name: "list", Usage: "print the compiled+loaded listing instead of running it"},
		cli.BoolFlag{Name: "no-color", Usage: "disable colorized tracing"},
	}

	app.Action = run
	app.Commands = []cli.Command{
		{
			Name:  "examples",
			Usage: "list the built-in example programs",
			Action: func(c *cli.Context) error {
				for _, p := range examples.All {
					fmt.Printf("%-14s %s\n", p.Name, p.Doc)
				}
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "jargon:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.NewExitError("usage: jargon [flags] <example-name> (see `jargon examples`)", 1)
	}

	prog, ok := examples.Lookup(name)
	if !ok {
		names := make([]string, len(examples.All))
		for i, p := range examples.All {
			names[i] = p.Name
		}
		return cli.NewExitError(fmt.Sprintf("unknown example %q; known: %s", name, strings.Join(names, ", ")), 1)
	}

	cfg := vm.DefaultConfig()
	cfg.StackMax = c.Int("stack-max")
	cfg.HeapMax = c.Int("heap-max")
	if c.Bool("verbose") {
		if c.Bool("no-color") {
			color.NoColor = true
		}
		cfg.Trace = vm.NewColorTrace()
	}

	if err := runProgram(prog, cfg, c.Bool("debug"), c.Bool("list")); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

func runProgram(prog examples.Program, cfg vm.Config, debug, listOnly bool) error {
	listing, err := vm.Compile(prog.Expr)
	if err != nil {
		return fmt.Errorf("compile %s: %w", prog.Name, err)
	}

	loaded, err := vm.Load(listing)
	if err != nil {
		return fmt.Errorf("load %s: %w", prog.Name, err)
	}

	if listOnly {
		fmt.Print(vm.FormatProgram(loaded))
		return nil
	}

	machine := vm.New(loaded, cfg)

	var status vm.Status
	if debug {
		dbg := vm.NewDebugger(machine)
		for machine.Status == vm.StatusRunning {
			if err = dbg.StepOnce(); err != nil {
				break
			}
		}
		status = machine.Status
	} else {
		status, err = machine.Run()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", prog.Name, err)
	}

	switch status {
	case vm.StatusHalted:
		val, derr := machine.Result()
		if derr != nil {
			return fmt.Errorf("%s: %w", prog.Name, derr)
		}
		fmt.Printf("%s => %s\n", prog.Name, val)
		return nil
	default:
		return fmt.Errorf("%s: terminated with status %s", prog.Name, status)
	}
}
