package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nikandfor/errors"
	"nikand.dev/go/cli"
	"github.com/nikandfor/tlog"

	"github.com/VodBox/jak-project/decompiler/cfgbuild"
	"github.com/VodBox/jak-project/decompiler/dump"
	"github.com/VodBox/jak-project/decompiler/format"
)

func main() {
	formsCmd := &cli.Command{
		Name:        "forms",
		Description: "build the initial form tree of a function dump",
		Action:      formsAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "decomp",
		Description: "decomp works on function dumps of the decompiler pipeline",
		Commands: []*cli.Command{
			formsCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func formsAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		f, err := dump.LoadFile(a)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		cfgbuild.BuildInitialForms(ctx, f)

		if f.IR2.TopForm == nil {
			fmt.Printf("%s: no forms\n", f.Name)
			continue
		}

		b, err := format.Form(nil, f.IR2.TopForm)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		fmt.Printf("%s: %s\n", f.Name, b)
	}

	return nil
}
