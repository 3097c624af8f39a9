package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/danmuck/inspectctl/internal/config"
)

func runConfig(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("expected init or validate")
	}
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("config", "inspectctl.toml", "config path")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "init":
		if err := config.WriteTemplate(*path, *force); err != nil {
			return err
		}
		_, err := fmt.Fprintf(stdout, "wrote %s\n", *path)
		return err
	case "validate":
		cfg, err := config.Load(*path)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "valid: listen=%s gateway=%t cache=%s\n", cfg.HTTP.ListenAddr, cfg.GatewayEnabled(), cfg.Cache.Type)
		return err
	default:
		return fmt.Errorf("unknown config action %q", args[0])
	}
}
