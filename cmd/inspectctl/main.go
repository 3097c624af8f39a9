package main

import (
	"fmt"
	"io"
	"os"
)

const usage = `usage: inspectctl <command> [flags]

commands:
  decode   [-verify] <link|hex>   decode a masked inspect link
  encode   [-hex] <json|->        encode an item record as a masked link
  classify <link>                 report link kind and reference
  serve    [-config path]         run the HTTP API
  config   init|validate [-config path] [-force]
  gateway-sim [-listen addr] [-fixtures path]   run a local gateway simulator
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "decode":
		err = runDecode(args[1:], stdout)
	case "encode":
		err = runEncode(args[1:], stdin, stdout)
	case "classify":
		err = runClassify(args[1:], stdout)
	case "serve":
		err = runServe(args[1:])
	case "config":
		err = runConfig(args[1:], stdout)
	case "gateway-sim":
		err = runGatewaySim(args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "inspectctl: unknown command %q\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "inspectctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}
