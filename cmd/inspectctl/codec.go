package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/link"
	"github.com/danmuck/inspectctl/internal/protocol/frame"
	"github.com/danmuck/inspectctl/internal/resolver"
)

var errArgs = errors.New("expected exactly one argument")

func runDecode(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	verify := fs.Bool("verify", false, "fail when the trailing checksum does not match")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errArgs
	}

	info, err := link.Classify(fs.Arg(0))
	if err != nil {
		return err
	}
	if *verify && info.Masked() {
		buf, err := hex.DecodeString(info.Hex)
		if err != nil {
			return fmt.Errorf("%w: %v", frame.ErrInvalidChecksumFraming, err)
		}
		if err := frame.Verify(buf); err != nil {
			return err
		}
	}

	// offline: no game session, so unmasked links report ErrNoSession
	res, err := resolver.New(resolver.DefaultConfig(), nil, nil).Decode(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	return writeJSON(stdout, res)
}

func runEncode(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	hexOnly := fs.Bool("hex", false, "print the hex payload instead of the link")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errArgs
	}

	var raw io.Reader = strings.NewReader(fs.Arg(0))
	if fs.Arg(0) == "-" {
		raw = stdin
	}
	var rec item.Record
	dec := json.NewDecoder(raw)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return fmt.Errorf("parse record: %w", err)
	}

	if *hexOnly {
		_, err := fmt.Fprintln(stdout, frame.EncodeHex(rec))
		return err
	}
	_, err := fmt.Fprintln(stdout, frame.Encode(rec))
	return err
}

func runClassify(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errArgs
	}
	info, err := link.Classify(args[0])
	if err != nil {
		return err
	}
	return writeJSON(stdout, info)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
