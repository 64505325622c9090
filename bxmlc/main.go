package main

import (
	"bytes"
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/avast/binres"
)

func main() {
	decode := flag.Bool("d", false, "Decode a compiled binary xml or resource table instead of compiling")
	jar := flag.String("jar", "", "Android platform jar or apk used to resolve symbolic attribute values")
	out := flag.String("o", "", "Output file (default stdout)")

	flag.Parse()

	if len(flag.Args()) != 1 {
		fmt.Fprintf(os.Stderr, "%s [-d] [-jar android.jar] [-o OUTPUT] INPUT\n", os.Args[0])
		os.Exit(1)
	}
	input := flag.Args()[0]

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	var err error
	if *decode {
		err = decodeFile(w, input)
	} else {
		err = compileFile(w, input, *jar)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func decodeFile(w io.Writer, input string) error {
	var data []byte
	var err error
	if strings.HasSuffix(input, ".apk") {
		data, err = binres.ExtractManifest(input)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return err
	}

	c, err := binres.ParseChunk(bytes.NewReader(data))
	if err != nil {
		return err
	}

	if c.IsTable() {
		return binres.DumpTable(c, w)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := binres.DecodeXML(c, enc); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func compileFile(w io.Writer, input, jar string) error {
	var r io.Reader
	if input == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	var table *binres.ResourceTable
	if jar != "" {
		table = new(binres.ResourceTable)
		if err := table.ImportApk(jar); err != nil {
			return err
		}
	}

	c, err := binres.CompileXML(r, table)
	if err != nil {
		return err
	}
	data, err := c.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
