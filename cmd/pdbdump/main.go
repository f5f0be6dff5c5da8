// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	pdbparser "github.com/saferwall/pdb"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	types   bool
	globals bool
	jsonOut bool
	packFmt bool
	imageBase uint64
)

func isDirectory(path string) bool {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fileInfo.IsDir()
}

func renderMode() pdbparser.RenderMode {
	switch {
	case jsonOut:
		return pdbparser.RenderJSON
	case packFmt:
		return pdbparser.RenderPackFormat
	default:
		return pdbparser.RenderHuman
	}
}

func dumpOne(filename string) {
	log.Printf("Processing filename %s", filename)

	p, err := pdbparser.OpenFile(filename, &pdbparser.Options{ImageBase: imageBase})
	if err != nil {
		log.Printf("Error while opening file: %s, reason: %s", filename, err)
		return
	}
	defer p.Close()

	mode := renderMode()
	var sink pdbparser.JSONSink
	if mode == pdbparser.RenderJSON {
		sink = pdbparser.NewWriterJSONSink(os.Stdout)
		sink.OpenObject()
		defer sink.End()
	}

	if types {
		if err := p.PrintTypes(mode, os.Stdout, sink); err != nil {
			log.Printf("failed to print types for %s: %v", filename, err)
		}
	}

	if globals {
		if err := p.PrintGlobals(imageBase, mode, os.Stdout, sink, nil); err != nil {
			log.Printf("failed to print globals for %s: %v", filename, err)
		}
	}

	for _, a := range p.Anomalies {
		if verbose {
			log.Printf("anomaly: %s", a)
		}
	}
}

func dump(cmd *cobra.Command, args []string) {
	filePath := args[0]

	if !isDirectory(filePath) {
		dumpOne(filePath)
		return
	}

	var fileList []string
	filepath.Walk(filePath, func(path string, f os.FileInfo, err error) error {
		if err == nil && !isDirectory(path) {
			fileList = append(fileList, path)
		}
		return nil
	})
	for _, file := range fileList {
		dumpOne(file)
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "pdbdump",
		Short: "A Microsoft Program Database (PDB) file parser",
		Long:  "A PDB parser built for type and symbol introspection, by Saferwall",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Long:  "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("You are using version 0.0.1")
		},
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dumps the file",
		Long:  "Dumps types and global symbols out of a PDB file",
		Args:  cobra.MinimumNArgs(1),
		Run:   dump,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	dumpCmd.Flags().BoolVarP(&types, "types", "", false, "Dump the type graph")
	dumpCmd.Flags().BoolVarP(&globals, "globals", "", false, "Dump global symbols")
	dumpCmd.Flags().BoolVarP(&jsonOut, "json", "", false, "Render in JSON")
	dumpCmd.Flags().BoolVarP(&packFmt, "pack-format", "", false, "Render as rizin/radare2 pf descriptors")
	dumpCmd.Flags().Uint64VarP(&imageBase, "image-base", "", 0, "Image base to add to resolved RVAs")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
