// Package main provides the loom graph import CLI.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/loom-ml/loom/graphdef"
)

const version = "v0.1.0-dev"

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return
	}

	switch args[0] {
	case "version":
		fmt.Printf("loom %s\n", version)
	case "ops":
		for _, kind := range graphdef.ListSupportedOps() {
			fmt.Println(kind)
		}
	case "inspect":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		inspect(args[1])
	case "check":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		check(args[1])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("loom - GraphDef import and shape inference")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version           Show version")
	fmt.Println("  ops               List supported operator kinds")
	fmt.Println("  inspect <graph>   Summarize a serialized graph")
	fmt.Println("  check <graph>     Translate a graph and print edge facts")
}

func inspect(path string) {
	info := must.M1(graphdef.ReadGraphInfo(path))
	fmt.Printf("producer version: %d\n", info.ProducerVersion)
	fmt.Printf("nodes: %d\n", info.NodeCount)
	fmt.Printf("inputs: %v\n", info.InputNames)
	fmt.Printf("outputs: %v\n", info.OutputNames)
	fmt.Println("operator kinds:")
	for _, kind := range info.OpKinds {
		fmt.Printf("  %s\n", kind)
	}
}

func check(path string) {
	model := must.M1(graphdef.Load(path))
	fmt.Printf("operators: %d\n", model.NumNodes())
	for _, name := range model.InputNames() {
		o, _ := model.Input(name)
		fmt.Printf("input  %-20s %s\n", name, model.Fact(o))
	}
	for _, name := range model.OutputNames() {
		o, _ := model.Output(name)
		fmt.Printf("output %-20s %s\n", name, model.Fact(o))
	}
}
