// Package main provides the TabNet ML Framework CLI.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/tabnet-ml/tabnet/data"
	"github.com/tabnet-ml/tabnet/device"
	"github.com/tabnet-ml/tabnet/internal/persist"
	"github.com/tabnet-ml/tabnet/loss"
	"github.com/tabnet-ml/tabnet/nn"
	"github.com/tabnet-ml/tabnet/optim"
	"github.com/tabnet-ml/tabnet/train"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "version":
		fmt.Printf("TabNet ML Framework %s\n", version)
	case "train":
		if err := runTrain(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "tabnet: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("TabNet ML Framework - Neural networks for tabular data")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  train      Train a network on a CSV data set")
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	dataPath := fs.String("data", "", "CSV data set path")
	header := fs.Bool("header", true, "first CSV row holds variable names")
	targets := fs.Int("targets", 1, "number of target columns (rightmost)")
	modelType := fs.String("model", "Approximation", "model type")
	architecture := fs.String("architecture", "", "comma-separated layer sizes, e.g. 4,8,1")
	strategyPath := fs.String("strategy", "", "TrainingStrategy document (JSON); defaults to quasi-Newton with mean squared error")
	outPath := fs.String("out", "", "write the trained network document here")
	seed := fs.Int64("seed", 1, "random seed")
	showExpression := fs.Bool("expression", false, "print the trained network's expression")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataPath == "" {
		return fmt.Errorf("missing -data")
	}

	set, err := data.LoadCSV(*dataPath, data.LoadCSVOptions{Header: *header, Targets: *targets})
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(*seed))
	if err := set.SplitRandom(0.6, 0.2, 0.2, rng); err != nil {
		return err
	}

	kind, ok := nn.ParseModelType(*modelType)
	if !ok {
		return fmt.Errorf("unknown model type %q", *modelType)
	}
	arch, err := parseArchitecture(*architecture, set)
	if err != nil {
		return err
	}

	network := nn.NewNetwork(kind, arch, rng)
	if scaling, ok := network.FirstLayerOfKind(nn.ScalingKind).(*nn.Scaling); ok {
		scaling.SetDescriptives(set.InputDescriptives())
	}
	if unscaling, ok := network.FirstLayerOfKind(nn.UnscalingKind).(*nn.Unscaling); ok {
		unscaling.SetDescriptives(set.TargetDescriptives())
	}
	network.SetInputNames(set.InputNames())
	network.SetOutputNames(set.TargetNames())

	strategy := train.NewStrategy(network, set, loss.MeanSquaredError, &optim.QuasiNewton{})
	if *strategyPath != "" {
		loaded := &train.Strategy{}
		if err := persist.Load(*strategyPath, loaded); err != nil {
			return err
		}
		loaded.Bind(network, set)
		strategy = loaded
	}

	dev := device.Default()
	results, err := strategy.Perform(dev)
	if err != nil {
		return err
	}

	fmt.Printf("epochs: %d\n", results.Epochs)
	fmt.Printf("stopping: %s\n", results.Stopping)
	fmt.Printf("training loss: %g\n", results.FinalTrainingLoss)
	if len(results.SelectionLossHistory) > 0 {
		fmt.Printf("selection loss: %g\n", results.FinalSelectionLoss)
	}

	if *outPath != "" {
		if err := persist.Save(*outPath, network); err != nil {
			return err
		}
		fmt.Printf("model written to %s\n", *outPath)
	}
	if *showExpression {
		fmt.Println(network.Expression())
	}
	return nil
}

// parseArchitecture reads "4,8,1"; empty defaults to one hidden layer as
// wide as the inputs.
func parseArchitecture(s string, set *data.Set) ([]int, error) {
	inputs := len(set.InputIndices())
	outputs := len(set.TargetIndices())
	if s == "" {
		return []int{inputs, inputs, outputs}, nil
	}
	parts := strings.Split(s, ",")
	arch := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("bad architecture %q", s)
		}
		arch[i] = n
	}
	if arch[0] != inputs || arch[len(arch)-1] != outputs {
		return nil, fmt.Errorf("architecture %v does not match %d inputs and %d outputs", arch, inputs, outputs)
	}
	return arch, nil
}
