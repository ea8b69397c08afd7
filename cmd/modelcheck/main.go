package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/tsawler/go-metal/checkpoints"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/eyegaze/internal/inference"
)

func main() {
	libPath := flag.String("lib", "", "ONNX Runtime shared library (default: lib/ for this OS)")
	metal := flag.Bool("metal", false, "Also try importing the model with go-metal")
	flag.Usage = func() {
		fmt.Println("Usage: modelcheck [--lib path] [--metal] <model.onnx>")
		fmt.Println("\nThis tool checks a model loads and prints its tensors.")
		fmt.Println("\nExamples:")
		fmt.Println("  go run ./cmd/modelcheck models/eye_landmarks.onnx")
		fmt.Println("  go run ./cmd/modelcheck --metal models/eye_landmarks.onnx")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	modelPath := flag.Arg(0)
	fmt.Printf("Checking ONNX model: %s\n", modelPath)

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		fmt.Printf("Error: File not found: %s\n", modelPath)
		os.Exit(1)
	}

	ok := checkRuntime(*libPath, modelPath)
	if *metal {
		ok = checkMetal(modelPath) && ok
	}
	if !ok {
		os.Exit(1)
	}
}

// checkRuntime prints the model's inputs, outputs and metadata
func checkRuntime(libPath, modelPath string) bool {
	fmt.Println("\nInitializing ONNX Runtime...")
	if err := inference.Initialize(libPath); err != nil {
		fmt.Printf("FAILED: %v\n", err)
		return false
	}
	defer inference.Shutdown()

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		fmt.Printf("FAILED to get model info: %v\n", err)
		return false
	}

	fmt.Printf("\nInputs (%d):\n", len(inputs))
	printInfo(inputs)
	fmt.Printf("\nOutputs (%d):\n", len(outputs))
	printInfo(outputs)

	fmt.Println("\nMetadata:")
	metadata, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		fmt.Printf("  (Could not read metadata: %v)\n", err)
		return true
	}
	defer metadata.Destroy()
	if producer, err := metadata.GetProducerName(); err == nil {
		fmt.Printf("  Producer: %s\n", producer)
	}
	if version, err := metadata.GetVersion(); err == nil {
		fmt.Printf("  Version: %d\n", version)
	}
	if domain, err := metadata.GetDomain(); err == nil {
		fmt.Printf("  Domain: %s\n", domain)
	}
	if desc, err := metadata.GetDescription(); err == nil {
		fmt.Printf("  Description: %s\n", desc)
	}
	return true
}

func printInfo(infos []ort.InputOutputInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	for _, info := range infos {
		fmt.Printf("  %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}
}

// checkMetal reports whether go-metal can import the model's layers
func checkMetal(modelPath string) bool {
	fmt.Println("\nAttempting to import with go-metal...")
	importer := checkpoints.NewONNXImporter()
	checkpoint, err := importer.ImportFromONNX(modelPath)
	if err != nil {
		fmt.Printf("FAILED to import ONNX model: %v\n", err)
		fmt.Println("go-metal only supports: Conv, MatMul, Add, Relu, LeakyRelu,")
		fmt.Println("Sigmoid, Tanh, BatchNorm, Dropout, Softmax, Flatten")
		return false
	}

	fmt.Printf("Imported %d layers, %d weight tensors\n",
		len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Printf("  %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
	return true
}
