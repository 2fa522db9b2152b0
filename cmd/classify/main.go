package main

import "bufio"
import "encoding/json"
import "os"

import "github.com/alexflint/go-arg"
import "go.uber.org/zap"

import "github.com/neurlang/finetune/datasets/topics"
import "github.com/neurlang/finetune/device"
import "github.com/neurlang/finetune/inference"
import "github.com/neurlang/finetune/logging"

func main() {
	args := struct {
		Checkpoint string   `arg:"-m,--checkpoint,required" help:"checkpoint directory, e.g. finetune-out/run-000/final"`
		Device     string   `arg:"--device" help:"auto, cpu or avx512"`
		Topics     bool     `arg:"--topics" help:"name the classes of the built-in topics corpus"`
		Texts      []string `arg:"positional"`
	}{
		Device: "auto",
	}
	arg.MustParse(&args)

	log := logging.New(false, false)
	defer log.Sync()

	kind, err := device.Parse(args.Device)
	if err != nil {
		log.Fatal("device", zap.Error(err))
	}
	dev, err := device.Probe(kind)
	if err != nil {
		log.Fatal("device", zap.Error(err))
	}
	c, err := inference.Load(args.Checkpoint, dev)
	if err != nil {
		log.Fatal("checkpoint", zap.Error(err))
	}
	if args.Topics {
		c.Names = topics.Names
	}

	texts := args.Texts
	if len(texts) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			texts = append(texts, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			log.Fatal("stdin", zap.Error(err))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	for _, p := range c.ClassifyAll(texts) {
		if err := enc.Encode(p); err != nil {
			log.Fatal("write", zap.Error(err))
		}
	}
}
