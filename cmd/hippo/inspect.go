package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hippo/internal/checkpoint"
	"github.com/samcharles93/hippo/internal/safetensors"
)

func inspectCmd() *cli.Command {
	var (
		filePath string
		filter   string
		limit    int64
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "List the tensors of a .pt or .safetensors file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "path to checkpoint file",
				Required:    true,
				Destination: &filePath,
			},
			&cli.StringFlag{
				Name:        "filter",
				Usage:       "substring filter for tensor names",
				Destination: &filter,
			},
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "limit listing (0 = no limit)",
				Destination: &limit,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if strings.HasSuffix(filePath, ".safetensors") {
				return inspectSafetensors(filePath, filter, int(limit))
			}
			return inspectTorch(filePath, filter, int(limit))
		},
	}
}

func inspectTorch(path, filter string, limit int) error {
	st, err := checkpoint.LoadTorch(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: load checkpoint: %v", err), 1)
	}

	var total, shown int
	for _, name := range st.Names() {
		t, _ := st.Get(name)
		total += t.NumElements()
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		if limit > 0 && shown >= limit {
			continue
		}
		fmt.Printf("%-60s f32 %v\n", name, t.Shape)
		shown++
	}
	fmt.Printf("%d tensors, %d parameters\n", st.Len(), total)
	return nil
}

func inspectSafetensors(path, filter string, limit int) error {
	f, err := safetensors.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: open safetensors: %v", err), 1)
	}
	defer func() { _ = f.Close() }()

	names := f.Names()
	var total, shown int
	for _, name := range names {
		t, ok := f.Tensor(name)
		if !ok {
			continue
		}
		n := 1
		for _, d := range t.Shape {
			n *= d
		}
		total += n
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		if limit > 0 && shown >= limit {
			continue
		}
		fmt.Printf("%-60s %-4s %v\n", name, t.DType, t.Shape)
		shown++
	}
	fmt.Printf("%d tensors, %d parameters\n", len(names), total)
	return nil
}
