package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hippo/internal/checkpoint"
	"github.com/samcharles93/hippo/internal/convert"
	"github.com/samcharles93/hippo/internal/h3"
	"github.com/samcharles93/hippo/internal/hub"
	"github.com/samcharles93/hippo/internal/logger"
	"github.com/samcharles93/hippo/internal/safetensors"
	"github.com/samcharles93/hippo/internal/tokenizer"
	"github.com/samcharles93/hippo/internal/verify"
)

func convertCmd() *cli.Command {
	var (
		modelName string
		outputDir string
		push      bool
		pushOwner string
		saveDtype string
		cacheDir  string
		hfToken   string
		noSample  bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "model size to convert (H3-125m, H3-355m, H3-1.3b, H3-2.7b)",
			Required:    true,
			Destination: &modelName,
		},
		&cli.StringFlag{
			Name:        "output-dir",
			Aliases:     []string{"o"},
			Usage:       "directory to write config.json and model.safetensors",
			Destination: &outputDir,
		},
		&cli.BoolFlag{
			Name:        "push",
			Usage:       "push the converted model to the hub",
			Destination: &push,
		},
		&cli.StringFlag{
			Name:        "push-owner",
			Usage:       "hub namespace to push under",
			Value:       "nielsr",
			Destination: &pushOwner,
		},
		&cli.StringFlag{
			Name:        "save-dtype",
			Usage:       "tensor dtype for saved weights (f32, f16, bf16)",
			Value:       "f32",
			Destination: &saveDtype,
		},
		&cli.StringFlag{
			Name:        "cache-dir",
			Usage:       "checkpoint download cache directory",
			Destination: &cacheDir,
		},
		&cli.StringFlag{
			Name:        "hf-token",
			Usage:       "hub API token (also read from HF_TOKEN)",
			Destination: &hfToken,
		},
		&cli.BoolFlag{
			Name:        "no-sample",
			Usage:       "skip the greedy generation sample",
			Destination: &noSample,
		},
	}
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "convert",
		Usage: "Download, convert, verify and export an H3 checkpoint",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			applyConfig(c, LoadConfig(), &cacheDir, &hfToken, &pushOwner)
			if hfToken == "" {
				hfToken = os.Getenv("HF_TOKEN")
			}
			log := newLogger()

			size, err := h3.ParseSize(modelName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg, err := h3.ConfigForSize(size)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			dtype, err := parseDtype(saveDtype)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			client := hub.New(hub.Options{
				Token:    hfToken,
				CacheDir: cacheDir,
				Logger:   log,
			})

			repo, filename := size.Checkpoint()
			path, err := client.Download(ctx, repo, filename)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: download checkpoint: %v", err), 1)
			}

			log.Info("loading checkpoint", "path", path)
			st, err := checkpoint.LoadTorch(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load checkpoint: %v", err), 1)
			}
			log.Debug("checkpoint loaded", "tensors", st.Len())

			converted, err := convert.Run(st, cfg.NumHiddenLayers)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: convert state dict: %v", err), 1)
			}

			model, err := h3.New(cfg)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if err := model.LoadState(converted); err != nil {
				return cli.Exit(fmt.Sprintf("error: load state: %v", err), 1)
			}
			model.Eval()
			log.Info("model loaded", "size", size.String(), "layers", cfg.NumHiddenLayers)

			logits, err := verify.Logits(model, size)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if verify.HasReference(size) {
				log.Info("logits verified", "first", logits[0], "second", logits[1], "third", logits[2])
			} else {
				log.Info("no reference logits for this size, check skipped",
					"first", logits[0], "second", logits[1], "third", logits[2])
			}

			if !noSample {
				sampleGeneration(ctx, client, model, log)
			}

			if outputDir != "" {
				if err := model.Save(outputDir, dtype); err != nil {
					return cli.Exit(fmt.Sprintf("error: save model: %v", err), 1)
				}
				log.Info("model saved", "dir", outputDir, "dtype", string(dtype))
			}

			if push {
				pushRepo := pushOwner + "/" + size.String()
				if err := model.Push(ctx, client, pushRepo, dtype); err != nil {
					return cli.Exit(fmt.Sprintf("error: push model: %v", err), 1)
				}
				log.Info("model pushed", "repo", pushRepo)
			}
			return nil
		},
	}
}

// sampleGeneration runs the greedy generation demo. Failures here do not fail
// the conversion; the logit check is the authoritative gate.
func sampleGeneration(ctx context.Context, client *hub.Client, model *h3.Model, log logger.Logger) {
	tok, err := tokenizer.Load(ctx, client)
	if err != nil {
		log.Warn("skipping generation sample", "err", err)
		return
	}
	log.Info("generating", "prompt", verify.SamplePrompt, "new_tokens", verify.SampleNewTokens)
	text, err := verify.Sample(model, tok, verify.SamplePrompt, verify.SampleNewTokens)
	if err != nil {
		log.Warn("generation sample failed", "err", err)
		return
	}
	fmt.Println(text)
}

func parseDtype(s string) (safetensors.DType, error) {
	switch s {
	case "f32":
		return safetensors.DTypeF32, nil
	case "f16":
		return safetensors.DTypeF16, nil
	case "bf16":
		return safetensors.DTypeBF16, nil
	}
	return "", fmt.Errorf("unknown save dtype %q (expected f32, f16 or bf16)", s)
}
