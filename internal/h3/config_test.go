package h3

import (
	"reflect"
	"testing"
)

func TestConfigForSize(t *testing.T) {
	tests := []struct {
		size   Size
		hidden int
		layers int
		heads  int
		attn   []int
	}{
		{Size125M, 768, 12, 12, []int{6}},
		{Size355M, 1024, 24, 16, []int{8, 16}},
		{Size1_3B, 2048, 24, 16, []int{8, 16}},
		{Size2_7B, 2560, 32, 20, []int{8, 16, 24}},
	}
	for _, tt := range tests {
		t.Run(tt.size.String(), func(t *testing.T) {
			cfg, err := ConfigForSize(tt.size)
			if err != nil {
				t.Fatalf("ConfigForSize: %v", err)
			}
			if cfg.HiddenSize != tt.hidden {
				t.Errorf("HiddenSize = %d, want %d", cfg.HiddenSize, tt.hidden)
			}
			if cfg.NumHiddenLayers != tt.layers {
				t.Errorf("NumHiddenLayers = %d, want %d", cfg.NumHiddenLayers, tt.layers)
			}
			if cfg.NumAttentionHeads != tt.heads {
				t.Errorf("NumAttentionHeads = %d, want %d", cfg.NumAttentionHeads, tt.heads)
			}
			if !reflect.DeepEqual(cfg.AttnLayerIdx, tt.attn) {
				t.Errorf("AttnLayerIdx = %v, want %v", cfg.AttnLayerIdx, tt.attn)
			}
			if cfg.VocabSize != 50257 {
				t.Errorf("VocabSize = %d, want 50257", cfg.VocabSize)
			}
			if cfg.PaddedVocabSize() != 50264 {
				t.Errorf("PaddedVocabSize = %d, want 50264", cfg.PaddedVocabSize())
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	for _, name := range SizeNames() {
		s, err := ParseSize(name)
		if err != nil {
			t.Fatalf("ParseSize(%q): %v", name, err)
		}
		if s.String() != name {
			t.Errorf("round trip %q -> %v", name, s)
		}
	}

	if _, err := ParseSize("H3-6.7b"); err == nil {
		t.Error("ParseSize accepted an unknown size")
	}
	if _, err := ParseSize(""); err == nil {
		t.Error("ParseSize accepted an empty size")
	}
}

func TestCheckpointLocation(t *testing.T) {
	tests := []struct {
		size Size
		repo string
		file string
	}{
		{Size125M, "danfu09/H3-125M", "model.pt"},
		{Size355M, "danfu09/H3-355M", "model.pt"},
		{Size1_3B, "danfu09/H3-1.3B", "model.pt"},
		{Size2_7B, "danfu09/H3-2.7B", "model-3attn.pt"},
	}
	for _, tt := range tests {
		repo, file := tt.size.Checkpoint()
		if repo != tt.repo || file != tt.file {
			t.Errorf("%v.Checkpoint() = %s/%s, want %s/%s", tt.size, repo, file, tt.repo, tt.file)
		}
	}
}

func TestIsAttnLayer(t *testing.T) {
	cfg, err := ConfigForSize(Size355M)
	if err != nil {
		t.Fatal(err)
	}
	attn := 0
	for i := 0; i < cfg.NumHiddenLayers; i++ {
		if cfg.IsAttnLayer(i) {
			attn++
		}
	}
	if attn != 2 {
		t.Errorf("355m has %d attention layers, want 2", attn)
	}
	if cfg.IsAttnLayer(0) || !cfg.IsAttnLayer(8) {
		t.Error("attention layer placement wrong")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	base, err := ConfigForSize(Size125M)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero hidden", func(c *Config) { c.HiddenSize = 0 }},
		{"indivisible heads", func(c *Config) { c.NumAttentionHeads = 7 }},
		{"attn idx out of range", func(c *Config) { c.AttnLayerIdx = []int{99} }},
		{"zero vocab", func(c *Config) { c.VocabSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}
