package jkspec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const minimalDoc = `
JKSPEC 1
COMPONENT "dl" "Source" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {
    DATA_REF { observation_spec: "btc_1h" }
  }
}
COMPONENT "enc" "Wikimyei" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {
    OPTIMIZER Adam { lr: 0.001 }
    LR_SCHEDULER StepLR { step_size: 10 }
    LOSS VicReg { lambda_sim: 25.0 lambda_std: 25.0 lambda_cov: 1.0 }
    COMPONENT_PARAMS {
      encoder_hidden_dims: [64, 128]
      encoder_depth: 3
      channel_expansion_dim: 16
      fused_feature_dim: 32
      projector_mlp_spec: "128-256-128"
      augmentation_set: "aug1"
    }
    REPRODUCIBILITY { seed: 7 workers: 4 }
  }
  AUGMENTATIONS "aug1" {
    MarketFade {
      curve_param: 5.0
      noise_scale: 0.1
      smoothing_kernel_size: 5
    }
  }
}
COMPONENT "sink" "Sink" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {}
}
`

func TestDecodeMinimalDocument(t *testing.T) {
	tables, err := Decode(minimalDoc, DefaultSchemaIndex())
	require.NoError(t, err)
	require.Len(t, tables.Components, 3)
	require.Len(t, tables.ComponentProfiles, 3)

	enc, ok := tables.ComponentByID("enc")
	require.True(t, ok)
	require.Equal(t, "enc@default::optimizer", enc.Optimizer)
	require.Equal(t, "enc@default::scheduler", enc.LRScheduler)
	require.Equal(t, "enc@default::loss", enc.LossFunction)

	aug := tables.AugmentationsBySet("enc", "aug1")
	require.Len(t, aug, 1)
	require.Equal(t, "MarketFade", aug[0].Kind)
}

func TestSchemaViolationReportsKeyAndKind(t *testing.T) {
	doc := `
JKSPEC 1
COMPONENT "dl" "Source" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {
    REPRODUCIBILITY { workers: nope }
  }
}
`
	_, err := Decode(doc, DefaultSchemaIndex())
	require.Error(t, err)
	require.ErrorContains(t, err, "workers")
	require.ErrorContains(t, err, "Int")
}

func TestDuplicateRowIDIsRejected(t *testing.T) {
	doc := `
JKSPEC 1
COMPONENT "dl" "Source" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {}
}
COMPONENT "dl" "Sink" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {}
}
`
	_, err := NewParser(doc).Parse()
	require.Error(t, err)
}

func TestTimeMaskBandFracOneIsRejected(t *testing.T) {
	doc := `
JKSPEC 1
COMPONENT "enc" "Wikimyei" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {
    OPTIMIZER Adam { lr: 0.001 }
    LR_SCHEDULER StepLR { step_size: 10 }
    LOSS VicReg { lambda_sim: 1.0 lambda_std: 1.0 lambda_cov: 1.0 }
    COMPONENT_PARAMS {
      encoder_hidden_dims: [64]
      encoder_depth: 1
      channel_expansion_dim: 8
      fused_feature_dim: 8
      projector_mlp_spec: "64-64"
    }
  }
  AUGMENTATIONS "aug1" {
    Linear {
      curve_param: 1.0
      noise_scale: 0.1
      smoothing_kernel_size: 1
      time_mask_band_frac: 1.0
    }
  }
}
`
	_, err := Decode(doc, DefaultSchemaIndex())
	require.Error(t, err)
	require.ErrorContains(t, err, "time_mask_band_frac")
}

func TestUnterminatedBlockComment(t *testing.T) {
	doc := "JKSPEC 1 /* never closed"
	_, err := NewParser(doc).Parse()
	require.Error(t, err)
}

func TestMissingActiveProfile(t *testing.T) {
	doc := `
JKSPEC 1
COMPONENT "dl" "Source" {
  PROFILE "default" {}
}
`
	_, err := NewParser(doc).Parse()
	require.Error(t, err)
}
