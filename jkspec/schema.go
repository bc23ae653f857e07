package jkspec

// ValueKind is the typed schema kind a key's value must match.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindIntList
	KindFloatList
	KindStringList
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindIntList:
		return "IntList"
	case KindFloatList:
		return "FloatList"
	case KindStringList:
		return "StringList"
	default:
		return "Unknown"
	}
}

// KeySchema declares one key's type and whether it is required.
type KeySchema struct {
	Kind     ValueKind
	Required bool
}

// OwnerSchema is the set of declared keys for one block owner (e.g.
// "optimizer.Adam", "reproducibility", "augmentation.curve").
type OwnerSchema struct {
	Keys map[string]KeySchema
}

func owner(keys map[string]KeySchema) OwnerSchema { return OwnerSchema{Keys: keys} }

func req(k ValueKind) KeySchema  { return KeySchema{Kind: k, Required: true} }
func opt(k ValueKind) KeySchema  { return KeySchema{Kind: k, Required: false} }

// SchemaIndex is the closed set of owner schemas, derived from the
// type-registry manifest for component-kind owners plus the fixed set of
// optimizer/scheduler/loss/augmentation-curve/profile-family owners.
type SchemaIndex struct {
	owners map[string]OwnerSchema
}

// DefaultSchemaIndex builds the standard schema index for every owner kind
// named in §4.2/§4.6.
func DefaultSchemaIndex() *SchemaIndex {
	s := &SchemaIndex{owners: make(map[string]OwnerSchema)}

	// Optimizers.
	s.owners["optimizer.SGD"] = owner(map[string]KeySchema{
		"lr": req(KindFloat), "momentum": opt(KindFloat), "weight_decay": opt(KindFloat), "nesterov": opt(KindBool),
	})
	s.owners["optimizer.Adam"] = owner(map[string]KeySchema{
		"lr": req(KindFloat), "beta1": opt(KindFloat), "beta2": opt(KindFloat), "eps": opt(KindFloat), "weight_decay": opt(KindFloat),
	})
	s.owners["optimizer.AdamW"] = s.owners["optimizer.Adam"]
	s.owners["optimizer.RMSprop"] = owner(map[string]KeySchema{
		"lr": req(KindFloat), "alpha": opt(KindFloat), "eps": opt(KindFloat), "momentum": opt(KindFloat), "weight_decay": opt(KindFloat),
	})
	s.owners["optimizer.Adagrad"] = owner(map[string]KeySchema{
		"lr": req(KindFloat), "lr_decay": opt(KindFloat), "weight_decay": opt(KindFloat), "eps": opt(KindFloat),
	})

	// Schedulers.
	s.owners["scheduler.ConstantLR"] = owner(map[string]KeySchema{"factor": opt(KindFloat), "total_iters": opt(KindInt)})
	s.owners["scheduler.StepLR"] = owner(map[string]KeySchema{"step_size": req(KindInt), "gamma": opt(KindFloat)})
	s.owners["scheduler.MultiStepLR"] = owner(map[string]KeySchema{"milestones": req(KindIntList), "gamma": opt(KindFloat)})
	s.owners["scheduler.ExponentialLR"] = owner(map[string]KeySchema{"gamma": req(KindFloat)})
	s.owners["scheduler.ReduceLROnPlateau"] = owner(map[string]KeySchema{
		"mode": opt(KindString), "factor": opt(KindFloat), "patience": opt(KindInt), "threshold": opt(KindFloat),
	})
	s.owners["scheduler.OneCycleLR"] = owner(map[string]KeySchema{"max_lr": req(KindFloat), "total_steps": req(KindInt)})
	s.owners["scheduler.CosineAnnealingLR"] = owner(map[string]KeySchema{"t_max": req(KindInt), "eta_min": opt(KindFloat)})
	s.owners["scheduler.WarmupLR"] = owner(map[string]KeySchema{"warmup_steps": req(KindInt), "base_lr": req(KindFloat)})

	// Losses.
	s.owners["loss.VicReg"] = owner(map[string]KeySchema{
		"lambda_sim": req(KindFloat), "lambda_std": req(KindFloat), "lambda_cov": req(KindFloat), "std_target": opt(KindFloat),
	})
	s.owners["loss.MeanSquaredError"] = owner(map[string]KeySchema{"reduction": opt(KindString)})
	s.owners["loss.CrossEntropy"] = owner(map[string]KeySchema{"label_smoothing": opt(KindFloat), "reduction": opt(KindString)})

	// Component-kind parameter owners.
	s.owners["component.Source"] = owner(map[string]KeySchema{})
	s.owners["component.Wikimyei"] = owner(map[string]KeySchema{
		"encoder_hidden_dims": req(KindIntList), "encoder_depth": req(KindInt),
		"channel_expansion_dim": req(KindInt), "fused_feature_dim": req(KindInt),
		"projector_mlp_spec": req(KindString), "projector_norm": opt(KindString),
		"projector_activation": opt(KindString), "dtype": opt(KindString),
		"enable_buffer_averaging": opt(KindBool), "augmentation_set": opt(KindString),
	})
	s.owners["component.Sink"] = owner(map[string]KeySchema{})

	// Profile family owners.
	s.owners["reproducibility"] = owner(map[string]KeySchema{"seed": req(KindInt), "deterministic": opt(KindBool), "workers": opt(KindInt)})
	s.owners["numerics"] = owner(map[string]KeySchema{"dtype": opt(KindString), "bn_fp32": opt(KindBool)})
	s.owners["gradient"] = owner(map[string]KeySchema{"clip_norm": opt(KindFloat), "accumulate_steps": opt(KindInt)})
	s.owners["checkpoint"] = owner(map[string]KeySchema{"every_n_steps": opt(KindInt), "keep_last": opt(KindInt), "path": opt(KindString)})
	s.owners["metrics"] = owner(map[string]KeySchema{"log_every_n_steps": opt(KindInt)})
	s.owners["data_ref"] = owner(map[string]KeySchema{"observation_spec": opt(KindString)})

	// Augmentation curve owner (common to all six curve kinds).
	s.owners["augmentation.curve"] = owner(map[string]KeySchema{
		"curve_param": req(KindFloat), "noise_scale": req(KindFloat),
		"smoothing_kernel_size": req(KindInt), "point_drop_prob": opt(KindFloat),
		"value_jitter_std": opt(KindFloat), "time_mask_band_frac": opt(KindFloat),
		"channel_dropout_prob": opt(KindFloat),
	})

	return s
}

// Owner returns the schema for name, if declared.
func (s *SchemaIndex) Owner(name string) (OwnerSchema, bool) {
	o, ok := s.owners[name]
	return o, ok
}

// curveKinds is the closed set of augmentation curve kinds from §4.5.
var curveKinds = map[string]bool{
	"Linear": true, "MarketFade": true, "PulseCentered": true,
	"FrontLoaded": true, "FadeLate": true, "ChaoticDrift": true,
}

// selectorFields is the closed set of process-level selector targets a
// SELECTORS block may map keys onto.
var selectorFields = map[string]bool{
	"device": true, "log_level": true, "checkpoint_root": true, "run_name": true,
}
