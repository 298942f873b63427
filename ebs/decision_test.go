package ebs_test

import (
	"testing"

	"github.com/evobeam/ebs-go/ebs"
)

func TestDecisionTypeSwitchDispatch(t *testing.T) {
	decisions := []ebs.Decision{
		ebs.RefineDecision{StrategyID: "a", Instruction: "tighten argument"},
		ebs.GenerateVariantDecision{StrategyID: "a", Instruction: "try opposite framing"},
		ebs.SynthesizeDecision{StrategyIDs: []string{"a", "b"}, Instruction: "fold into report"},
	}

	var refine, variant, synth int
	for _, d := range decisions {
		switch d.(type) {
		case ebs.RefineDecision:
			refine++
		case ebs.GenerateVariantDecision:
			variant++
		case ebs.SynthesizeDecision:
			synth++
		default:
			t.Errorf("unexpected decision type %T", d)
		}
	}
	if refine != 1 || variant != 1 || synth != 1 {
		t.Errorf("dispatch counts = refine:%d variant:%d synth:%d, want 1 each", refine, variant, synth)
	}
}
