package vad

import "math"

// EnergyClassifier is a lightweight, dependency-free speech/silence
// classifier based on RMS amplitude. It mirrors the thresholding idiom of
// the teacher's RMSVAD but is stateless per frame, since run-length
// confirmation is handled by Stream's start/stop trigger counters.
type EnergyClassifier struct {
	Threshold float64 // RMS in [0,1] above which a frame is "speech"
}

// NewEnergyClassifier builds a classifier with the given threshold.
func NewEnergyClassifier(threshold float64) *EnergyClassifier {
	return &EnergyClassifier{Threshold: threshold}
}

// aggressivenessThresholds tiers the VAD's aggressiveness knob (0 =
// permissive .. 3 = strict, spec §4.3/Glossary) into RMS thresholds, the
// same role original_source/controller/vad_stream.py:42 gives it by
// constructing webrtcvad.Vad(config.aggressiveness) with a stricter
// decision boundary at each tier.
var aggressivenessThresholds = [4]float64{0.010, 0.020, 0.035, 0.055}

// NewEnergyClassifierForAggressiveness builds a classifier whose RMS
// threshold is derived from a Config's Aggressiveness tier, clamping
// out-of-range input to the nearest tier.
func NewEnergyClassifierForAggressiveness(aggressiveness int) *EnergyClassifier {
	if aggressiveness < 0 {
		aggressiveness = 0
	}
	if aggressiveness > 3 {
		aggressiveness = 3
	}
	return &EnergyClassifier{Threshold: aggressivenessThresholds[aggressiveness]}
}

// IsSpeech implements Classifier.
func (c *EnergyClassifier) IsSpeech(frame []byte, _ int) bool {
	return rms(frame) > c.Threshold
}

func rms(frame []byte) float64 {
	if len(frame) < 2 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i+1 < len(frame); i += 2 {
		sample := int16(uint16(frame[i]) | uint16(frame[i+1])<<8)
		f := float64(sample) / 32768.0
		sum += f * f
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}
