package generator

import "math/rand/v2"

var clinicianStyles = [...]Style{
	"Short, blunt clinician with lots of abbreviations and light typos.",
	"Verbose clinician who repeats details and rambles a bit.",
	"Dictation-style note with odd punctuation and run-on sentences.",
	"Nursing-style succinct bullet-like lines with minimal punctuation.",
	"Uncertain clinician who uses phrases like 'likely', '?viral', and mid-sentence restarts.",
}

// ClinicianStyles returns every style a selector can produce.
func ClinicianStyles() []Style {
	out := make([]Style, len(clinicianStyles))
	copy(out, clinicianStyles[:])
	return out
}

// StyleSelector picks the style for one attachment.
type StyleSelector func() Style

// RandomStyles draws uniformly using sample, which must return a value in [0, n).
func RandomStyles(sample func(n int) int) StyleSelector {
	return func() Style {
		return clinicianStyles[sample(len(clinicianStyles))]
	}
}

// DefaultStyles draws from the global math/rand source.
func DefaultStyles() StyleSelector {
	return RandomStyles(rand.IntN)
}
