package voice

import "strings"

// SelectVoice picks the synthesis voice. ok is false when the engine default should be used.
//
// Preference order: a name containing "David", then one containing "male"
// but not "female", then any name without "female".
func SelectVoice(voices []Voice) (Voice, bool) {
	for _, v := range voices {
		if strings.Contains(v.Name, "David") {
			return v, true
		}
	}
	for _, v := range voices {
		name := strings.ToLower(v.Name)
		if strings.Contains(name, "male") && !strings.Contains(name, "female") {
			return v, true
		}
	}
	for _, v := range voices {
		if !strings.Contains(strings.ToLower(v.Name), "female") {
			return v, true
		}
	}
	return Voice{}, false
}
