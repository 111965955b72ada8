package game

// IsShiny derives shininess from the original trainer and a 32-bit personality.
// The halves are taken from the unsigned value so no sign extension can occur.
func IsShiny(userID int64, secretID uint32, personality uint32) bool {
	upper := personality >> 16
	lower := personality & 0xFFFF
	trainerBits := uint32(uint64(userID)%65536) ^ secretID
	return trainerBits^(upper^lower) <= ShinyThreshold
}

// NatureIndex is the natures table key for a personality.
func NatureIndex(personality uint32) int {
	return int(personality % 25)
}
