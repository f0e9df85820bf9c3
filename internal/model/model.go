package model

// Station is one entry of the player's loaded playlist. Position is the
// playlist position as reported by the player (1-based) and is not
// guaranteed to be contiguous; consumers iterate the ordered slice instead
// of doing position arithmetic.
type Station struct {
	Position int
	Name     string
}
