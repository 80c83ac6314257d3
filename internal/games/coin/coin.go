// Package coin implements the heads-or-tails toss.
package coin

import "math/rand/v2"

// Coin faces.
const (
	Heads = "Heads 🪙"
	Tails = "Tails 🪙"
)

// Series lengths offered in the menu.
const (
	SeriesShort = 3
	SeriesLong  = 5
)

// Toss returns one random coin face.
func Toss() string {
	if rand.IntN(2) == 0 {
		return Heads
	}
	return Tails
}

// Series returns n random coin faces.
func Series(n int) []string {
	if n <= 0 {
		n = SeriesLong
	}
	faces := make([]string, n)
	for i := range faces {
		faces[i] = Toss()
	}
	return faces
}
